package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	membershipmod "github.com/mobilityhq/blueprint/modules/membership"
	trainingmod "github.com/mobilityhq/blueprint/modules/training"
	"github.com/mobilityhq/blueprint/pkg/billing"
	"github.com/mobilityhq/blueprint/pkg/config"
	"github.com/mobilityhq/blueprint/pkg/httpserver"
	"github.com/mobilityhq/blueprint/pkg/logger"
	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/pg"
	"github.com/mobilityhq/blueprint/pkg/pricing"
	"github.com/mobilityhq/blueprint/pkg/principal"
	"github.com/mobilityhq/blueprint/pkg/redis"
	"github.com/mobilityhq/blueprint/pkg/training"
)

// quoteCacheTTL bounds how stale the public pricing endpoint may be. The
// authoritative quote is always re-resolved at checkout-session creation.
const quoteCacheTTL = 30 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithAttr(slog.String("app", "blueprint")))

	var dbCfg pg.Config
	config.MustLoad(&dbCfg)
	pool, err := pg.Connect(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, dbCfg, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	healthchecks := []func(context.Context) error{pg.Healthcheck(pool)}

	// The quote cache is optional; without Redis every pricing request hits
	// the member count query directly.
	var pricingOpts []pricing.Option
	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		pricingOpts = append(pricingOpts, pricing.WithCache(client, quoteCacheTTL))
		healthchecks = append(healthchecks, redis.Healthcheck(client))
	}

	var stripeCfg billing.StripeConfig
	config.MustLoad(&stripeCfg)
	provider, err := billing.NewStripeProvider(stripeCfg)
	if err != nil {
		return fmt.Errorf("init stripe provider: %w", err)
	}

	users := membership.NewPgUserStore(pool)
	subs := membership.NewPgSubscriptionStore(pool)
	quotes := pricing.NewService(users.CountActive, pricingOpts...)

	var memberCfg membership.Config
	config.MustLoad(&memberCfg)
	members := membership.NewService(memberCfg, users, subs, provider, quotes,
		membership.WithLogger(log.With(logger.Component("membership"))))

	sessions := training.NewService(
		training.NewPgExerciseStore(pool),
		training.NewPgCompletionStore(pool),
		training.WithLogger(log.With(logger.Component("training"))))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(principal.Middleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(log, healthchecks...))
	r.Mount("/exercises", trainingmod.Router(
		trainingmod.NewHandler(members, sessions, log.With(logger.Component("training")))))
	r.Mount("/", membershipmod.Router(
		membershipmod.NewHandler(members, provider, log.With(logger.Component("membership")))))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	return httpserver.New(httpCfg, log).Run(ctx, r)
}
