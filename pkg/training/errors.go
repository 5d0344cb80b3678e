package training

import "errors"

var (
	ErrExerciseNotFound         = errors.New("exercise not found")
	ErrCompletionNotFound       = errors.New("completion not found")
	ErrCompletedRecently        = errors.New("exercise completed within the cooldown window")
	ErrFailedToRecordCompletion = errors.New("failed to record completion")
	ErrFailedToListExercises    = errors.New("failed to list exercises")
)
