package database

import "github.com/go-faster/errors"

var ErrNotFound = errors.New("not found")

var (
	ErrUserNotExist      = errors.Wrap(ErrNotFound, "user not exist")
	ErrTaskNotExist      = errors.Wrap(ErrNotFound, "task not exist")
	ErrChallengeNotExist = errors.Wrap(ErrNotFound, "challenge not exist")
	ErrCategoryNotExist  = errors.Wrap(ErrNotFound, "category not exist")
)

var ErrUserAlreadyExist = errors.New("user already exist")

// ErrExperienceOutOfRange is returned when an award would move a total outside the stored range.
var ErrExperienceOutOfRange = errors.New("experience out of range")
