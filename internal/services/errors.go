package services

import (
	"errors"

	"github.com/rohits-web03/fileinpic/internal/repositories"
)

var (
	ErrNotFound     = repositories.ErrNotFound
	ErrStorage      = repositories.ErrStorage
	ErrStorageFull  = repositories.ErrStorageFull
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid input")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
)
