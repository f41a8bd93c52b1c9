package lenz

import (
	"errors"
	"fmt"

	"github.com/colonyops/linglenz/internal/core/validate"
)

var (
	// ErrInvalidArgument wraps caller input rejected before any side effect.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned when submitting to a class that has finished.
	ErrClosed = errors.New("class is closed")

	// ErrNotActive is returned when opening a class that is not in progress.
	ErrNotActive = errors.New("class session is not in progress")
)

func invalidID(field, id string) error {
	if err := validate.ID(id); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, field, err)
	}
	return nil
}
