// Package clock abstracts wall-clock acquisition. The trip controller
// reads it once at trip start and once at fall detection.
package clock

import (
	"context"
	"time"
)

// Source yields the current wall-clock time.
type Source interface {
	Now(ctx context.Context) (time.Time, error)
}

// System reads the local system clock and never fails.
type System struct{}

func (System) Now(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}
