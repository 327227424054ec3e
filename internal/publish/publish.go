// Package publish fans each new device reading out to external consumers.
package publish

import (
	"context"

	"github.com/computergenieco/pimon/internal/store"
)

// Publisher receives every successful reading. Failures never affect the
// store; callers log them and move on.
type Publisher interface {
	Publish(ctx context.Context, r store.Reading) error
	Close()
}

type noop struct{}

// Noop returns a Publisher that discards everything.
func Noop() Publisher { return noop{} }

func (noop) Publish(context.Context, store.Reading) error { return nil }
func (noop) Close()                                       {}
