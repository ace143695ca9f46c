package gate

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

const (
	DelayBase   = 1 * time.Second
	DelayJitter = 2 * time.Second
)

// Delayer pauses a submission before it resolves.
type Delayer interface {
	Wait(ctx context.Context) error
}

// RandomDelay waits Base plus a random share of Jitter on every submission.
//
// It only imitates server latency. Anyone can read the allowlist out of the site
// file, so this slows down a naive script and nothing more.
type RandomDelay struct {
	Base   time.Duration
	Jitter time.Duration
}

// DefaultDelay returns the 1-3 second submission delay.
func DefaultDelay() RandomDelay {
	return RandomDelay{Base: DelayBase, Jitter: DelayJitter}
}

// Wait blocks for the delay or until ctx is done.
func (d RandomDelay) Wait(ctx context.Context) error {
	total := d.Base + randomDuration(d.Jitter)
	if total <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(total)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoDelay resolves immediately. Used by tests and the admin CLI.
type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }

// randomDuration returns a value in [0, max) from crypto/rand. Zero on error.
func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}
