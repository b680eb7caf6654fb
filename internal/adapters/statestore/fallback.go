package statestore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/core"
)

// Fallback gates a primary store behind a health flag. The first
// failure flips it to the in-memory store for the rest of the process
// lifetime (or until Retry succeeds), logging the degradation once.
// None of its methods ever return the primary's error.
type Fallback struct {
	primary  core.StateStore
	memory   *Memory
	degraded atomic.Bool
	logOnce  sync.Once
}

func NewFallback(primary core.StateStore) *Fallback {
	f := &Fallback{primary: primary, memory: NewMemory()}
	if primary == nil {
		f.degraded.Store(true)
	}
	return f
}

func (f *Fallback) Write(ctx context.Context, key string, fields map[string]string) error {
	if !f.degraded.Load() {
		err := f.primary.Write(ctx, key, fields)
		if err == nil {
			return nil
		}
		f.degrade(err)
	}
	return f.memory.Write(ctx, key, fields)
}

func (f *Fallback) ReadAll(ctx context.Context, key string) (map[string]string, error) {
	if !f.degraded.Load() {
		out, err := f.primary.ReadAll(ctx, key)
		if err == nil {
			return out, nil
		}
		f.degrade(err)
	}
	return f.memory.ReadAll(ctx, key)
}

func (f *Fallback) DeleteFields(ctx context.Context, key string, fields ...string) error {
	if !f.degraded.Load() {
		err := f.primary.DeleteFields(ctx, key, fields...)
		if err == nil {
			return nil
		}
		f.degrade(err)
	}
	return f.memory.DeleteFields(ctx, key, fields...)
}

// Degraded reports whether the wrapper is serving from memory.
func (f *Fallback) Degraded() bool {
	return f.degraded.Load()
}

// Retry re-enables the primary if probe succeeds. Mirrored state
// written while degraded stays in memory; the mirror is advisory.
func (f *Fallback) Retry(ctx context.Context, probe func(context.Context) error) error {
	if f.primary == nil {
		return nil
	}
	if err := probe(ctx); err != nil {
		return err
	}
	f.degraded.Store(false)
	log.Info().Str("module", "adapters.statestore").Msg("primary state store re-enabled")
	return nil
}

// RunRetry keeps probing a degraded primary until ctx ends, re-enabling
// it on the first probe that succeeds.
func (f *Fallback) RunRetry(ctx context.Context, interval time.Duration, probe func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.degraded.Load() {
				continue
			}
			if err := f.Retry(ctx, probe); err != nil {
				log.Debug().Err(err).Str("module", "adapters.statestore").Msg("primary state store still unavailable")
			}
		}
	}
}

func (f *Fallback) degrade(err error) {
	f.degraded.Store(true)
	f.logOnce.Do(func() {
		log.Warn().Err(err).Str("module", "adapters.statestore").Msg("state store unavailable, falling back to in-memory mirror")
	})
}
