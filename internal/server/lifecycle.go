// Package server runs lootmaster's long-lived components, such as the metrics
// endpoint, until a termination signal arrives or one of them fails.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Component is a long-running part of the process. Run blocks until ctx is
// done or the component fails, and must return promptly once ctx is done.
type Component interface {
	Run(ctx context.Context) error
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func(ctx context.Context) error

// Run calls f.
func (f ComponentFunc) Run(ctx context.Context) error { return f(ctx) }

type namedComponent struct {
	name      string
	component Component
}

// Lifecycle runs a set of components together: the first failure or a
// SIGINT/SIGTERM stops them all.
type Lifecycle struct {
	logger     *zap.Logger
	mu         sync.Mutex
	components []namedComponent
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named component.
//
// Precondition: name must be non-empty; c must be non-nil.
func (l *Lifecycle) Add(name string, c Component) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components = append(l.components, namedComponent{name: name, component: c})
}

// Run starts every component and blocks until a signal, ctx cancellation or a
// component failure, then waits for every component to return.
//
// Postcondition: Returns nil after a signal or ctx cancellation, otherwise the
// errors of every component that failed.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	components := append([]namedComponent(nil), l.components...)
	l.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, nc := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Info("starting component", zap.String("component", nc.name))
			err := nc.component.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("component failed",
					zap.String("component", nc.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(start)),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("component %s: %w", nc.name, err))
				mu.Unlock()
				cancel()
				return
			}
			l.logger.Info("component stopped", zap.String("component", nc.name))
		}()
	}

	<-ctx.Done()
	l.logger.Info("shutting down", zap.Int("components", len(components)))
	wg.Wait()
	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return errors.Join(errs...)
}
