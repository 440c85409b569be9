// Package lifecycle starts long-running components in order and stops them in reverse.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type (
	named struct {
		name string
		Component
	}

	Runtime struct {
		components []named
		logger     *log.Entry
	}
)

func NewRuntime() *Runtime {
	return &Runtime{logger: log.WithField("component", "runtime")}
}

// Register appends a component; nil components are skipped.
func (r *Runtime) Register(name string, component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, named{name: name, Component: component})
}

func (r *Runtime) Start(ctx context.Context) error {
	started := make([]named, 0, len(r.components))
	for _, component := range r.components {
		if err := component.Start(ctx); err != nil {
			_ = r.stopComponents(ctx, started)
			return fmt.Errorf("start %s: %w", component.name, err)
		}
		r.logger.WithField("name", component.name).Debug("component started")
		started = append(started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return r.stopComponents(ctx, r.components)
}

// Run starts every component, blocks until ctx is done and stops them within stopTimeout.
func (r *Runtime) Run(ctx context.Context, stopTimeout time.Duration) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return r.Stop(stopCtx)
}

func (r *Runtime) stopComponents(ctx context.Context, components []named) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if err := component.Stop(ctx); err != nil {
			r.logger.WithFields(log.Fields{
				"name":  component.name,
				"error": err.Error(),
			}).Warn("cant stop component")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", component.name, err))
			continue
		}
		r.logger.WithField("name", component.name).Debug("component stopped")
	}
	return stopErr
}
