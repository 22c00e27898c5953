// Package runtime holds the process-wide collaborators (logger, tracer,
// clock) that would otherwise end up as package-level globals. Every
// constructor in this module takes a *Runtime explicitly instead of
// reaching for an implicit singleton.
package runtime

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Clock abstracts time so tests can inject a deterministic source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// Runtime bundles the collaborators every component needs. It is
// constructed once in main and passed down explicitly; no package in this
// module keeps its own package-level logger or tracer.
type Runtime struct {
	Log    *zap.Logger
	Tracer trace.Tracer
	Clock  Clock
}

// New builds a Runtime from a logger and tracer. Clock defaults to
// SystemClock.
func New(log *zap.Logger, tracer trace.Tracer) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{Log: log, Tracer: tracer, Clock: SystemClock}
}

// WithClock returns a copy of the Runtime using the given Clock, for tests.
func (r *Runtime) WithClock(c Clock) *Runtime {
	clone := *r
	clone.Clock = c
	return &clone
}

// Named returns a copy of the Runtime whose logger has the given name
// appended, mirroring zap's own sub-logger convention.
func (r *Runtime) Named(name string) *Runtime {
	clone := *r
	clone.Log = r.Log.Named(name)
	return &clone
}
