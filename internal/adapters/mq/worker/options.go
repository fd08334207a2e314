// Package worker drains the audit queue into the structured log.
package worker

import (
	"github.com/okian/hopguard/pkg/logger"
)

// Option applies a configuration option to the AuditWorker.
type Option func(*AuditWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *AuditWorker) {
		if name != "" {
			w.name = name
			w.logger = logger.Get().Named(name)
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *AuditWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
