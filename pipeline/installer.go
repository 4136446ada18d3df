package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/storage"
)

// Install wraps the backend in an Interceptor. Installing on top of an
// existing Interceptor is a no-op that returns the one already in place, so
// repeated installs never stack chains.
func Install(backend storage.Backend, builder *Builder, logger logrus.FieldLogger) *Interceptor {
	if existing, ok := backend.(*Interceptor); ok {
		if logger != nil {
			logger.Warn("backend is already intercepted, reusing it")
		}
		return existing
	}
	return New(backend, builder, logger)
}

// Uninstall peels the interception layer off, returning the original
// backend. Passing anything that is not an Interceptor returns it as is.
func Uninstall(backend storage.Backend) storage.Backend {
	if ic, ok := backend.(*Interceptor); ok {
		return ic.Parent()
	}
	return backend
}
