package loader

import "time"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets the maximum number of concurrent decodes.
//
// Parameters:
//   - n: the worker limit, values below 1 are treated as 1
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker limit to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithQueueSize sets how many decodes may be queued before Submit blocks.
//
// Parameters:
//   - n: the queue capacity, values below 1 are treated as 1
//
// Returns:
//   - LoaderBuilderOption: a function that applies the queue size to a loader
func WithQueueSize(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.queueSize = max(n, 1)
	}
}

// WithIdleTimeout sets how long an idle worker lingers before exiting.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - LoaderBuilderOption: a function that applies the timeout to a loader
func WithIdleTimeout(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.idleTimeout = d
	}
}

