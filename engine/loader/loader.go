package loader

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"go.uber.org/zap"
)

// ErrDuplicateLabel is returned from Wait when two submissions share a label.
var ErrDuplicateLabel = errors.New("loader: duplicate label")

// result is the outcome of one decode task.
type result struct {
	label   string
	staging common.TextureStagingData
	err     error
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu *sync.Mutex

	workers     int
	queueSize   int
	idleTimeout time.Duration
	readFile    func(path string) ([]byte, error)
	newPool     func(maxWorkers, queueSize int, idleTimeout time.Duration) worker.DynamicWorkerPool

	pool    worker.DynamicWorkerPool
	wg      sync.WaitGroup
	results []*result
	closed  bool
}

// Loader decodes texture images off the caller's goroutine.
// Decodes are queued on a worker pool so image decoding can overlap with adapter and device negotiation;
// Wait joins them before the render session is built.
//
// Usage pattern:
//  1. Submit or SubmitFile every image
//  2. Do other startup work
//  3. Call Wait once to collect the decoded pixels
//  4. Call Close to stop the pool's workers
type Loader interface {
	// Submit queues raw encoded image bytes for decoding.
	//
	// Parameters:
	//   - label: the key the decoded pixels are returned under
	//   - raw: the encoded image bytes
	Submit(label string, raw []byte)

	// SubmitFile queues a read and decode of the image at path.
	//
	// Parameters:
	//   - label: the key the decoded pixels are returned under
	//   - path: the image file to read
	SubmitFile(label, path string)

	// Wait blocks until every submitted decode has finished.
	//
	// Returns:
	//   - map[string]common.TextureStagingData: decoded pixels keyed by label
	//   - error: the first failure in submission order, or nil
	Wait() (map[string]common.TextureStagingData, error)

	// Close stops the worker pool once pending decodes have finished. Pool workers do not exit on their own,
	// so every loader must be closed. Submitting after Close is a no-op. Calling Close again is a no-op.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a Loader backed by a dynamic worker pool.
//
// Parameters:
//   - options: functional options to size the pool
//
// Returns:
//   - Loader: the new loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:          &sync.Mutex{},
		workers:     2,
		queueSize:   16,
		idleTimeout: time.Second,
		readFile:    os.ReadFile,
		newPool:     worker.NewDynamicWorkerPool,
	}
	for _, option := range options {
		option(l)
	}
	l.pool = l.newPool(l.workers, l.queueSize, l.idleTimeout)
	return l
}

func (l *loader) Submit(label string, raw []byte) {
	l.submit(label, func() ([]byte, error) { return raw, nil })
}

func (l *loader) SubmitFile(label, path string) {
	l.submit(label, func() ([]byte, error) {
		raw, err := l.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: read %s: %w", path, err)
		}
		return raw, nil
	})
}

func (l *loader) submit(label string, source func() ([]byte, error)) {
	r := &result{label: label}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		logger.Warn("texture submitted to closed loader", zap.String("label", label))
		return
	}
	id := len(l.results)
	l.results = append(l.results, r)
	l.wg.Add(1)
	l.mu.Unlock()

	l.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			defer l.wg.Done()

			start := time.Now()
			raw, err := source()
			if err == nil {
				r.staging, err = common.DecodeImage(raw)
			}
			if err != nil {
				r.err = fmt.Errorf("loader: %s: %w", label, err)
				return nil, r.err
			}
			logger.Debug("texture decoded",
				zap.String("label", label),
				zap.Uint32("width", r.staging.Width),
				zap.Uint32("height", r.staging.Height),
				zap.Duration("elapsed", time.Since(start)),
			)
			return r.staging, nil
		},
	})
}

func (l *loader) Wait() (map[string]common.TextureStagingData, error) {
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]common.TextureStagingData, len(l.results))
	for _, r := range l.results {
		if r.err != nil {
			return nil, r.err
		}
		if _, ok := out[r.label]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, r.label)
		}
		out[r.label] = r.staging
	}
	return out, nil
}

func (l *loader) Close() {
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.pool.Stop()
}
