package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// WriteBuffers queues each write against the buffer its provider holds at the given binding.
// Writes land in queue order, ahead of any command buffer submitted afterwards.
//
// Parameters:
//   - queue: the queue to write through
//   - writes: the writes to apply, in order
//
// Returns:
//   - error: an error if a provider has no buffer at the binding or the queue rejects a write
func WriteBuffers(queue gpu.Queue, writes ...BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == 0 {
			return fmt.Errorf("%s: no buffer at binding %d", w.Provider.Label(), w.Binding)
		}
		if err := queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("%s: write binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
