package cluster

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
)

// BufferView is a read-only view of a buffer owned by the Pipeline. Consumers bind it by
// handle and never write it; the view stops resolving once the Pipeline is released.
type BufferView interface {
	// Handle returns the non-owning buffer handle.
	Handle() buffer.Handle

	// Size returns the buffer size in bytes, or 0 if the buffer was released.
	Size() uint64

	// Read copies the whole buffer back to host memory.
	//
	// Returns:
	//   - []byte: the contents
	//   - error: buffer.ErrStaleHandle once the Pipeline was released
	Read() ([]byte, error)
}

type bufferView struct {
	r renderer.Renderer
	h buffer.Handle
}

var _ BufferView = bufferView{}

func (p *pipelineImpl) view(h buffer.Handle) BufferView {
	return bufferView{r: p.r, h: h}
}

func (v bufferView) Handle() buffer.Handle {
	return v.h
}

func (v bufferView) Size() uint64 {
	size, err := v.r.BufferSize(v.h)
	if err != nil {
		return 0
	}
	return size
}

func (v bufferView) Read() ([]byte, error) {
	size, err := v.r.BufferSize(v.h)
	if err != nil {
		return nil, err
	}
	return v.r.ReadBuffer(v.h, 0, size)
}
