package batch

import (
	"fmt"
	"image"
	"sync"

	"github.com/menta2k/product-compositor/pkg/processing"
)

// HandleAllocator hands out opaque references to finished images.
type HandleAllocator interface {
	Create(img image.Image) (string, error)
	Revoke(handle string)
	RevokeAll()
}

// MemoryHandles keeps PNG encoded images in memory under mem://N handles.
type MemoryHandles struct {
	mu     sync.RWMutex
	next   int
	images map[string][]byte
}

// NewMemoryHandles creates an empty in-memory handle store
func NewMemoryHandles() *MemoryHandles {
	return &MemoryHandles{images: make(map[string][]byte)}
}

// Create encodes img and returns its handle.
func (m *MemoryHandles) Create(img image.Image) (string, error) {
	data, err := processing.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	handle := fmt.Sprintf("mem://%d", m.next)
	m.images[handle] = data
	return handle, nil
}

// Get returns the PNG bytes behind handle.
func (m *MemoryHandles) Get(handle string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.images[handle]
	return data, ok
}

// Revoke releases one handle. Unknown handles are ignored.
func (m *MemoryHandles) Revoke(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, handle)
}

// RevokeAll releases every handle.
func (m *MemoryHandles) RevokeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = make(map[string][]byte)
}

// Len returns the number of live handles.
func (m *MemoryHandles) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images)
}
