package stores

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"sync"

	"go.permalaunch.dev/core/arweave"
)

// MemoryStore is an in-memory, content-addressed implementation of Store for
// testing. Identifiers are the base64url SHA-256 of uploaded content.
type MemoryStore struct {
	URL     *url.URL
	Content map[string][]byte
	Tags    map[string]arweave.Tags
	mu      sync.RWMutex
}

func NewMemoryStore(ep *url.URL) *MemoryStore {
	return &MemoryStore{
		URL:     ep,
		Content: make(map[string][]byte),
		Tags:    make(map[string]arweave.Tags),
	}
}

func (m *MemoryStore) Provider() string { return "memory" }

func (m *MemoryStore) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	var rc, err = req.Body()
	if err != nil {
		return UploadResult{}, fmt.Errorf("opening content: %w", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read content: %w", err)
	} else if int64(len(b)) != req.Size {
		return UploadResult{}, fmt.Errorf("content size mismatch (read %d; expected %d)", len(b), req.Size)
	} else if err = ctx.Err(); err != nil {
		return UploadResult{}, err
	}

	var sum = sha256.Sum256(b)
	var id = arweave.EncodeB64URL(sum[:])

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Content[id] = b
	m.Tags[id] = append(arweave.Tags(nil), req.Tags...)
	return UploadResult{ID: id}, nil
}

// Get returns the content and tags stored under |id|.
func (m *MemoryStore) Get(id string) ([]byte, arweave.Tags, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b, ok = m.Content[id]
	return b, m.Tags[id], ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.Content)
}
