package blobstore

import (
	"context"
	"sync"
	"time"
)

type storedDocument struct {
	upload  Upload
	content []byte
}

// InMemoryStore is a thread-safe DocumentStore for tests and local runs.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*storedDocument
	now  func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string]*storedDocument), now: time.Now}
}

func (s *InMemoryStore) Put(_ context.Context, u Upload) (string, error) {
	if err := checkUpload(u); err != nil {
		return "", err
	}
	data, err := readLimited(u.Content)
	if err != nil {
		return "", err
	}
	u.Size = int64(len(data))
	u.Content = nil

	ref := "mem://" + objectKey(u.FileName, s.now())
	s.mu.Lock()
	s.docs[ref] = &storedDocument{upload: u, content: data}
	s.mu.Unlock()
	return ref, nil
}

func (s *InMemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[ref]; !ok {
		return ErrBlobNotFound
	}
	delete(s.docs, ref)
	return nil
}

// Get returns a copy of the stored bytes.
func (s *InMemoryStore) Get(ref string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[ref]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(d.content))
	copy(out, d.content)
	return out, true
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
