package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Mem is an in-memory Store. It is used by tests and as a scratch backend;
// Move holds the lock for the whole copy+delete, so it exhibits the same
// single-winner claim semantics as the real backends.
type Mem struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{objects: make(map[string][]byte)}
}

func (s *Mem) List(ctx context.Context, prefix string, fn func(key string) error) error {
	s.mu.Lock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Mem) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("store: get %s: %w", key, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *Mem) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

func (s *Mem) Move(ctx context.Context, srcKey, dstPrefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[srcKey]
	if !ok {
		return "", fmt.Errorf("store: move %s: %w", srcKey, ErrNotFound)
	}
	dstKey := Rekey(srcKey, dstPrefix)
	s.objects[dstKey] = data
	delete(s.objects, srcKey)
	return dstKey, nil
}

// Keys returns every key in the store, sorted. Test helper.
func (s *Mem) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
