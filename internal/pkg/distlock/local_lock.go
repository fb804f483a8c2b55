package distlock

import (
	"context"
	"sync"
)

var local = struct {
	mu   sync.Mutex
	held map[string]*LocalLock
}{held: make(map[string]*LocalLock)}

// LocalLock is an in-process lock keyed by name. It only excludes callers
// inside the same process and is used when neither Redis nor PostgreSQL
// is configured.
type LocalLock struct {
	key string
}

// NewLocalLock creates an in-process lock for key.
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

// Acquire takes the lock if no other LocalLock holds the same key.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	local.mu.Lock()
	defer local.mu.Unlock()
	if _, ok := local.held[l.key]; ok {
		return false, nil
	}
	local.held[l.key] = l
	return true, nil
}

// Release frees the key if l is the holder.
func (l *LocalLock) Release(_ context.Context) error {
	local.mu.Lock()
	defer local.mu.Unlock()
	if local.held[l.key] == l {
		delete(local.held, l.key)
	}
	return nil
}
