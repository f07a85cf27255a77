package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCache is an in-memory Cache for tests. Any ...Func field overrides
// the default map-backed behavior.
type MockCache struct {
	PingFunc func(ctx context.Context) error
	SetFunc  func(ctx context.Context, key string, value any, expiration time.Duration) error
	GetFunc  func(ctx context.Context, key string) (string, error)

	// Track calls for testing
	SetCalls   []SetCall
	GetCalls   []string
	DelCalls   [][]string
	CloseCalls int

	data map[string]string
	mu   sync.Mutex
}

type SetCall struct {
	Key        string
	Value      any
	Expiration time.Duration
}

// Ensure MockCache implements Cache interface
var _ Cache = (*MockCache)(nil)

// NewMockCache creates a new mock cache
func NewMockCache() *MockCache {
	return &MockCache{
		SetCalls: make([]SetCall, 0),
		GetCalls: make([]string, 0),
		DelCalls: make([][]string, 0),
		data:     make(map[string]string),
	}
}

// Ping mocks cache ping
func (m *MockCache) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Set records the call and stores the value
func (m *MockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, SetCall{Key: key, Value: value, Expiration: expiration})
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	m.data[key] = fmt.Sprint(value)
	return nil
}

// Get records the call and returns the stored value, "" when absent
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, key)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return m.data[key], nil
}

// Del removes keys
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DelCalls = append(m.DelCalls, keys)
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Exists reports whether any key is stored
func (m *MockCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Close mocks cache close
func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// WaitForConnection behaves like Ping
func (m *MockCache) WaitForConnection(ctx context.Context) error {
	return m.Ping(ctx)
}

// SetPingError sets up the mock to return an error on Ping
func (m *MockCache) SetPingError(err error) {
	m.PingFunc = func(ctx context.Context) error {
		return err
	}
}
