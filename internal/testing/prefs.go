package testing

import (
	"sync"
)

// MemoryPrefs is an in-memory preference store.
type MemoryPrefs struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func NewMemoryPrefs() *MemoryPrefs {
	return &MemoryPrefs{values: map[string]string{}}
}

// Fail makes every subsequent call return err.
func (m *MemoryPrefs) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryPrefs) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPrefs) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func (m *MemoryPrefs) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.values, key)
	return nil
}

func (m *MemoryPrefs) GetBool(key string) (bool, error) {
	v, ok, err := m.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return v == "1" || v == "true", nil
}

func (m *MemoryPrefs) SetBool(key string, value bool) error {
	if value {
		return m.Set(key, "1")
	}
	return m.Set(key, "0")
}
