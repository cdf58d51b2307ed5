//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager starts each container type at most once per test binary and hands
// the same instance to every suite.
type Manager struct {
	mu       sync.Mutex
	redis    *RedisContainer
	redpanda *RedpandaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetRedpanda returns the shared Kafka-compatible broker, starting it on first use.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}
