// Package containers manages shared testcontainers for integration tests.
// Containers start lazily on first use and are reused across suites to keep
// the integration run fast.
package containers

import (
	"sync"
	"testing"
)

// Manager owns the shared container instances.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
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

// GetPostgres returns the shared PostgreSQL container, starting it on first
// call. The schema is applied once at startup.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.postgres == nil {
		pg, err := startPostgres()
		if err != nil {
			t.Fatalf("start postgres container: %v", err)
		}
		m.postgres = pg
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first call.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis == nil {
		rc, err := startRedis()
		if err != nil {
			t.Fatalf("start redis container: %v", err)
		}
		m.redis = rc
	}
	return m.redis
}

// GetRedpanda returns the shared redpanda broker, starting it on first call.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redpanda == nil {
		rp, err := startRedpanda()
		if err != nil {
			t.Fatalf("start redpanda container: %v", err)
		}
		m.redpanda = rp
	}
	return m.redpanda
}
