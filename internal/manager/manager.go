// Package manager ties the registry and the drivers together: named
// definitions become pooled live connections, reused across calls and
// evicted when stale, removed or idle.
package manager

import (
	"context"
	"sync"
	"time"

	"dbconnect/internal/dberr"
	"dbconnect/internal/driver"
	"dbconnect/internal/models"
	"dbconnect/internal/registry"

	"github.com/rs/zerolog"
)

// poolEntry tracks one cached adapter.
type poolEntry struct {
	adapter    *driver.Adapter
	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int64
}

// ConnectionInfo is the sanitized view of a stored connection. It never
// carries credentials.
type ConnectionInfo struct {
	Name      string
	Type      models.DBType
	Host      string
	Port      int64
	Database  string
	Connected bool
	UseCount  int64
}

// Manager serializes access to the registry and the adapter pool with a
// single mutex. Methods never call other locked methods; shared logic
// lives in unlocked helpers.
type Manager struct {
	mu    sync.Mutex
	store *registry.Store
	pool  map[string]*poolEntry
	log   zerolog.Logger
	now   func() time.Time
}

func New(store *registry.Store, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		pool:  map[string]*poolEntry{},
		log:   log.With().Str("component", "manager").Logger(),
		now:   time.Now,
	}
}

// Add validates and persists a new definition. Nothing is connected.
func (m *Manager) Add(name string, def models.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return dberr.New(dberr.KindConfig, "connection name must not be empty")
	}
	def = applyDefaults(def)
	if err := driver.Validate(def, m.log); err != nil {
		return wrapUnknown(err)
	}
	return wrapUnknown(m.store.Add(name, def))
}

// applyDefaults fills backend defaults before validation so stored
// definitions are self-contained.
func applyDefaults(def models.Definition) models.Definition {
	out := def.Clone()
	if out.Type == models.DBTypeSQLite && !out.Has("database") {
		out.Fields["database"] = ":memory:"
	}
	return out
}

// Get returns a connected adapter for name. Pooled adapters are probed
// before reuse and replaced when stale. A call with overrides always
// builds a fresh adapter that is never cached; the caller owns its
// lifecycle.
func (m *Manager) Get(ctx context.Context, name string, overrides map[string]any) (*driver.Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(ctx, name, overrides)
}

func (m *Manager) getLocked(ctx context.Context, name string, overrides map[string]any) (*driver.Adapter, error) {
	// A live pooled entry is served without touching the registry, so
	// an unreadable registry file cannot take down open connections.
	if entry, ok := m.pool[name]; ok && len(overrides) == 0 {
		if entry.adapter.IsConnected(ctx) {
			entry.lastUsedAt = m.now()
			entry.useCount++
			return entry.adapter, nil
		}
		// Stale entries are replaced, never repaired.
		entry.adapter.Disconnect()
		delete(m.pool, name)
		m.log.Warn().Str("name", name).Msg("replacing stale pooled connection")
	}

	def, err := m.store.Get(name)
	if err != nil {
		return nil, wrapUnknown(err)
	}

	if len(overrides) > 0 {
		merged := def.Merge(overrides)
		adapter, err := driver.New(merged, m.log)
		if err != nil {
			return nil, wrapUnknown(err)
		}
		if err := adapter.Connect(ctx); err != nil {
			return nil, wrapUnknown(err)
		}
		m.log.Debug().Str("name", name).Msg("built uncached override connection")
		return adapter, nil
	}

	adapter, err := driver.New(def, m.log)
	if err != nil {
		return nil, wrapUnknown(err)
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, wrapUnknown(err)
	}
	now := m.now()
	m.pool[name] = &poolEntry{adapter: adapter, createdAt: now, lastUsedAt: now, useCount: 1}
	m.log.Info().Str("name", name).Str("db_type", string(def.Type)).Msg("connection established")
	return adapter, nil
}

// Test reports whether name is currently reachable. It never errors;
// unknown names simply test false.
func (m *Manager) Test(ctx context.Context, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.pool[name]; ok {
		return entry.adapter.IsConnected(ctx)
	}
	def, err := m.store.Get(name)
	if err != nil {
		return false
	}
	adapter, err := driver.New(def, m.log)
	if err != nil {
		return false
	}
	return adapter.TestConnection(ctx)
}

// ExecuteQuery runs a query against the named connection.
func (m *Manager) ExecuteQuery(ctx context.Context, name, query string, params map[string]any) ([]map[string]any, error) {
	adapter, err := m.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	rows, err := adapter.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, wrapUnknown(err)
	}
	return rows, nil
}

// ExecuteCommand runs a mutating statement against the named connection.
func (m *Manager) ExecuteCommand(ctx context.Context, name, query string, params map[string]any) (int64, error) {
	adapter, err := m.Get(ctx, name, nil)
	if err != nil {
		return 0, err
	}
	affected, err := adapter.ExecuteCommand(ctx, query, params)
	if err != nil {
		return 0, wrapUnknown(err)
	}
	return affected, nil
}

// Tables lists user tables on the named connection.
func (m *Manager) Tables(ctx context.Context, name string) ([]string, error) {
	adapter, err := m.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	tables, err := adapter.Tables(ctx)
	if err != nil {
		return nil, wrapUnknown(err)
	}
	return tables, nil
}

// Columns describes a table on the named connection.
func (m *Manager) Columns(ctx context.Context, name, table string) ([]map[string]any, error) {
	adapter, err := m.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	cols, err := adapter.Columns(ctx, table)
	if err != nil {
		return nil, wrapUnknown(err)
	}
	return cols, nil
}

// Remove evicts any pooled connection and deletes the definition.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked(name)
	return wrapUnknown(m.store.Remove(name))
}

// Update replaces the stored definition and evicts any pooled
// connection built from the old one.
func (m *Manager) Update(name string, def models.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	def = applyDefaults(def)
	if err := driver.Validate(def, m.log); err != nil {
		return wrapUnknown(err)
	}
	m.evictLocked(name)
	return wrapUnknown(m.store.Update(name, def))
}

// CloseConnection disconnects and evicts the pooled connection for
// name, reporting whether one was open.
func (m *Manager) CloseConnection(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictLocked(name)
}

// CloseAll disconnects every pooled connection and returns how many
// were open.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.pool)
	for name, entry := range m.pool {
		entry.adapter.Disconnect()
		delete(m.pool, name)
	}
	if count > 0 {
		m.log.Info().Int("count", count).Msg("closed all pooled connections")
	}
	return count
}

// CleanupIdle evicts pooled connections unused for maxIdle or longer
// and returns how many were closed. A zero threshold evicts everything.
func (m *Manager) CleanupIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for name, entry := range m.pool {
		if now.Sub(entry.lastUsedAt) >= maxIdle {
			entry.adapter.Disconnect()
			delete(m.pool, name)
			count++
		}
	}
	if count > 0 {
		m.log.Info().Int("count", count).Dur("max_idle", maxIdle).Msg("evicted idle connections")
	}
	return count
}

func (m *Manager) evictLocked(name string) bool {
	entry, ok := m.pool[name]
	if !ok {
		return false
	}
	entry.adapter.Disconnect()
	delete(m.pool, name)
	m.log.Debug().Str("name", name).Msg("evicted pooled connection")
	return true
}

// ListConnections returns stored connection names in insertion order.
func (m *Manager) ListConnections() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.store.List()
	return names, wrapUnknown(err)
}

// ConnectionInfo returns the sanitized view of a stored connection.
func (m *Manager) ConnectionInfo(name string) (ConnectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	def, err := m.store.Get(name)
	if err != nil {
		return ConnectionInfo{}, wrapUnknown(err)
	}
	info := ConnectionInfo{Name: name, Type: def.Type}
	info.Host, _ = def.Str("host")
	info.Port, _ = def.Int("port")
	info.Database, _ = def.Str("database")
	if entry, ok := m.pool[name]; ok {
		info.Connected = true
		info.UseCount = entry.useCount
	}
	return info, nil
}

// RegistryInfo exposes non-sensitive registry metadata.
func (m *Manager) RegistryInfo() (registry.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.store.Info()
	return info, wrapUnknown(err)
}

// Backup copies the registry file; see registry.Store.Backup.
func (m *Manager) Backup(dest string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.store.Backup(dest)
	return path, wrapUnknown(err)
}

// wrapUnknown normalizes foreign errors into the database kind so
// callers always see the taxonomy. Known kinds pass through unchanged.
func wrapUnknown(err error) error {
	if err == nil {
		return nil
	}
	if dberr.KindOf(err) != "" {
		return err
	}
	return dberr.Wrap(dberr.KindDatabase, "unexpected failure", err)
}
