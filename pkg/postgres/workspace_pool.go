package postgres

import (
	"sync"
	"time"
)

// Opener abstracts Open so the pool can be tested without a live server.
type Opener func(cfg Config, dsn string) (*DB, error)

type poolEntry struct {
	db        *DB
	expiresAt time.Time
}

// WorkspacePool caches workspace-scoped connection handles with a TTL,
// mirroring the directory cache design instead of reopening on every call.
// One workspace's backlog never shares a handle with another's.
type WorkspacePool struct {
	cfg     Config
	open    Opener
	ttl     time.Duration
	mu      sync.Mutex
	entries map[uint]*poolEntry
}

func NewWorkspacePool(cfg Config, ttl time.Duration, open Opener) *WorkspacePool {
	if open == nil {
		open = Open
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &WorkspacePool{
		cfg:     cfg,
		open:    open,
		ttl:     ttl,
		entries: make(map[uint]*poolEntry),
	}
}

// Get returns a cached handle for the workspace, opening a fresh one when
// missing or expired.
func (p *WorkspacePool) Get(workspaceID uint) (*DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[workspaceID]; ok {
		if time.Now().Before(entry.expiresAt) {
			return entry.db, nil
		}
		_ = entry.db.Close()
		delete(p.entries, workspaceID)
	}

	db, err := p.open(p.cfg, p.cfg.WorkspaceDSN(workspaceID))
	if err != nil {
		return nil, err
	}
	p.entries[workspaceID] = &poolEntry{db: db, expiresAt: time.Now().Add(p.ttl)}
	return db, nil
}

// Invalidate drops the cached handle for one workspace.
func (p *WorkspacePool) Invalidate(workspaceID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[workspaceID]; ok {
		_ = entry.db.Close()
		delete(p.entries, workspaceID)
	}
}

// Close releases every cached handle.
func (p *WorkspacePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, entry := range p.entries {
		_ = entry.db.Close()
		delete(p.entries, id)
	}
}
