package repository

import (
	"context"

	"golang-workspace-automation/pkg/postgres"
)

// Stores bundles the repositories bound to one workspace database handle.
type Stores struct {
	UnitOfWork   UnitOfWork
	Integrations IntegrationRepository
	SyncRuns     SyncRunRepository
	Outcomes     SyncOutcomeRepository
	Subscribers  SubscriberRepository
	Automation   AutomationRepository
}

// StoreProvider builds workspace-scoped stores on demand. Every workspace
// gets its own handle; no cross-workspace transaction ever exists.
type StoreProvider interface {
	For(ctx context.Context, workspaceID uint) (*Stores, error)
}

type storeProvider struct {
	pool *postgres.WorkspacePool
}

func NewStoreProvider(pool *postgres.WorkspacePool) StoreProvider {
	return &storeProvider{pool: pool}
}

func (p *storeProvider) For(_ context.Context, workspaceID uint) (*Stores, error) {
	handle, err := p.pool.Get(workspaceID)
	if err != nil {
		return nil, err
	}
	db := handle.DB
	return &Stores{
		UnitOfWork:   NewUnitOfWork(db),
		Integrations: NewIntegrationRepository(db),
		SyncRuns:     NewSyncRunRepository(db),
		Outcomes:     NewSyncOutcomeRepository(db),
		Subscribers:  NewSubscriberRepository(db),
		Automation:   NewAutomationRepository(db),
	}, nil
}
