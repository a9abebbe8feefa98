//go:build integration

package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Shishlyannikovvv/dealflow/internal/config"
	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with DB_HOST (and friends) pointing at the docker-compose postgres:
//
//	go test -tags integration ./internal/service/
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	if cfg.Database.Driver != config.DriverPostgres {
		t.Skip("DB_HOST is not set")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := cfg.Database
	db, err := storage.NewPostgresDB(d.Host, d.User, d.Password, d.Name, d.Port, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	require.NoError(t, storage.Migrate(ctx, db))

	store := storage.NewStore(db)
	return &fixture{
		t:     t,
		ctx:   ctx,
		db:    db,
		store: store,
		svc:   NewManager(store, Options{Logger: log}),
		// Names must not collide with rows left by earlier runs.
		seq: int(time.Now().UnixNano() % 1e12),
	}
}

func TestReassignDealLead_PostgresDealLockSerializesWriters(t *testing.T) {
	f := newPostgresFixture(t)
	s := f.leadSetup()

	leads := make([]uint, 8)
	for i := range leads {
		u := f.user(domain.RoleDealLead)
		f.linkArea(u.ID, s.area.ID, false)
		leads[i] = u.ID
	}

	// Every writer waits on the deal row, then sees the previous writer's lead.
	var wg sync.WaitGroup
	for _, id := range leads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReassignDealLead(context.Background(), s.deal.ID, s.admin.ID, &id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows := f.leadRows(s.deal.ID)
	assert.Len(t, rows, len(leads))
	assert.Len(t, activeKeys(rows, leadKey, leadDeleted), 1)
}
