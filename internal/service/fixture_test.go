package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/metrics"
	"github.com/Shishlyannikovvv/dealflow/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixture is one isolated in-memory database with a Manager on top.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	store   *storage.Store
	svc     *Manager
	metrics *metrics.Metrics
	seq     int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	require.NoError(t, storage.Migrate(ctx, db))

	store := storage.NewStore(db)
	m := metrics.New(prometheus.NewRegistry())
	return &fixture{
		t:       t,
		ctx:     ctx,
		db:      db,
		store:   store,
		svc:     NewManager(store, Options{Logger: log, Metrics: m}),
		metrics: m,
	}
}

func (f *fixture) next() int {
	f.seq++
	return f.seq
}

func (f *fixture) user(role string) domain.User {
	f.t.Helper()
	var r domain.Role
	require.NoError(f.t, f.db.Where("name = ?", role).First(&r).Error)

	n := f.next()
	u := domain.User{
		FirstName:  role,
		LastName:   fmt.Sprint(n),
		Email:      fmt.Sprintf("user%d@example.com", n),
		ExternalID: fmt.Sprintf("ext-%d", n),
		RoleID:     r.ID,
	}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) area() domain.TherapeuticArea {
	f.t.Helper()
	a := domain.TherapeuticArea{Name: fmt.Sprintf("area-%d", f.next())}
	require.NoError(f.t, f.db.Create(&a).Error)
	return a
}

func (f *fixture) stage() domain.Stage {
	f.t.Helper()
	s := domain.Stage{Name: fmt.Sprintf("stage-%d", f.next())}
	require.NoError(f.t, f.db.Create(&s).Error)
	return s
}

func (f *fixture) lineFunction() domain.LineFunction {
	f.t.Helper()
	l := domain.LineFunction{Name: fmt.Sprintf("lf-%d", f.next())}
	require.NoError(f.t, f.db.Create(&l).Error)
	return l
}

func (f *fixture) deal(areaID, stageID uint) domain.Deal {
	f.t.Helper()
	d := domain.Deal{Name: fmt.Sprintf("deal-%d", f.next()), TherapeuticAreaID: areaID, CurrentStageID: stageID}
	require.NoError(f.t, f.db.Create(&d).Error)
	return d
}

func (f *fixture) linkArea(userID, areaID uint, deleted bool) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&domain.UserTherapeuticArea{UserID: userID, TherapeuticAreaID: areaID, IsDeleted: deleted}).Error)
}

func (f *fixture) leadMapping(dealID, userID uint, deleted bool) domain.DealLeadMapping {
	f.t.Helper()
	m := domain.DealLeadMapping{DealID: dealID, UserID: userID, IsDeleted: deleted}
	require.NoError(f.t, f.db.Create(&m).Error)
	return m
}

func (f *fixture) leadRows(dealID uint) []domain.DealLeadMapping {
	f.t.Helper()
	var rows []domain.DealLeadMapping
	require.NoError(f.t, f.db.Where("deal_id = ?", dealID).Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) areaRows(userID uint) []domain.UserTherapeuticArea {
	f.t.Helper()
	var rows []domain.UserTherapeuticArea
	require.NoError(f.t, f.db.Where("user_id = ?", userID).Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) stageRows(dealID uint) []domain.ResourceDealMapping {
	f.t.Helper()
	var rows []domain.ResourceDealMapping
	require.NoError(f.t, f.db.Where("deal_id = ?", dealID).Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) count(model any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Count(&n).Error)
	return n
}

// leadSetup is a deal in one area with an admin and a lead linked to that area.
type leadSetup struct {
	admin domain.User
	lead  domain.User
	area  domain.TherapeuticArea
	stage domain.Stage
	deal  domain.Deal
}

func (f *fixture) leadSetup() leadSetup {
	f.t.Helper()
	s := leadSetup{
		admin: f.user(domain.RoleSystemAdmin),
		lead:  f.user(domain.RoleDealLead),
		area:  f.area(),
		stage: f.stage(),
	}
	s.deal = f.deal(s.area.ID, s.stage.ID)
	f.linkArea(s.lead.ID, s.area.ID, false)
	return s
}

func activeKeys[T any](rows []T, key func(T) uint, deleted func(T) bool) []uint {
	var out []uint
	for _, r := range rows {
		if !deleted(r) {
			out = append(out, key(r))
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
