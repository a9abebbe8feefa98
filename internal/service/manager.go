package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/metrics"
)

// Options configures a Manager. Zero values are usable.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Timeout bounds each operation, including its transaction; 0 disables it.
	Timeout time.Duration
}

// Manager implements domain.Service on top of a transactional store.
type Manager struct {
	store    domain.Store
	orch     *Orchestrator
	validate *Validator
}

var _ domain.Service = (*Manager)(nil)

func NewManager(store domain.Store, opts Options) *Manager {
	return &Manager{
		store:    store,
		orch:     NewOrchestrator(store, opts.Logger, opts.Metrics, opts.Timeout),
		validate: NewValidator(),
	}
}

// --- Deal leads ---

func (s *Manager) ReassignDealLead(ctx context.Context, dealID, requestingUserID uint, newLeadUserID *uint) (domain.Result, error) {
	return s.orch.Execute(ctx, &reassignLeadOp{
		v:           s.validate,
		dealID:      dealID,
		requesterID: requestingUserID,
		newLeadID:   newLeadUserID,
	})
}

// --- Resources ---

func (s *Manager) AddResourcesToDeal(ctx context.Context, dealID, submitterID uint, records []domain.ResourceRecord) (domain.Result, error) {
	return s.orch.Execute(ctx, &addResourcesOp{
		v:           s.validate,
		dealID:      dealID,
		submitterID: submitterID,
		// Normalization writes into the records; keep the caller's slice intact.
		records: append([]domain.ResourceRecord(nil), records...),
	})
}

// --- Therapeutic areas ---

func (s *Manager) AssignTherapeuticAreas(ctx context.Context, adminUserID, dealLeadID uint, areaIDs []uint) (domain.Result, error) {
	return s.orch.Execute(ctx, &areaOp{
		v:          s.validate,
		assign:     true,
		adminID:    adminUserID,
		dealLeadID: dealLeadID,
		areaIDs:    append([]uint(nil), areaIDs...),
	})
}

func (s *Manager) UnassignTherapeuticArea(ctx context.Context, adminUserID, dealLeadID, areaID uint) (domain.Result, error) {
	if areaID == 0 {
		return domain.Result{}, domain.ValidationFailed("therapeutic_area_id is required", "")
	}
	return s.orch.Execute(ctx, &areaOp{
		v:          s.validate,
		adminID:    adminUserID,
		dealLeadID: dealLeadID,
		areaIDs:    []uint{areaID},
	})
}

// --- Deals ---

func (s *Manager) CreateDeal(ctx context.Context, creatorID uint, in domain.DealInput) (*domain.Deal, error) {
	op := &createDealOp{v: s.validate, creatorID: creatorID, in: in}
	if _, err := s.orch.Execute(ctx, op); err != nil {
		return nil, err
	}
	return op.created, nil
}

func (s *Manager) UpdateDeal(ctx context.Context, dealID, modifierID uint, in domain.DealPatch) (*domain.Deal, error) {
	op := &updateDealOp{v: s.validate, dealID: dealID, modifierID: modifierID, patch: in}
	if _, err := s.orch.Execute(ctx, op); err != nil {
		return nil, err
	}
	return op.updated, nil
}

// --- Reads ---

// ActiveLead returns the deal's current lead, or nil when it has none.
func (s *Manager) ActiveLead(ctx context.Context, dealID uint) (*domain.User, error) {
	var lead *domain.User
	err := s.read(ctx, func(tx domain.Tx) error {
		if _, err := loadDeal(ctx, tx, dealID); err != nil {
			return err
		}
		m, err := tx.LeadMappings().First(ctx, domain.Conds{"deal_id": dealID, "is_deleted": false})
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		lead, err = tx.Users().Get(ctx, m.UserID)
		return err
	})
	return lead, err
}

// DealResources lists every resource with at least one active stage mapping
// on the deal, in mapping order.
func (s *Manager) DealResources(ctx context.Context, dealID uint) ([]domain.DealResource, error) {
	var out []domain.DealResource
	err := s.read(ctx, func(tx domain.Tx) error {
		if _, err := loadDeal(ctx, tx, dealID); err != nil {
			return err
		}
		mappings, err := tx.ResourceMappings().List(ctx, domain.Conds{"deal_id": dealID, "is_deleted": false})
		if err != nil {
			return err
		}

		stages := make(map[uint][]uint)
		var order []uint
		for _, m := range mappings {
			if _, ok := stages[m.UserID]; !ok {
				order = append(order, m.UserID)
			}
			stages[m.UserID] = append(stages[m.UserID], m.DealStageID)
		}

		out = make([]domain.DealResource, 0, len(order))
		for _, userID := range order {
			user, err := tx.Users().Get(ctx, userID)
			if err != nil {
				return err
			}
			r := domain.DealResource{User: *user, Stages: stages[userID]}
			info, err := tx.ResourceInfo().First(ctx, domain.Conds{"deal_id": dealID, "resource_id": userID})
			switch {
			case err == nil:
				r.Info = info
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// read runs fn in a transaction that is always rolled back.
func (s *Manager) read(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return domain.AsError(err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return domain.AsError(err)
	}
	return nil
}
