package service

import (
	"context"
	"fmt"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
)

// Association labels used in logs and metrics
const (
	assocDealLead      = "deal_lead"
	assocResourceStage = "resource_stage"
	assocUserArea      = "user_area"
)

// junctionSpec describes how a junction row maps to a reconcile key.
type junctionSpec[K comparable, T any] struct {
	key        func(T) K
	id         func(T) uint
	tombstoned func(T) bool
	build      func(K) *T
}

// junction is the persisted state of one association scope plus the writer
// that applies a reconcile.Plan to it. It never deletes rows.
type junction[K comparable, T any] struct {
	repo domain.Repository[T]
	spec junctionSpec[K, T]
	ids  map[K]uint
	rows []reconcile.Row[K]
}

var _ reconcile.Applier[uint] = (*junction[uint, domain.DealLeadMapping])(nil)

func loadJunction[K comparable, T any](ctx context.Context, repo domain.Repository[T], scope domain.Conds, spec junctionSpec[K, T]) (*junction[K, T], error) {
	items, err := repo.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	j := &junction[K, T]{
		repo: repo,
		spec: spec,
		ids:  make(map[K]uint, len(items)),
		rows: reconcile.Rows(items, spec.key, spec.tombstoned),
	}
	for _, it := range items {
		j.ids[spec.key(it)] = spec.id(it)
	}
	return j, nil
}

// emptyJunction is the state of a scope known to have no rows yet.
func emptyJunction[K comparable, T any](repo domain.Repository[T], spec junctionSpec[K, T]) *junction[K, T] {
	return &junction[K, T]{repo: repo, spec: spec, ids: map[K]uint{}}
}

// active returns the keys of non-tombstoned rows.
func (j *junction[K, T]) active() []K {
	var out []K
	for _, r := range j.rows {
		if !r.Tombstoned {
			out = append(out, r.Key)
		}
	}
	return out
}

func (j *junction[K, T]) diff(desired []K) reconcile.Plan[K] {
	return reconcile.Diff(desired, j.rows)
}

func (j *junction[K, T]) Create(ctx context.Context, key K) error {
	return j.repo.Create(ctx, j.spec.build(key))
}

func (j *junction[K, T]) Revive(ctx context.Context, key K) error {
	return j.setDeleted(ctx, key, false)
}

func (j *junction[K, T]) Tombstone(ctx context.Context, key K) error {
	return j.setDeleted(ctx, key, true)
}

func (j *junction[K, T]) setDeleted(ctx context.Context, key K, deleted bool) error {
	id, ok := j.ids[key]
	if !ok {
		return domain.Internal(fmt.Errorf("no persisted row for key %v", key))
	}
	return j.repo.Update(ctx, id, map[string]any{"is_deleted": deleted})
}

// --- Specs ---

func leadSpec(dealID uint) junctionSpec[uint, domain.DealLeadMapping] {
	return junctionSpec[uint, domain.DealLeadMapping]{
		key:        func(m domain.DealLeadMapping) uint { return m.UserID },
		id:         func(m domain.DealLeadMapping) uint { return m.ID },
		tombstoned: func(m domain.DealLeadMapping) bool { return m.IsDeleted },
		build: func(userID uint) *domain.DealLeadMapping {
			return &domain.DealLeadMapping{UserID: userID, DealID: dealID}
		},
	}
}

func loadLeads(ctx context.Context, tx domain.Tx, dealID uint) (*junction[uint, domain.DealLeadMapping], error) {
	return loadJunction(ctx, tx.LeadMappings(), domain.Conds{"deal_id": dealID}, leadSpec(dealID))
}

// stageSpec scopes resource mappings to one (resource, deal) pair, keyed by stage.
func stageSpec(userID, dealID uint) junctionSpec[uint, domain.ResourceDealMapping] {
	return junctionSpec[uint, domain.ResourceDealMapping]{
		key:        func(m domain.ResourceDealMapping) uint { return m.DealStageID },
		id:         func(m domain.ResourceDealMapping) uint { return m.ID },
		tombstoned: func(m domain.ResourceDealMapping) bool { return m.IsDeleted },
		build: func(stageID uint) *domain.ResourceDealMapping {
			return &domain.ResourceDealMapping{UserID: userID, DealID: dealID, DealStageID: stageID}
		},
	}
}

func loadStages(ctx context.Context, tx domain.Tx, userID, dealID uint) (*junction[uint, domain.ResourceDealMapping], error) {
	return loadJunction(ctx, tx.ResourceMappings(), domain.Conds{"user_id": userID, "deal_id": dealID}, stageSpec(userID, dealID))
}

func areaSpec(userID uint) junctionSpec[uint, domain.UserTherapeuticArea] {
	return junctionSpec[uint, domain.UserTherapeuticArea]{
		key:        func(m domain.UserTherapeuticArea) uint { return m.TherapeuticAreaID },
		id:         func(m domain.UserTherapeuticArea) uint { return m.ID },
		tombstoned: func(m domain.UserTherapeuticArea) bool { return m.IsDeleted },
		build: func(areaID uint) *domain.UserTherapeuticArea {
			return &domain.UserTherapeuticArea{UserID: userID, TherapeuticAreaID: areaID}
		},
	}
}

func loadAreas(ctx context.Context, tx domain.Tx, userID uint) (*junction[uint, domain.UserTherapeuticArea], error) {
	return loadJunction(ctx, tx.UserAreas(), domain.Conds{"user_id": userID}, areaSpec(userID))
}
