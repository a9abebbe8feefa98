package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
	"github.com/google/uuid"
)

// addResourcesOp upserts users by email, their per-deal info row, and their
// stage mappings for one deal. The batch is all-or-nothing.
type addResourcesOp struct {
	v           *Validator
	dealID      uint
	submitterID uint
	records     []domain.ResourceRecord

	deal         *domain.Deal
	submitter    *domain.User
	resourceRole *domain.Role
	resources    []resourcePlan
}

// resourcePlan is the resolved state of one record.
type resourcePlan struct {
	record domain.ResourceRecord
	user   *domain.User // nil until created when the email is new
	stages *junction[uint, domain.ResourceDealMapping]
	plan   reconcile.Plan[uint]
}

func (op *addResourcesOp) Name() string { return "add_resources_to_deal" }
func (op *addResourcesOp) DealID() uint { return op.dealID }

func (op *addResourcesOp) Validate(ctx context.Context, tx domain.Tx) error {
	checks := []Check{
		{Stage: StageInput, Name: "batch", Run: func(context.Context, domain.Tx) error {
			return op.validateInput()
		}},
		{Stage: StageExistence, Name: "deal", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.deal, err = loadDeal(ctx, tx, op.dealID)
			return err
		}},
		{Stage: StageExistence, Name: "submitter", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.submitter, err = tx.Users().Get(ctx, op.submitterID)
			return err
		}},
		{Stage: StageExistence, Name: "stages", Run: func(ctx context.Context, tx domain.Tx) error {
			var ids []uint
			for _, r := range op.records {
				ids = append(ids, r.Stages...)
			}
			return requireExists(ctx, tx.Stages(), distinct(ids)...)
		}},
		{Stage: StageExistence, Name: "line functions", Run: func(ctx context.Context, tx domain.Tx) error {
			ids := make([]uint, 0, len(op.records))
			for _, r := range op.records {
				ids = append(ids, r.LineFunctionID)
			}
			return requireExists(ctx, tx.LineFunctions(), distinct(ids)...)
		}},
		{Stage: StageExistence, Name: "resource role", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.resourceRole, err = tx.Roles().First(ctx, domain.Conds{"name": domain.RoleResource})
			return err
		}},
		{Stage: StageRole, Name: "submitter role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.submitter, domain.RoleSystemAdmin, domain.RoleDealLead)
		}},
		{Stage: StageMembership, Name: "submitter leads deal", Run: func(ctx context.Context, tx domain.Tx) error {
			if op.submitter.HasRole(domain.RoleSystemAdmin) {
				return nil
			}
			leads, err := isActiveLead(ctx, tx, op.submitter.ID, op.deal.ID)
			if err != nil {
				return err
			}
			if !leads {
				return domain.Ineligible("user %d is not the lead of deal %d", op.submitter.ID, op.deal.ID)
			}
			return nil
		}},
	}
	return op.v.Run(ctx, tx, checks)
}

func (op *addResourcesOp) validateInput() error {
	if err := requireIDs(idField{"deal_id", op.dealID}, idField{"submitter_id", op.submitterID}); err != nil {
		return err
	}
	if len(op.records) == 0 {
		return domain.ValidationFailed("records must not be empty", "")
	}
	seen := make(map[string]int, len(op.records))
	for i := range op.records {
		rec := &op.records[i]
		rec.Email = normalizeEmail(rec.Email)
		if err := op.v.Struct(fmt.Sprintf("records[%d]", i), rec); err != nil {
			return err
		}
		if first, dup := seen[rec.Email]; dup {
			return domain.ValidationFailed("duplicate email in batch",
				fmt.Sprintf("records[%d] and records[%d] share %s", first, i, rec.Email))
		}
		seen[rec.Email] = i
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (op *addResourcesOp) Diff(ctx context.Context, tx domain.Tx) error {
	op.resources = make([]resourcePlan, 0, len(op.records))
	for _, rec := range op.records {
		rp := resourcePlan{record: rec}

		// Stored emails may carry any case; the batch only ever sees lower case.
		user, err := tx.Users().FirstWhere(ctx, "LOWER(email) = ?", rec.Email)
		switch {
		case err == nil:
			rp.user = user
			if rp.stages, err = loadStages(ctx, tx, user.ID, op.dealID); err != nil {
				return err
			}
		case errors.Is(err, domain.ErrNotFound):
			// New resource: no mappings yet, the scope is bound once the user exists.
		default:
			return err
		}

		if rp.stages != nil {
			rp.plan = rp.stages.diff(rec.Stages)
		} else {
			rp.plan = reconcile.Diff(rec.Stages, nil)
		}
		op.resources = append(op.resources, rp)
	}
	return nil
}

func (op *addResourcesOp) Apply(ctx context.Context, tx domain.Tx, w *Writes) (domain.Result, error) {
	for i := range op.resources {
		rp := &op.resources[i]
		if err := op.upsertUser(ctx, tx, rp); err != nil {
			return domain.Result{}, err
		}
		if err := op.upsertInfo(ctx, tx, rp); err != nil {
			return domain.Result{}, err
		}
		if rp.stages == nil {
			rp.stages = emptyJunction(tx.ResourceMappings(), stageSpec(rp.user.ID, op.dealID))
		}
		if err := reconcile.Apply(ctx, rp.plan, rp.stages); err != nil {
			return domain.Result{}, err
		}
		recordPlan(w, assocResourceStage, rp.plan)
	}
	return domain.Success(fmt.Sprintf("%d resources added to deal %d", len(op.resources), op.dealID)), nil
}

func (op *addResourcesOp) upsertUser(ctx context.Context, tx domain.Tx, rp *resourcePlan) error {
	rec := rp.record
	if rp.user == nil {
		user := &domain.User{
			FirstName:  rec.FirstName,
			LastName:   rec.LastName,
			Email:      rec.Email,
			ExternalID: uuid.NewString(),
			RoleID:     op.resourceRole.ID,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		rp.user = user
		return nil
	}

	fields := map[string]any{}
	if rec.FirstName != "" && rec.FirstName != rp.user.FirstName {
		fields["first_name"] = rec.FirstName
	}
	if rec.LastName != "" && rec.LastName != rp.user.LastName {
		fields["last_name"] = rec.LastName
	}
	if len(fields) == 0 {
		return nil
	}
	return tx.Users().Update(ctx, rp.user.ID, fields)
}

func (op *addResourcesOp) upsertInfo(ctx context.Context, tx domain.Tx, rp *resourcePlan) error {
	rec := rp.record
	info, err := tx.ResourceInfo().First(ctx, domain.Conds{"deal_id": op.dealID, "resource_id": rp.user.ID})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		info = &domain.DealWiseResourceInfo{DealID: op.dealID, ResourceID: rp.user.ID}
	case err != nil:
		return err
	}

	info.LineFunctionID = rec.LineFunctionID
	info.VDRAccessRequested = rec.VDRAccessRequested
	info.WebTrainingStatus = rec.WebTrainingStatus
	info.OneToOneDiscussion = rec.OneToOneDiscussion
	info.OptionalColumn = rec.OptionalColumn
	info.IsCoreTeamMember = rec.IsCoreTeamMember

	if info.ID == 0 {
		return tx.ResourceInfo().Create(ctx, info)
	}
	return tx.ResourceInfo().Save(ctx, info)
}
