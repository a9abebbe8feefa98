package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
)

// areaOp assigns therapeutic areas to a deal lead (assign=true) or removes
// one (assign=false). Both directions go through tombstones.
type areaOp struct {
	v          *Validator
	assign     bool
	adminID    uint
	dealLeadID uint
	areaIDs    []uint

	admin    *domain.User
	dealLead *domain.User
	areas    *junction[uint, domain.UserTherapeuticArea]
	plan     reconcile.Plan[uint]
}

func (op *areaOp) Name() string {
	if op.assign {
		return "assign_therapeutic_areas"
	}
	return "unassign_therapeutic_area"
}

func (op *areaOp) DealID() uint { return 0 }

func (op *areaOp) Validate(ctx context.Context, tx domain.Tx) error {
	checks := []Check{
		{Stage: StageInput, Name: "ids", Run: func(context.Context, domain.Tx) error {
			if err := requireIDs(idField{"admin_user_id", op.adminID}, idField{"deal_lead_id", op.dealLeadID}); err != nil {
				return err
			}
			if len(op.areaIDs) == 0 {
				return domain.ValidationFailed("therapeutic_area_ids must not be empty", "")
			}
			if slices.Contains(op.areaIDs, 0) {
				return domain.ValidationFailed("therapeutic_area_ids must not contain 0", "")
			}
			op.areaIDs = distinct(op.areaIDs)
			return nil
		}},
		{Stage: StageExistence, Name: "admin", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.admin, err = tx.Users().Get(ctx, op.adminID)
			return err
		}},
		{Stage: StageExistence, Name: "deal lead", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.dealLead, err = tx.Users().Get(ctx, op.dealLeadID)
			return err
		}},
		{Stage: StageExistence, Name: "therapeutic areas", Run: func(ctx context.Context, tx domain.Tx) error {
			return requireExists(ctx, tx.TherapeuticAreas(), op.areaIDs...)
		}},
		{Stage: StageRole, Name: "admin role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.admin, domain.RoleSystemAdmin)
		}},
		{Stage: StageRole, Name: "deal lead role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.dealLead, domain.RoleDealLead)
		}},
	}

	if op.assign {
		checks = append(checks, Check{Stage: StageUniqueness, Name: "not yet assigned", Run: func(ctx context.Context, tx domain.Tx) error {
			return requireAreasUnassigned(ctx, tx, op.dealLeadID, op.areaIDs)
		}})
	} else {
		checks = append(checks, Check{Stage: StageExistence, Name: "assignment", Run: func(ctx context.Context, tx domain.Tx) error {
			linked, err := tx.UserAreas().Exists(ctx,
				"user_id = ? AND therapeutic_area_id = ? AND is_deleted = ?", op.dealLeadID, op.areaIDs[0], false)
			if err != nil {
				return err
			}
			if !linked {
				return domain.NotFound("UserTherapeuticArea", fmt.Sprintf("%d/%d", op.dealLeadID, op.areaIDs[0]))
			}
			return nil
		}})
	}

	return op.v.Run(ctx, tx, checks)
}

func (op *areaOp) Diff(ctx context.Context, tx domain.Tx) error {
	areas, err := loadAreas(ctx, tx, op.dealLeadID)
	if err != nil {
		return err
	}
	op.areas = areas

	var desired []uint
	if op.assign {
		desired = append(areas.active(), op.areaIDs...)
	} else {
		for _, id := range areas.active() {
			if id != op.areaIDs[0] {
				desired = append(desired, id)
			}
		}
	}
	op.plan = areas.diff(desired)
	return nil
}

func (op *areaOp) Apply(ctx context.Context, tx domain.Tx, w *Writes) (domain.Result, error) {
	if err := reconcile.Apply(ctx, op.plan, op.areas); err != nil {
		return domain.Result{}, err
	}
	recordPlan(w, assocUserArea, op.plan)

	if op.assign {
		return domain.Success(fmt.Sprintf("%d therapeutic areas assigned to user %d", len(op.areaIDs), op.dealLeadID)), nil
	}
	return domain.Success(fmt.Sprintf("Therapeutic area %d unassigned from user %d", op.areaIDs[0], op.dealLeadID)), nil
}
