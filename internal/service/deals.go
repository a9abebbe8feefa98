package service

import (
	"context"
	"strings"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
)

// --- Create ---

type createDealOp struct {
	v         *Validator
	creatorID uint
	in        domain.DealInput

	creator *domain.User
	lead    *domain.User
	plan    reconcile.Plan[uint]
	created *domain.Deal
}

func (op *createDealOp) Name() string { return "create_deal" }
func (op *createDealOp) DealID() uint { return 0 }

func (op *createDealOp) Validate(ctx context.Context, tx domain.Tx) error {
	op.in.Name = strings.TrimSpace(op.in.Name)
	checks := []Check{
		{Stage: StageInput, Name: "input", Run: func(context.Context, domain.Tx) error {
			if err := requireIDs(idField{"creator_id", op.creatorID}); err != nil {
				return err
			}
			if op.in.LeadUserID != nil && *op.in.LeadUserID == 0 {
				return domain.ValidationFailed("lead_user_id must not be 0", "")
			}
			return op.v.Struct("deal", op.in)
		}},
		{Stage: StageExistence, Name: "creator", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.creator, err = tx.Users().Get(ctx, op.creatorID)
			return err
		}},
		{Stage: StageExistence, Name: "stage", Run: func(ctx context.Context, tx domain.Tx) error {
			return requireExists(ctx, tx.Stages(), op.in.StageID)
		}},
		{Stage: StageExistence, Name: "therapeutic area", Run: func(ctx context.Context, tx domain.Tx) error {
			return requireExists(ctx, tx.TherapeuticAreas(), op.in.TherapeuticAreaID)
		}},
		{Stage: StageRole, Name: "creator role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.creator, domain.RoleSystemAdmin)
		}},
		{Stage: StageUniqueness, Name: "deal name", Run: func(ctx context.Context, tx domain.Tx) error {
			return requireUniqueDealName(ctx, tx, op.in.Name, 0)
		}},
	}

	if op.in.LeadUserID != nil {
		checks = append(checks,
			Check{Stage: StageExistence, Name: "lead", Run: func(ctx context.Context, tx domain.Tx) (err error) {
				op.lead, err = tx.Users().Get(ctx, *op.in.LeadUserID)
				return err
			}},
			Check{Stage: StageRole, Name: "lead role", Run: func(context.Context, domain.Tx) error {
				return requireRole(op.lead, domain.RoleDealLead)
			}},
			Check{Stage: StageMembership, Name: "lead therapeutic area", Run: func(ctx context.Context, tx domain.Tx) error {
				return requireAreaMembership(ctx, tx, op.lead.ID, op.in.TherapeuticAreaID)
			}},
		)
	}
	return op.v.Run(ctx, tx, checks)
}

func (op *createDealOp) Diff(context.Context, domain.Tx) error {
	// A new deal has no lead rows.
	var desired []uint
	if op.in.LeadUserID != nil {
		desired = []uint{*op.in.LeadUserID}
	}
	op.plan = reconcile.Diff(desired, nil)
	return nil
}

func (op *createDealOp) Apply(ctx context.Context, tx domain.Tx, w *Writes) (domain.Result, error) {
	deal := &domain.Deal{
		Name:              op.in.Name,
		CurrentStageID:    op.in.StageID,
		TherapeuticAreaID: op.in.TherapeuticAreaID,
		CreatedBy:         op.creatorID,
		ModifiedBy:        op.creatorID,
	}
	if err := tx.Deals().Create(ctx, deal); err != nil {
		return domain.Result{}, err
	}

	leads := emptyJunction(tx.LeadMappings(), leadSpec(deal.ID))
	if err := reconcile.Apply(ctx, op.plan, leads); err != nil {
		return domain.Result{}, err
	}
	recordPlan(w, assocDealLead, op.plan)

	op.created = deal
	return domain.Success("Deal created"), nil
}

// --- Update ---

type updateDealOp struct {
	v          *Validator
	dealID     uint
	modifierID uint
	patch      domain.DealPatch

	deal     *domain.Deal
	modifier *domain.User
	fields   map[string]any
	updated  *domain.Deal
}

func (op *updateDealOp) Name() string { return "update_deal" }
func (op *updateDealOp) DealID() uint { return op.dealID }

func (op *updateDealOp) Validate(ctx context.Context, tx domain.Tx) error {
	if op.patch.Name != nil {
		name := strings.TrimSpace(*op.patch.Name)
		op.patch.Name = &name
	}
	p := op.patch
	checks := []Check{
		{Stage: StageInput, Name: "input", Run: func(context.Context, domain.Tx) error {
			if err := requireIDs(idField{"deal_id", op.dealID}, idField{"modifier_id", op.modifierID}); err != nil {
				return err
			}
			if p.Name == nil && p.StageID == nil && p.TherapeuticAreaID == nil {
				return domain.ValidationFailed("nothing to update", "")
			}
			return op.v.Struct("deal patch", p)
		}},
		{Stage: StageExistence, Name: "deal", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.deal, err = loadDeal(ctx, tx, op.dealID)
			return err
		}},
		{Stage: StageExistence, Name: "modifier", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.modifier, err = tx.Users().Get(ctx, op.modifierID)
			return err
		}},
		{Stage: StageExistence, Name: "stage", Run: func(ctx context.Context, tx domain.Tx) error {
			if p.StageID == nil {
				return nil
			}
			return requireExists(ctx, tx.Stages(), *p.StageID)
		}},
		{Stage: StageExistence, Name: "therapeutic area", Run: func(ctx context.Context, tx domain.Tx) error {
			if p.TherapeuticAreaID == nil {
				return nil
			}
			return requireExists(ctx, tx.TherapeuticAreas(), *p.TherapeuticAreaID)
		}},
		{Stage: StageRole, Name: "modifier role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.modifier, domain.RoleSystemAdmin, domain.RoleDealLead)
		}},
		{Stage: StageMembership, Name: "modifier leads deal", Run: func(ctx context.Context, tx domain.Tx) error {
			if op.modifier.HasRole(domain.RoleSystemAdmin) {
				return nil
			}
			leads, err := isActiveLead(ctx, tx, op.modifier.ID, op.deal.ID)
			if err != nil {
				return err
			}
			if !leads {
				return domain.Ineligible("user %d is not the lead of deal %d", op.modifier.ID, op.deal.ID)
			}
			return nil
		}},
		{Stage: StageUniqueness, Name: "deal name", Run: func(ctx context.Context, tx domain.Tx) error {
			if p.Name == nil {
				return nil
			}
			return requireUniqueDealName(ctx, tx, *p.Name, op.dealID)
		}},
	}
	return op.v.Run(ctx, tx, checks)
}

func (op *updateDealOp) Diff(context.Context, domain.Tx) error {
	op.fields = map[string]any{}
	if n := op.patch.Name; n != nil && *n != op.deal.Name {
		op.fields["name"] = *n
	}
	if s := op.patch.StageID; s != nil && *s != op.deal.CurrentStageID {
		op.fields["current_stage_id"] = *s
	}
	if a := op.patch.TherapeuticAreaID; a != nil && *a != op.deal.TherapeuticAreaID {
		op.fields["therapeutic_area_id"] = *a
	}
	return nil
}

func (op *updateDealOp) Apply(ctx context.Context, tx domain.Tx, _ *Writes) (domain.Result, error) {
	if len(op.fields) == 0 {
		op.updated = op.deal
		return domain.Success("Deal unchanged"), nil
	}
	op.fields["modified_by"] = op.modifierID
	if err := tx.Deals().Update(ctx, op.dealID, op.fields); err != nil {
		return domain.Result{}, err
	}
	updated, err := tx.Deals().Get(ctx, op.dealID)
	if err != nil {
		return domain.Result{}, err
	}
	op.updated = updated
	return domain.Success("Deal updated"), nil
}
