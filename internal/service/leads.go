package service

import (
	"context"
	"fmt"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
)

// reassignLeadOp moves a deal to a new lead, or unassigns it when newLeadID is nil.
//
// The previous lead is tombstoned before the new one is revived or created,
// so a deal never has two active leads inside the transaction, and a
// (user, deal) pair never gets a second physical row.
type reassignLeadOp struct {
	v           *Validator
	dealID      uint
	requesterID uint
	newLeadID   *uint

	deal      *domain.Deal
	requester *domain.User
	nominee   *domain.User
	leads     *junction[uint, domain.DealLeadMapping]
	plan      reconcile.Plan[uint]
}

func (op *reassignLeadOp) Name() string { return "reassign_deal_lead" }
func (op *reassignLeadOp) DealID() uint { return op.dealID }

func (op *reassignLeadOp) Validate(ctx context.Context, tx domain.Tx) error {
	checks := []Check{
		{Stage: StageInput, Name: "ids", Run: func(context.Context, domain.Tx) error {
			fields := []idField{{"deal_id", op.dealID}, {"requesting_user_id", op.requesterID}}
			if op.newLeadID != nil {
				fields = append(fields, idField{"new_lead_user_id", *op.newLeadID})
			}
			return requireIDs(fields...)
		}},
		{Stage: StageExistence, Name: "deal", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.deal, err = loadDeal(ctx, tx, op.dealID)
			return err
		}},
		{Stage: StageExistence, Name: "requester", Run: func(ctx context.Context, tx domain.Tx) (err error) {
			op.requester, err = tx.Users().Get(ctx, op.requesterID)
			return err
		}},
		{Stage: StageRole, Name: "requester role", Run: func(context.Context, domain.Tx) error {
			return requireRole(op.requester, domain.RoleSystemAdmin)
		}},
	}

	if op.newLeadID != nil {
		checks = append(checks,
			Check{Stage: StageExistence, Name: "nominee", Run: func(ctx context.Context, tx domain.Tx) (err error) {
				op.nominee, err = tx.Users().Get(ctx, *op.newLeadID)
				return err
			}},
			Check{Stage: StageRole, Name: "nominee role", Run: func(context.Context, domain.Tx) error {
				return requireRole(op.nominee, domain.RoleDealLead)
			}},
			Check{Stage: StageMembership, Name: "nominee therapeutic area", Run: func(ctx context.Context, tx domain.Tx) error {
				// Re-submitting the current lead is a no-op, whatever their areas are now.
				current, err := isActiveLead(ctx, tx, op.nominee.ID, op.deal.ID)
				if err != nil || current {
					return err
				}
				return requireAreaMembership(ctx, tx, op.nominee.ID, op.deal.TherapeuticAreaID)
			}},
		)
	}

	return op.v.Run(ctx, tx, checks)
}

func (op *reassignLeadOp) Diff(ctx context.Context, tx domain.Tx) error {
	leads, err := loadLeads(ctx, tx, op.dealID)
	if err != nil {
		return err
	}
	op.leads = leads

	var desired []uint
	if op.newLeadID != nil {
		desired = []uint{*op.newLeadID}
	}
	op.plan = leads.diff(desired)
	return nil
}

func (op *reassignLeadOp) Apply(ctx context.Context, tx domain.Tx, w *Writes) (domain.Result, error) {
	if op.plan.Empty() {
		return domain.Success("Deal lead unchanged"), nil
	}
	if err := reconcile.Apply(ctx, op.plan, op.leads); err != nil {
		return domain.Result{}, err
	}
	recordPlan(w, assocDealLead, op.plan)

	if err := tx.Deals().Update(ctx, op.dealID, map[string]any{"modified_by": op.requesterID}); err != nil {
		return domain.Result{}, err
	}

	if op.newLeadID == nil {
		return domain.Success("Deal lead unassigned"), nil
	}
	return domain.Success(fmt.Sprintf("Deal lead updated to user %d", *op.newLeadID)), nil
}
