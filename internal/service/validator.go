package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Stage orders eligibility checks. The first failing check wins, so callers
// always get the highest-priority violation.
type Stage int

const (
	StageInput Stage = iota
	StageExistence
	StageRole
	StageMembership
	StageUniqueness
)

// Check is one eligibility rule evaluated inside the operation's transaction.
type Check struct {
	Stage Stage
	Name  string
	Run   func(ctx context.Context, tx domain.Tx) error
}

// Validator runs eligibility checks before any write of an operation.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Run evaluates checks ordered by stage (stable within a stage) and returns
// the first violation.
func (v *Validator) Run(ctx context.Context, tx domain.Tx, checks []Check) error {
	ordered := slices.Clone(checks)
	slices.SortStableFunc(ordered, func(a, b Check) int { return cmp.Compare(a.Stage, b.Stage) })
	for _, c := range ordered {
		if err := c.Run(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// Struct checks validate tags on an input value.
func (v *Validator) Struct(name string, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return domain.ValidationFailed("invalid "+name, strings.Join(parts, "; "))
	}
	return domain.ValidationFailed("invalid "+name, err.Error())
}

// --- Input ---

type idField struct {
	name string
	id   uint
}

func requireIDs(fields ...idField) error {
	for _, f := range fields {
		if f.id == 0 {
			return domain.ValidationFailed(f.name+" is required", "")
		}
	}
	return nil
}

// --- Existence ---

func loadDeal(ctx context.Context, tx domain.Tx, id uint) (*domain.Deal, error) {
	deal, err := tx.Deals().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if deal.IsDeleted {
		return nil, domain.NotFound("Deal", id)
	}
	return deal, nil
}

func requireExists[T any](ctx context.Context, repo domain.Repository[T], ids ...uint) error {
	for _, id := range ids {
		if _, err := repo.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// --- Role ---

func requireRole(u *domain.User, roles ...string) error {
	for _, r := range roles {
		if u.HasRole(r) {
			return nil
		}
	}
	return domain.InvalidRole(u.ID, roles...)
}

// --- Membership ---

func isActiveLead(ctx context.Context, tx domain.Tx, userID, dealID uint) (bool, error) {
	return tx.LeadMappings().Exists(ctx, "user_id = ? AND deal_id = ? AND is_deleted = ?", userID, dealID, false)
}

func requireAreaMembership(ctx context.Context, tx domain.Tx, userID, areaID uint) error {
	linked, err := tx.UserAreas().Exists(ctx,
		"user_id = ? AND therapeutic_area_id = ? AND is_deleted = ?", userID, areaID, false)
	if err != nil {
		return err
	}
	if !linked {
		return domain.Ineligible("user %d is not linked to therapeutic area %d", userID, areaID)
	}
	return nil
}

// --- Uniqueness ---

// requireUniqueDealName ignores the deal being updated (excludeID); 0 excludes nothing.
func requireUniqueDealName(ctx context.Context, tx domain.Tx, name string, excludeID uint) error {
	taken, err := tx.Deals().Exists(ctx, "name = ? AND id <> ?", name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return domain.Conflict("deal name %q is already in use", name)
	}
	return nil
}

func requireAreasUnassigned(ctx context.Context, tx domain.Tx, userID uint, areaIDs []uint) error {
	for _, areaID := range areaIDs {
		taken, err := tx.UserAreas().Exists(ctx,
			"user_id = ? AND therapeutic_area_id = ? AND is_deleted = ?", userID, areaID, false)
		if err != nil {
			return err
		}
		if taken {
			return domain.Conflict("therapeutic area %d is already assigned to user %d", areaID, userID)
		}
	}
	return nil
}

// distinct drops duplicates keeping first-seen order.
func distinct[K comparable](in []K) []K {
	seen := make(map[K]struct{}, len(in))
	out := make([]K, 0, len(in))
	for _, k := range in {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
