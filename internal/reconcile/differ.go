// Package reconcile computes the minimal mutations that bring a junction table
// in line with a desired association set, using tombstones instead of deletes.
package reconcile

import "context"

// Row is one persisted association, active or tombstoned.
type Row[K comparable] struct {
	Key        K
	Tombstoned bool
}

// Plan is the output of Diff. The three sets are disjoint.
type Plan[K comparable] struct {
	Create    []K
	Revive    []K
	Tombstone []K
}

// Empty reports whether applying the plan would change nothing.
func (p Plan[K]) Empty() bool {
	return len(p.Create) == 0 && len(p.Revive) == 0 && len(p.Tombstone) == 0
}

// Diff compares the desired keys with the persisted rows.
//
// Create holds desired keys with no row at all, Revive holds desired keys whose
// row is tombstoned, and Tombstone holds active rows that are no longer desired.
// Create and Revive keep the order of desired, Tombstone the order of current.
// Duplicate desired keys are collapsed; a key with both an active and a
// tombstoned row counts as active.
func Diff[K comparable](desired []K, current []Row[K]) Plan[K] {
	state := make(map[K]bool, len(current)) // key -> tombstoned
	for _, r := range current {
		if tomb, seen := state[r.Key]; seen {
			state[r.Key] = tomb && r.Tombstoned
			continue
		}
		state[r.Key] = r.Tombstoned
	}

	var plan Plan[K]
	want := make(map[K]struct{}, len(desired))
	for _, k := range desired {
		if _, dup := want[k]; dup {
			continue
		}
		want[k] = struct{}{}

		tomb, exists := state[k]
		switch {
		case !exists:
			plan.Create = append(plan.Create, k)
		case tomb:
			plan.Revive = append(plan.Revive, k)
		}
	}

	emitted := make(map[K]struct{})
	for _, r := range current {
		if r.Tombstoned || state[r.Key] {
			continue
		}
		if _, keep := want[r.Key]; keep {
			continue
		}
		if _, done := emitted[r.Key]; done {
			continue
		}
		emitted[r.Key] = struct{}{}
		plan.Tombstone = append(plan.Tombstone, r.Key)
	}
	return plan
}

// Applier performs the row-level writes of a plan inside a transaction.
type Applier[K comparable] interface {
	Create(ctx context.Context, key K) error
	Revive(ctx context.Context, key K) error
	Tombstone(ctx context.Context, key K) error
}

// Apply executes a plan: tombstones first, then revives, then creates, so a
// uniqueness constraint on active rows never sees two active rows at once.
// It stops at the first error.
func Apply[K comparable](ctx context.Context, plan Plan[K], a Applier[K]) error {
	for _, k := range plan.Tombstone {
		if err := a.Tombstone(ctx, k); err != nil {
			return err
		}
	}
	for _, k := range plan.Revive {
		if err := a.Revive(ctx, k); err != nil {
			return err
		}
	}
	for _, k := range plan.Create {
		if err := a.Create(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Rows converts persisted entities into diff input.
func Rows[T any, K comparable](items []T, key func(T) K, tombstoned func(T) bool) []Row[K] {
	out := make([]Row[K], 0, len(items))
	for _, it := range items {
		out = append(out, Row[K]{Key: key(it), Tombstoned: tombstoned(it)})
	}
	return out
}
