package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shishlyannikovvv/dealflow/internal/domain"
	"github.com/Shishlyannikovvv/dealflow/internal/metrics"
	"github.com/Shishlyannikovvv/dealflow/internal/reconcile"
	"github.com/google/uuid"
)

// Phase is the lifecycle state of one orchestrated operation.
type Phase string

const (
	PhaseStarted    Phase = "started"
	PhaseValidating Phase = "validating"
	PhaseDiffing    Phase = "diffing"
	PhaseApplying   Phase = "applying"
	PhaseCommitted  Phase = "committed"
	PhaseRolledBack Phase = "rolled_back"
)

// Operation is one reconciliation run by the Orchestrator. Implementations
// are built per request and keep their intermediate state in their own fields.
type Operation interface {
	Name() string
	// DealID is the deal to lock for the transaction; 0 means no lock.
	DealID() uint
	Validate(ctx context.Context, tx domain.Tx) error
	Diff(ctx context.Context, tx domain.Tx) error
	Apply(ctx context.Context, tx domain.Tx, w *Writes) (domain.Result, error)
}

// Orchestrator runs operations inside a single transaction and commits only
// when every phase succeeded.
type Orchestrator struct {
	store   domain.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewOrchestrator(store domain.Store, log *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, log: log, metrics: m, timeout: timeout}
}

// Execute runs op to Committed or RolledBack. Every failure comes back as a
// *domain.Error; the operation is never retried here.
func (o *Orchestrator) Execute(ctx context.Context, op Operation) (domain.Result, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	log := o.log.With("operation", op.Name(), "op_id", uuid.NewString(), "deal_id", op.DealID())
	log.Debug("operation phase", "phase", PhaseStarted)

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return o.finish(log, op, PhaseStarted, start, nil, domain.Result{}, err)
	}

	done := false
	defer func() {
		// Panics still release the transaction.
		if !done {
			_ = tx.Rollback()
		}
	}()

	w := newWrites()
	res, phase, err := o.run(ctx, tx, op, w, log)
	if err == nil {
		// A cancelled caller must never get a commit.
		err = ctx.Err()
	}
	if err != nil {
		done = true
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("rollback failed", "phase", phase, "error", rbErr)
		}
		return o.finish(log, op, phase, start, nil, domain.Result{}, err)
	}

	done = true
	if err := tx.Commit(); err != nil {
		// Deferred constraints and serialization failures surface here.
		return o.finish(log, op, PhaseApplying, start, nil, domain.Result{}, err)
	}
	return o.finish(log, op, PhaseCommitted, start, w, res, nil)
}

func (o *Orchestrator) run(ctx context.Context, tx domain.Tx, op Operation, w *Writes, log *slog.Logger) (domain.Result, Phase, error) {
	if id := op.DealID(); id != 0 {
		if err := tx.LockDeal(ctx, id); err != nil {
			return domain.Result{}, PhaseStarted, err
		}
	}

	log.Debug("operation phase", "phase", PhaseValidating)
	if err := op.Validate(ctx, tx); err != nil {
		return domain.Result{}, PhaseValidating, err
	}

	log.Debug("operation phase", "phase", PhaseDiffing)
	if err := op.Diff(ctx, tx); err != nil {
		return domain.Result{}, PhaseDiffing, err
	}

	log.Debug("operation phase", "phase", PhaseApplying)
	res, err := op.Apply(ctx, tx, w)
	if err != nil {
		return domain.Result{}, PhaseApplying, err
	}
	return res, PhaseApplying, nil
}

func (o *Orchestrator) finish(log *slog.Logger, op Operation, phase Phase, start time.Time, w *Writes, res domain.Result, err error) (domain.Result, error) {
	elapsed := time.Since(start)
	if err != nil {
		derr := domain.AsError(err)
		level := slog.LevelWarn
		if derr.Kind == domain.KindInternal {
			level = slog.LevelError
		}
		log.Log(context.Background(), level, "operation rolled back",
			"failed_phase", phase, "kind", derr.Kind, "error", derr.Error(), "duration", elapsed)
		o.metrics.ObserveOperation(op.Name(), string(PhaseRolledBack), string(derr.Kind), elapsed)
		return domain.Result{}, derr
	}

	w.flush(o.metrics)
	log.Info("operation committed", "duration", elapsed)
	o.metrics.ObserveOperation(op.Name(), string(PhaseCommitted), "none", elapsed)
	return res, nil
}

// --- Write accounting ---

// Writes tallies the association mutations of one operation. They are only
// reported once the transaction commits.
type Writes struct {
	counts map[string]*[3]int // association -> create, revive, tombstone
}

func newWrites() *Writes {
	return &Writes{counts: make(map[string]*[3]int)}
}

func recordPlan[K comparable](w *Writes, association string, plan reconcile.Plan[K]) {
	if w == nil {
		return
	}
	c, ok := w.counts[association]
	if !ok {
		c = new([3]int)
		w.counts[association] = c
	}
	c[0] += len(plan.Create)
	c[1] += len(plan.Revive)
	c[2] += len(plan.Tombstone)
}

// Total returns the committed-to-be mutation count for association.
func (w *Writes) Total(association string) (created, revived, tombstoned int) {
	if c, ok := w.counts[association]; ok {
		return c[0], c[1], c[2]
	}
	return 0, 0, 0
}

func (w *Writes) flush(m *metrics.Metrics) {
	if w == nil {
		return
	}
	for association, c := range w.counts {
		m.AddWrites(association, c[0], c[1], c[2])
	}
}
