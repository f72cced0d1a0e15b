package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type op int

const (
	opRetract op = iota
	opCast
)

type step struct {
	op   op
	kind Kind
}

// targets is indexed by the state the caller believes in, then the requested
// kind. Requesting the kind already held retracts it; requesting the other
// kind swaps.
var targets = map[State]map[Kind]State{
	StateNone:     {KindLike: StateLiked, KindDislike: StateDisliked},
	StateLiked:    {KindLike: StateNone, KindDislike: StateDisliked},
	StateDisliked: {KindLike: StateLiked, KindDislike: StateNone},
}

// stepsBetween lists the store operations that move the stored vote from
// one state to another. Equal states need none.
func stepsBetween(from, to State) []step {
	if from == to {
		return nil
	}
	var steps []step
	if k, ok := kindOf(from); ok {
		steps = append(steps, step{opRetract, k})
	}
	if k, ok := kindOf(to); ok {
		steps = append(steps, step{opCast, k})
	}
	return steps
}

func kindOf(s State) (Kind, bool) {
	switch s {
	case StateLiked:
		return KindLike, true
	case StateDisliked:
		return KindDislike, true
	}
	return "", false
}

type flightKey struct {
	viewerID string
	recipeID int
}

// Reconciler applies like/dislike requests against a VoteStore while keeping
// at most one vote per viewer and recipe.
type Reconciler struct {
	store    VoteStore
	identity IdentityProvider
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[flightKey]struct{}
}

func NewReconciler(store VoteStore, identity IdentityProvider, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		identity: identity,
		logger:   logger,
		inFlight: make(map[flightKey]struct{}),
	}
}

// Submit registers the current viewer's requested kind on recipeID, starting
// from current. On any error the returned snapshot is current, unchanged.
//
// The target state follows from current.Viewer and requested, but the steps
// are planned against the vote read back from the store, so a stale
// snapshot never moves the counters further than the vote records move.
//
// Concurrent calls for the same viewer and recipe are rejected with ErrBusy.
// Calls from different viewers are not serialized here; the store's relative
// counter deltas are what keep concurrent writers from losing updates.
func (r *Reconciler) Submit(ctx context.Context, recipeID int, requested Kind, current Snapshot) (Snapshot, error) {
	viewerID, ok := r.identity.CurrentViewer(ctx)
	if !ok || viewerID == "" {
		return current, ErrUnauthenticated
	}
	if !requested.Valid() {
		return current, fmt.Errorf("%w: %q", ErrInvalidKind, requested)
	}

	key := flightKey{viewerID: viewerID, recipeID: recipeID}
	if !r.acquire(key) {
		return current, ErrBusy
	}
	defer r.release(key)

	byKind, ok := targets[current.Viewer]
	if !ok {
		byKind = targets[StateNone]
	}
	target := byKind[requested]

	next, err := r.apply(ctx, recipeID, viewerID, target, current)
	if err != nil {
		r.logger.Warn("feedback reconciliation failed",
			zap.Int("recipe_id", recipeID),
			zap.String("viewer_id", viewerID),
			zap.String("requested", string(requested)),
			zap.String("from", string(current.Viewer)),
			zap.Error(err))
		return current, fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	}

	r.logger.Debug("feedback reconciled",
		zap.Int("recipe_id", recipeID),
		zap.String("viewer_id", viewerID),
		zap.String("from", string(current.Viewer)),
		zap.String("to", string(next.Viewer)),
		zap.Int("likes", next.Likes),
		zap.Int("dislikes", next.Dislikes))
	return next, nil
}

// ViewerState recomputes the current viewer's state on recipeID from the
// store. Without a viewer the state is StateNone.
func (r *Reconciler) ViewerState(ctx context.Context, recipeID int) (State, error) {
	viewerID, ok := r.identity.CurrentViewer(ctx)
	if !ok || viewerID == "" {
		return StateNone, nil
	}
	kind, err := r.store.GetViewerVote(ctx, recipeID, viewerID)
	if err != nil {
		return StateNone, err
	}
	return StateOf(kind), nil
}

func (r *Reconciler) apply(ctx context.Context, recipeID int, viewerID string, target State, current Snapshot) (Snapshot, error) {
	tx, ok := r.store.(Transactor)
	if !ok {
		return r.run(ctx, r.store, recipeID, viewerID, target, current)
	}

	var next Snapshot
	err := tx.WithinTx(ctx, func(s VoteStore) error {
		var err error
		next, err = r.run(ctx, s, recipeID, viewerID, target, current)
		return err
	})
	return next, err
}

// run reads the stored vote, then executes the steps toward target strictly
// in order; a failed step stops the sequence.
func (r *Reconciler) run(ctx context.Context, s VoteStore, recipeID int, viewerID string, target State, current Snapshot) (Snapshot, error) {
	kind, err := s.GetViewerVote(ctx, recipeID, viewerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read stored vote: %w", err)
	}
	stored := StateOf(kind)
	if stored != current.Viewer {
		r.logger.Debug("stale viewer state",
			zap.Int("recipe_id", recipeID),
			zap.String("viewer_id", viewerID),
			zap.String("believed", string(current.Viewer)),
			zap.String("stored", string(stored)))
	}

	steps := stepsBetween(stored, target)
	if len(steps) == 0 {
		// Already there: report the stored counters without changing them.
		counters, err := s.AdjustCounters(ctx, recipeID, Delta{})
		if err != nil {
			return Snapshot{}, fmt.Errorf("read counters: %w", err)
		}
		return Snapshot{Counters: counters, Viewer: target}, nil
	}

	counters := current.Counters
	for _, st := range steps {
		switch st.op {
		case opRetract:
			err := s.DeleteVote(ctx, recipeID, viewerID, st.kind)
			if errors.Is(err, ErrVoteNotFound) {
				// Already gone: nothing to uncount.
				r.logger.Debug("retracting absent vote",
					zap.Int("recipe_id", recipeID),
					zap.String("viewer_id", viewerID),
					zap.String("kind", string(st.kind)))
				continue
			}
			if err != nil {
				return Snapshot{}, fmt.Errorf("retract %s vote: %w", st.kind, err)
			}
			counters, err = s.AdjustCounters(ctx, recipeID, deltaFor(st.kind, -1))
			if err != nil {
				return Snapshot{}, fmt.Errorf("decrement %s count: %w", st.kind, err)
			}
		case opCast:
			if err := s.InsertVote(ctx, recipeID, viewerID, st.kind); err != nil {
				return Snapshot{}, fmt.Errorf("insert %s vote: %w", st.kind, err)
			}
			var err error
			counters, err = s.AdjustCounters(ctx, recipeID, deltaFor(st.kind, 1))
			if err != nil {
				return Snapshot{}, fmt.Errorf("increment %s count: %w", st.kind, err)
			}
		}
	}
	return Snapshot{Counters: counters, Viewer: target}, nil
}

func (r *Reconciler) acquire(key flightKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[key]; busy {
		return false
	}
	r.inFlight[key] = struct{}{}
	return true
}

func (r *Reconciler) release(key flightKey) {
	r.mu.Lock()
	delete(r.inFlight, key)
	r.mu.Unlock()
}
