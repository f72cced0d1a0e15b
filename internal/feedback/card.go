package feedback

import (
	"context"
	"sync"
)

// Card is the local view of one recipe for one session, for presentation
// callers rather than the HTTP handlers. It caches the counters, tracks the
// viewer's state and refuses overlapping submissions.
type Card struct {
	recipeID   int
	reconciler *Reconciler

	mu       sync.Mutex
	snap     Snapshot
	inFlight bool
}

// NewCard starts with no viewer vote; call Refresh to load it.
func NewCard(recipeID int, initial Counters, r *Reconciler) *Card {
	return &Card{
		recipeID:   recipeID,
		reconciler: r,
		snap:       Snapshot{Counters: initial, Viewer: StateNone},
	}
}

func (c *Card) RecipeID() int { return c.recipeID }

func (c *Card) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Refresh recomputes the viewer state from the store. A failed read leaves
// the card showing no vote.
func (c *Card) Refresh(ctx context.Context) error {
	state, err := c.reconciler.ViewerState(ctx, c.recipeID)
	c.mu.Lock()
	c.snap.Viewer = state
	c.mu.Unlock()
	return err
}

// Submit runs one reconciliation from the card's current snapshot. Local
// state changes only when the reconciliation succeeds.
func (c *Card) Submit(ctx context.Context, kind Kind) (Snapshot, error) {
	c.mu.Lock()
	if c.inFlight {
		snap := c.snap
		c.mu.Unlock()
		return snap, ErrBusy
	}
	c.inFlight = true
	current := c.snap
	c.mu.Unlock()

	next, err := c.reconciler.Submit(ctx, c.recipeID, kind, current)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return c.snap, err
	}
	c.snap = next
	return next, nil
}

// ApplyRemote overwrites the cached counters with a pushed update. Updates
// for other recipes are ignored. The viewer state is left alone.
func (c *Card) ApplyRemote(u CounterUpdate) bool {
	if u.RecipeID != c.recipeID {
		return false
	}
	c.mu.Lock()
	c.snap.Counters = Counters{Likes: max(u.Likes, 0), Dislikes: max(u.Dislikes, 0)}
	c.mu.Unlock()
	return true
}
