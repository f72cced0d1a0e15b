// Package feedback reconciles a viewer's like/dislike intent on a recipe with
// the durable vote records and the recipe's aggregate counters.
//
// Reconciler is the shared core used by the HTTP handlers. Card wraps it for
// presentation callers that hold one recipe's counters per session.
package feedback

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no viewer is attached to the request.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrBusy means a submission for the same viewer and recipe is running.
	ErrBusy = errors.New("feedback already in flight")
	// ErrReconciliationFailed wraps any store error hit while reconciling.
	ErrReconciliationFailed = errors.New("reconciliation failed")
	// ErrInvalidKind rejects anything other than like or dislike.
	ErrInvalidKind = errors.New("invalid feedback kind")
	// ErrVoteNotFound is returned by VoteStore.DeleteVote when nothing matched.
	ErrVoteNotFound = errors.New("vote not found")
	// ErrRecipeNotFound is returned for votes or counters on an unknown recipe.
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Kind is the direction of a single vote.
type Kind string

const (
	KindLike    Kind = "like"
	KindDislike Kind = "dislike"
)

// ParseKind accepts the exact wire values "like" and "dislike".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLike, KindDislike:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindLike || k == KindDislike
}

// State is the viewer's derived vote status for one recipe.
type State string

const (
	StateNone     State = "none"
	StateLiked    State = "liked"
	StateDisliked State = "disliked"
)

// StateOf maps an extant vote (or nil) to the viewer state.
func StateOf(k *Kind) State {
	if k == nil {
		return StateNone
	}
	switch *k {
	case KindLike:
		return StateLiked
	case KindDislike:
		return StateDisliked
	}
	return StateNone
}

// Counters is the aggregate like/dislike state of a recipe.
type Counters struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Delta is a relative counter adjustment.
type Delta struct {
	Likes    int
	Dislikes int
}

func deltaFor(k Kind, n int) Delta {
	if k == KindLike {
		return Delta{Likes: n}
	}
	return Delta{Dislikes: n}
}

// Apply adds d to c, flooring each counter at zero.
func (c Counters) Apply(d Delta) Counters {
	return Counters{
		Likes:    max(c.Likes+d.Likes, 0),
		Dislikes: max(c.Dislikes+d.Dislikes, 0),
	}
}

// Snapshot is what a recipe card displays: counters plus the viewer's state.
type Snapshot struct {
	Counters
	Viewer State `json:"viewer_feedback"`
}

// CounterUpdate is a pushed counter change for one recipe.
type CounterUpdate struct {
	RecipeID int `json:"recipe_id"`
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// IdentityProvider resolves the viewer behind a request.
type IdentityProvider interface {
	CurrentViewer(ctx context.Context) (viewerID string, ok bool)
}

// VoteStore is the durable home of votes and counters. AdjustCounters must
// apply the delta relative to the stored value, floor at zero, and return the
// resulting counters. DeleteVote reports ErrVoteNotFound when nothing matched.
type VoteStore interface {
	GetViewerVote(ctx context.Context, recipeID int, viewerID string) (*Kind, error)
	InsertVote(ctx context.Context, recipeID int, viewerID string, kind Kind) error
	DeleteVote(ctx context.Context, recipeID int, viewerID string, kind Kind) error
	AdjustCounters(ctx context.Context, recipeID int, d Delta) (Counters, error)
}

// Transactor is implemented by stores that can run a reconciliation as one
// atomic unit. fn receives a store bound to the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(VoteStore) error) error
}
