package feedback_test

import (
	"context"
	"errors"
	"sync"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
	"github.com/emilythestrangee/quickbite/backend/internal/store"
)

const recipeID = 1

var errStoreDown = errors.New("store unavailable")

type viewer string

func (v viewer) CurrentViewer(context.Context) (string, bool) {
	return string(v), v != ""
}

// seed returns a memory store holding one recipe with the given counters and,
// if state is not None, the viewer's matching vote.
func seed(c feedback.Counters, viewerID string, state feedback.State) *store.Memory {
	m := store.NewMemory()
	m.PutRecipe(models.Recipe{ID: recipeID, Title: "Shakshuka", Likes: c.Likes, Dislikes: c.Dislikes})
	switch state {
	case feedback.StateLiked:
		_ = m.InsertVote(context.Background(), recipeID, viewerID, feedback.KindLike)
	case feedback.StateDisliked:
		_ = m.InsertVote(context.Background(), recipeID, viewerID, feedback.KindDislike)
	}
	return m
}

// scriptedStore wraps a VoteStore, counts calls, and can fail or block a
// named operation.
type scriptedStore struct {
	feedback.VoteStore

	mu     sync.Mutex
	calls  []string
	failOn string

	blockOn string
	entered chan struct{}
	release chan struct{}
}

func (s *scriptedStore) before(op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	fail := s.failOn == op
	block := s.blockOn == op
	s.mu.Unlock()

	if block {
		s.entered <- struct{}{}
		<-s.release
	}
	if fail {
		return errStoreDown
	}
	return nil
}

func (s *scriptedStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *scriptedStore) GetViewerVote(ctx context.Context, recipeID int, viewerID string) (*feedback.Kind, error) {
	if err := s.before("get"); err != nil {
		return nil, err
	}
	return s.VoteStore.GetViewerVote(ctx, recipeID, viewerID)
}

func (s *scriptedStore) InsertVote(ctx context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	if err := s.before("insert"); err != nil {
		return err
	}
	return s.VoteStore.InsertVote(ctx, recipeID, viewerID, kind)
}

func (s *scriptedStore) DeleteVote(ctx context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	if err := s.before("delete"); err != nil {
		return err
	}
	return s.VoteStore.DeleteVote(ctx, recipeID, viewerID, kind)
}

func (s *scriptedStore) AdjustCounters(ctx context.Context, recipeID int, d feedback.Delta) (feedback.Counters, error) {
	if err := s.before("adjust"); err != nil {
		return feedback.Counters{}, err
	}
	return s.VoteStore.AdjustCounters(ctx, recipeID, d)
}

// txStore records WithinTx use. Writes are staged and reach the memory store
// only when fn succeeds.
type txStore struct {
	*store.Memory
	failOn  string
	txCalls int
}

func (s *txStore) WithinTx(ctx context.Context, fn func(feedback.VoteStore) error) error {
	s.txCalls++
	staged := &stagedStore{base: s.Memory, failOn: s.failOn}
	if err := fn(staged); err != nil {
		return err
	}
	for _, apply := range staged.writes {
		if err := apply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// stagedStore answers reads from base and defers writes until commit.
// AdjustCounters reports the counters the committed write would produce.
type stagedStore struct {
	base    *store.Memory
	pending feedback.Delta
	writes  []func(context.Context) error
	failOn  string
}

func (s *stagedStore) GetViewerVote(ctx context.Context, recipeID int, viewerID string) (*feedback.Kind, error) {
	return s.base.GetViewerVote(ctx, recipeID, viewerID)
}

func (s *stagedStore) InsertVote(_ context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	s.writes = append(s.writes, func(ctx context.Context) error {
		return s.base.InsertVote(ctx, recipeID, viewerID, kind)
	})
	return nil
}

func (s *stagedStore) DeleteVote(ctx context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	current, err := s.base.GetViewerVote(ctx, recipeID, viewerID)
	if err != nil {
		return err
	}
	if current == nil || *current != kind {
		return feedback.ErrVoteNotFound
	}
	s.writes = append(s.writes, func(ctx context.Context) error {
		return s.base.DeleteVote(ctx, recipeID, viewerID, kind)
	})
	return nil
}

func (s *stagedStore) AdjustCounters(ctx context.Context, recipeID int, d feedback.Delta) (feedback.Counters, error) {
	if s.failOn == "adjust" {
		return feedback.Counters{}, errStoreDown
	}
	r, err := s.base.GetRecipe(ctx, recipeID)
	if err != nil {
		return feedback.Counters{}, err
	}
	s.pending.Likes += d.Likes
	s.pending.Dislikes += d.Dislikes
	s.writes = append(s.writes, func(ctx context.Context) error {
		_, err := s.base.AdjustCounters(ctx, recipeID, d)
		return err
	})
	return feedback.Counters{Likes: r.Likes, Dislikes: r.Dislikes}.Apply(s.pending), nil
}
