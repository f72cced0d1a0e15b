package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/quickbite/backend/internal/auth"
	"github.com/emilythestrangee/quickbite/backend/internal/database"
	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
	"github.com/emilythestrangee/quickbite/backend/internal/realtime"
	"github.com/emilythestrangee/quickbite/backend/internal/store"
)

// startPostgres runs a throwaway postgres and returns a migrated gorm handle
// plus its connection string.
func startPostgres(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("quickbite"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db, dsn
}

func TestPostgresStore(t *testing.T) {
	db, dsn := startPostgres(t)
	s := store.NewPostgres(db)
	ctx := context.Background()

	user := models.User{ID: uuid.NewString(), Username: "amara", Email: "amara@example.com", Password: "x"}
	require.NoError(t, s.CreateUser(ctx, &user))
	dup := models.User{ID: uuid.NewString(), Username: "amara", Email: "other@example.com", Password: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrUserExists)

	recipes := []models.Recipe{
		{Title: "Pad Kra Pao", Cuisine: "Thai", Ingredients: pq.StringArray{"Thai basil", "chicken", "rice"}, Likes: 5, Dislikes: 2},
		{Title: "Green Curry", Cuisine: "Thai", Ingredients: pq.StringArray{"coconut milk", "basil"}, Likes: 9},
		{Title: "Carbonara", Cuisine: "Italian", Ingredients: pq.StringArray{"spaghetti", "egg", "pecorino_romano"}, Likes: 7},
	}
	require.NoError(t, db.Create(&recipes).Error)
	padKraPao := recipes[0].ID

	t.Run("users", func(t *testing.T) {
		got, err := s.FindUserByEmail(ctx, "amara@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = s.FindUserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("search", func(t *testing.T) {
		got, err := s.SearchRecipes(ctx, store.SearchQuery{Cuisine: "thai", Ingredients: []string{"BASIL", "rice"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Pad Kra Pao", got[0].Title)

		// LIKE wildcards in the input are literal.
		got, err = s.SearchRecipes(ctx, store.SearchQuery{Ingredients: []string{"c_r"}})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.SearchRecipes(ctx, store.SearchQuery{Ingredients: []string{"o_romano"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Carbonara", got[0].Title)
	})

	t.Run("top", func(t *testing.T) {
		got, err := s.TopRecipes(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Green Curry", got[0].Title)
		assert.Equal(t, "Carbonara", got[1].Title)
	})

	t.Run("vote store", func(t *testing.T) {
		kind, err := s.GetViewerVote(ctx, padKraPao, user.ID)
		require.NoError(t, err)
		assert.Nil(t, kind)

		require.NoError(t, s.InsertVote(ctx, padKraPao, user.ID, feedback.KindLike))
		require.NoError(t, s.InsertVote(ctx, padKraPao, user.ID, feedback.KindLike))
		var n int64
		require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", user.ID).Count(&n).Error)
		assert.EqualValues(t, 1, n)

		kind, err = s.GetViewerVote(ctx, padKraPao, user.ID)
		require.NoError(t, err)
		require.NotNil(t, kind)
		assert.Equal(t, feedback.KindLike, *kind)

		assert.ErrorIs(t, s.DeleteVote(ctx, padKraPao, user.ID, feedback.KindDislike), feedback.ErrVoteNotFound)
		require.NoError(t, s.DeleteVote(ctx, padKraPao, user.ID, feedback.KindLike))
		assert.ErrorIs(t, s.DeleteVote(ctx, padKraPao, user.ID, feedback.KindLike), feedback.ErrVoteNotFound)

		assert.ErrorIs(t, s.InsertVote(ctx, 9999, user.ID, feedback.KindLike), feedback.ErrRecipeNotFound)
	})

	t.Run("adjust counters floors at zero", func(t *testing.T) {
		c, err := s.AdjustCounters(ctx, padKraPao, feedback.Delta{Dislikes: -5})
		require.NoError(t, err)
		assert.Equal(t, feedback.Counters{Likes: 5, Dislikes: 0}, c)

		c, err = s.AdjustCounters(ctx, padKraPao, feedback.Delta{Dislikes: 2})
		require.NoError(t, err)
		assert.Equal(t, feedback.Counters{Likes: 5, Dislikes: 2}, c)

		_, err = s.AdjustCounters(ctx, 9999, feedback.Delta{Likes: 1})
		assert.ErrorIs(t, err, feedback.ErrRecipeNotFound)
	})

	t.Run("reconciler", func(t *testing.T) {
		r := feedback.NewReconciler(s, auth.ContextIdentity{}, nil)
		vctx := auth.WithViewer(ctx, user.ID)
		start := feedback.Snapshot{Counters: feedback.Counters{Likes: 5, Dislikes: 2}}

		liked, err := r.Submit(vctx, padKraPao, feedback.KindLike, start)
		require.NoError(t, err)
		assert.Equal(t, feedback.Snapshot{Counters: feedback.Counters{Likes: 6, Dislikes: 2}, Viewer: feedback.StateLiked}, liked)

		disliked, err := r.Submit(vctx, padKraPao, feedback.KindDislike, liked)
		require.NoError(t, err)
		assert.Equal(t, feedback.Snapshot{Counters: feedback.Counters{Likes: 5, Dislikes: 3}, Viewer: feedback.StateDisliked}, disliked)

		state, err := r.ViewerState(vctx, padKraPao)
		require.NoError(t, err)
		assert.Equal(t, feedback.StateDisliked, state)

		cleared, err := r.Submit(vctx, padKraPao, feedback.KindDislike, disliked)
		require.NoError(t, err)
		assert.Equal(t, feedback.Snapshot{Counters: feedback.Counters{Likes: 5, Dislikes: 2}, Viewer: feedback.StateNone}, cleared)
	})

	t.Run("liked recipes and history", func(t *testing.T) {
		require.NoError(t, s.InsertVote(ctx, recipes[2].ID, user.ID, feedback.KindLike))
		liked, err := s.LikedRecipes(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, liked, 1)
		assert.Equal(t, "Carbonara", liked[0].Title)

		for _, c := range []string{"thai", "italian"} {
			require.NoError(t, s.RecordSearch(ctx, &models.SearchHistory{UserID: user.ID, CuisineType: c}))
		}
		history, err := s.RecentSearches(ctx, user.ID, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "italian", history[0].CuisineType)
	})

	t.Run("counter changes are broadcast", func(t *testing.T) {
		var (
			mu  sync.Mutex
			got []feedback.CounterUpdate
		)
		l := realtime.NewListener(dsn, store.CountersChannel, func(u feedback.CounterUpdate) {
			mu.Lock()
			got = append(got, u)
			mu.Unlock()
		}, nil)
		lctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			l.Run(lctx)
			close(done)
		}()
		defer func() {
			cancel()
			<-done
		}()

		// The listener subscribes asynchronously; keep nudging until it hears one.
		require.Eventually(t, func() bool {
			_, _ = s.AdjustCounters(ctx, padKraPao, feedback.Delta{})
			mu.Lock()
			defer mu.Unlock()
			return len(got) > 0
		}, 10*time.Second, 100*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, feedback.CounterUpdate{RecipeID: padKraPao, Likes: 5, Dislikes: 2}, got[0])
	})
}
