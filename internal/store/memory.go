package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
)

type voteKey struct {
	recipeID int
	userID   string
}

type memoryVote struct {
	kind      feedback.Kind
	createdAt time.Time
}

// Memory is an in-process store with the same semantics as Postgres, minus
// transactions. Every call is individually atomic.
type Memory struct {
	mu       sync.Mutex
	recipes  map[int]models.Recipe
	votes    map[voteKey]memoryVote
	users    map[string]models.User
	searches []models.SearchHistory
	nextID   int

	// OnAdjust, when set, receives every counter change.
	OnAdjust func(feedback.CounterUpdate)
}

func NewMemory() *Memory {
	return &Memory{
		recipes: make(map[int]models.Recipe),
		votes:   make(map[voteKey]memoryVote),
		users:   make(map[string]models.User),
	}
}

// PutRecipe inserts or replaces a recipe. A zero ID gets the next free one.
func (m *Memory) PutRecipe(r models.Recipe) models.Recipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextID++
		r.ID = m.nextID
	} else if r.ID > m.nextID {
		m.nextID = r.ID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = time.Now().UTC()
	m.recipes[r.ID] = r
	return r
}

// VoteCount returns how many vote records exist for the pair (0 or 1).
func (m *Memory) VoteCount(recipeID int, userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.votes[voteKey{recipeID, userID}]; ok {
		return 1
	}
	return 0
}

func (m *Memory) GetViewerVote(_ context.Context, recipeID int, viewerID string) (*feedback.Kind, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{recipeID, viewerID}]
	if !ok {
		return nil, nil
	}
	kind := v.kind
	return &kind, nil
}

func (m *Memory) InsertVote(_ context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipes[recipeID]; !ok {
		return feedback.ErrRecipeNotFound
	}
	key := voteKey{recipeID, viewerID}
	v, ok := m.votes[key]
	if !ok {
		v.createdAt = time.Now().UTC()
	}
	v.kind = kind
	m.votes[key] = v
	return nil
}

func (m *Memory) DeleteVote(_ context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := voteKey{recipeID, viewerID}
	v, ok := m.votes[key]
	if !ok || v.kind != kind {
		return feedback.ErrVoteNotFound
	}
	delete(m.votes, key)
	return nil
}

func (m *Memory) AdjustCounters(_ context.Context, recipeID int, d feedback.Delta) (feedback.Counters, error) {
	m.mu.Lock()
	r, ok := m.recipes[recipeID]
	if !ok {
		m.mu.Unlock()
		return feedback.Counters{}, feedback.ErrRecipeNotFound
	}
	c := feedback.Counters{Likes: r.Likes, Dislikes: r.Dislikes}.Apply(d)
	r.Likes, r.Dislikes = c.Likes, c.Dislikes
	r.UpdatedAt = time.Now().UTC()
	m.recipes[recipeID] = r
	notify := m.OnAdjust
	m.mu.Unlock()

	if notify != nil {
		notify(feedback.CounterUpdate{RecipeID: recipeID, Likes: c.Likes, Dislikes: c.Dislikes})
	}
	return c, nil
}

func (m *Memory) ListRecipes(_ context.Context) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(models.Recipe) bool { return true }), nil
}

func (m *Memory) TopRecipes(ctx context.Context, limit int) ([]models.Recipe, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	all, _ := m.ListRecipes(ctx)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) GetRecipe(_ context.Context, id int) (*models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipes[id]
	if !ok {
		return nil, feedback.ErrRecipeNotFound
	}
	return &r, nil
}

func (m *Memory) SearchRecipes(_ context.Context, q SearchQuery) ([]models.Recipe, error) {
	cuisine := strings.ToLower(strings.TrimSpace(q.Cuisine))
	wanted := q.normalizedIngredients()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(r models.Recipe) bool {
		if cuisine != "" && !strings.Contains(strings.ToLower(r.Cuisine), cuisine) {
			return false
		}
		return coversIngredients(r.Ingredients, wanted)
	}), nil
}

func (m *Memory) LikedRecipes(_ context.Context, userID string) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type liked struct {
		recipe models.Recipe
		at     time.Time
	}
	var out []liked
	for key, v := range m.votes {
		if key.userID != userID || v.kind != feedback.KindLike {
			continue
		}
		if r, ok := m.recipes[key.recipeID]; ok {
			out = append(out, liked{r, v.createdAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].at.After(out[j].at) })

	recipes := make([]models.Recipe, 0, len(out))
	for _, l := range out {
		recipes = append(recipes, l.recipe)
	}
	return recipes, nil
}

func (m *Memory) RecordSearch(_ context.Context, h *models.SearchHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = len(m.searches) + 1
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	m.searches = append(m.searches, *h)
	return nil
}

func (m *Memory) RecentSearches(_ context.Context, userID string, limit int) ([]models.SearchHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SearchHistory
	for i := len(m.searches) - 1; i >= 0 && len(out) < limit; i-- {
		if m.searches[i].UserID == userID {
			out = append(out, m.searches[i])
		}
	}
	return out, nil
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return ErrUserExists
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *Memory) FindUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// sorted returns matching recipes ordered by likes desc, then id. Callers
// hold m.mu.
func (m *Memory) sorted(keep func(models.Recipe) bool) []models.Recipe {
	out := make([]models.Recipe, 0, len(m.recipes))
	for _, r := range m.recipes {
		if keep(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.Recipe) int {
		if a.Likes != b.Likes {
			return b.Likes - a.Likes
		}
		return a.ID - b.ID
	})
	return out
}

// coversIngredients reports whether every wanted ingredient is a substring
// of at least one of the recipe's ingredients. wanted is already lowercase.
func coversIngredients(have []string, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, h := range have {
			if strings.Contains(strings.ToLower(h), w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
