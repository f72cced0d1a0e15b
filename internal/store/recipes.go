package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
)

// DefaultTopLimit is how many recipes the favorites view shows.
const DefaultTopLimit = 3

// SearchQuery selects recipes whose cuisine contains Cuisine and whose
// ingredient list covers every entry of Ingredients. Both comparisons are
// case-insensitive substring matches.
type SearchQuery struct {
	Cuisine     string
	Ingredients []string
}

// Empty reports whether the query has no criteria at all.
func (q SearchQuery) Empty() bool {
	return strings.TrimSpace(q.Cuisine) == "" && len(q.normalizedIngredients()) == 0
}

func (q SearchQuery) normalizedIngredients() []string {
	var out []string
	seen := make(map[string]bool)
	for _, ing := range q.Ingredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing == "" || seen[ing] {
			continue
		}
		seen[ing] = true
		out = append(out, ing)
	}
	return out
}

func (s *Postgres) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("likes desc, id").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

func (s *Postgres) TopRecipes(ctx context.Context, limit int) ([]models.Recipe, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	var recipes []models.Recipe
	if err := s.db.WithContext(ctx).Order("likes desc, id").Limit(limit).Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("top recipes: %w", err)
	}
	return recipes, nil
}

func (s *Postgres) GetRecipe(ctx context.Context, id int) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.WithContext(ctx).Take(&recipe, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, feedback.ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	return &recipe, nil
}

func (s *Postgres) SearchRecipes(ctx context.Context, q SearchQuery) ([]models.Recipe, error) {
	tx := s.db.WithContext(ctx).Model(&models.Recipe{})
	if c := strings.TrimSpace(q.Cuisine); c != "" {
		tx = tx.Where("cuisine ILIKE ?", "%"+escapeLike(c)+"%")
	}
	for _, ing := range q.normalizedIngredients() {
		tx = tx.Where("EXISTS (SELECT 1 FROM unnest(ingredients) AS i WHERE i ILIKE ?)", "%"+escapeLike(ing)+"%")
	}

	var recipes []models.Recipe
	if err := tx.Order("likes desc, id").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	return recipes, nil
}

// LikedRecipes returns the recipes userID currently likes.
func (s *Postgres) LikedRecipes(ctx context.Context, userID string) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Joins("JOIN recipe_votes v ON v.recipe_id = recipes.id").
		Where("v.user_id = ? AND v.kind = ?", userID, string(feedback.KindLike)).
		Order("v.created_at desc").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("liked recipes: %w", err)
	}
	return recipes, nil
}

func (s *Postgres) RecordSearch(ctx context.Context, h *models.SearchHistory) error {
	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

func (s *Postgres) RecentSearches(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error) {
	var history []models.SearchHistory
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	return history, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
