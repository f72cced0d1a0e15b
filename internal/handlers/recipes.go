package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/cache"
	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
	"github.com/emilythestrangee/quickbite/backend/internal/store"
)

type RecipeHandler struct {
	recipes    RecipeRepository
	reconciler *feedback.Reconciler
	cache      *cache.Recipes
	logger     *zap.Logger
}

type recipeResponse struct {
	models.Recipe
	ViewerFeedback feedback.State `json:"viewer_feedback"`
}

// GetRecipes returns every recipe, most liked first
func (h *RecipeHandler) GetRecipes(c *gin.Context) {
	recipes, err := h.recipes.ListRecipes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipes"})
		return
	}
	c.JSON(http.StatusOK, nonNil(recipes))
}

// TopRecipes returns the most liked recipes (?limit=N, default 3)
func (h *RecipeHandler) TopRecipes(c *gin.Context) {
	limit := store.DefaultTopLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	recipes, err := h.recipes.TopRecipes(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch top recipes"})
		return
	}
	c.JSON(http.StatusOK, nonNil(recipes))
}

// GetRecipe returns a single recipe plus the viewer's feedback, if signed in
func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	recipe, err := h.cache.Get(ctx, id)
	if err != nil {
		h.logger.Warn("cache: get recipe", zap.Int("recipe_id", id), zap.Error(err))
	}
	if recipe == nil {
		recipe, err = h.recipes.GetRecipe(ctx, id)
		if errors.Is(err, feedback.ErrRecipeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipe"})
			return
		}
		if err := h.cache.Set(ctx, recipe); err != nil {
			h.logger.Warn("cache: set recipe", zap.Int("recipe_id", id), zap.Error(err))
		}
	}

	state, err := h.reconciler.ViewerState(ctx, id)
	if err != nil {
		h.logger.Warn("viewer state lookup failed", zap.Int("recipe_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, recipeResponse{Recipe: *recipe, ViewerFeedback: state})
}

// SearchRecipes filters by cuisine and/or ingredients
// (?cuisine=thai&ingredient=basil&ingredient=rice)
func (h *RecipeHandler) SearchRecipes(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := store.SearchQuery{Cuisine: req.Cuisine, Ingredients: req.Ingredients}
	if q.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a cuisine or at least one ingredient"})
		return
	}

	ctx := c.Request.Context()
	recipes, err := h.recipes.SearchRecipes(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search recipes"})
		return
	}

	if userID, ok := viewerID(c); ok {
		entry := models.SearchHistory{UserID: userID, CuisineType: req.Cuisine, Ingredients: req.Ingredients}
		if err := h.recipes.RecordSearch(ctx, &entry); err != nil {
			h.logger.Warn("record search history", zap.String("user_id", userID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, nonNil(recipes))
}

// nonNil keeps empty results as [] rather than null
func nonNil(recipes []models.Recipe) []models.Recipe {
	if recipes == nil {
		return []models.Recipe{}
	}
	return recipes
}
