package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/cache"
	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
)

type FeedbackHandler struct {
	recipes    RecipeRepository
	reconciler *feedback.Reconciler
	cache      *cache.Recipes
	logger     *zap.Logger
}

type feedbackRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// GetFeedback returns the recipe's counters and the viewer's current vote
func (h *FeedbackHandler) GetFeedback(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	snap, err := h.current(c, id)
	if err != nil {
		writeFeedbackError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SubmitFeedback likes or dislikes a recipe. Repeating the current vote
// retracts it; the opposite vote replaces it.
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	id, ok := recipeID(c)
	if !ok {
		return
	}

	var input feedbackRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be \"like\" or \"dislike\""})
		return
	}
	kind, err := feedback.ParseKind(input.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be \"like\" or \"dislike\""})
		return
	}

	current, err := h.current(c, id)
	if err != nil {
		writeFeedbackError(c, err)
		return
	}

	ctx := c.Request.Context()
	next, err := h.reconciler.Submit(ctx, id, kind, current)
	if err != nil {
		writeFeedbackError(c, err)
		return
	}

	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("cache: invalidate recipe", zap.Int("recipe_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, next)
}

// current loads the authoritative snapshot for the request's viewer.
func (h *FeedbackHandler) current(c *gin.Context, id int) (feedback.Snapshot, error) {
	ctx := c.Request.Context()
	recipe, err := h.recipes.GetRecipe(ctx, id)
	if err != nil {
		return feedback.Snapshot{}, err
	}
	state, err := h.reconciler.ViewerState(ctx, id)
	if err != nil {
		return feedback.Snapshot{}, err
	}
	return feedback.Snapshot{
		Counters: feedback.Counters{Likes: recipe.Likes, Dislikes: recipe.Dislikes},
		Viewer:   state,
	}, nil
}

func writeFeedbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feedback.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please sign in to rate recipes"})
	case errors.Is(err, feedback.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Feedback already being processed"})
	case errors.Is(err, feedback.ErrRecipeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
	case errors.Is(err, feedback.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be \"like\" or \"dislike\""})
	case errors.Is(err, feedback.ErrReconciliationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to update feedback"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load feedback"})
	}
}
