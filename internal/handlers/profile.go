package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/quickbite/backend/internal/models"
)

const recentSearchLimit = 10

type ProfileHandler struct {
	recipes RecipeRepository
	users   UserRepository
}

// GetProfile returns the viewer's liked recipes and recent searches
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := viewerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.FindUserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	liked, err := h.recipes.LikedRecipes(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch liked recipes"})
		return
	}

	history, err := h.recipes.RecentSearches(ctx, userID, recentSearchLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch search history"})
		return
	}
	if history == nil {
		history = []models.SearchHistory{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"liked_recipes":  nonNil(liked),
		"search_history": history,
	})
}
