package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/quickbite/backend/internal/auth"
	"github.com/emilythestrangee/quickbite/backend/internal/cache"
	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
	"github.com/emilythestrangee/quickbite/backend/internal/realtime"
	"github.com/emilythestrangee/quickbite/backend/internal/store"
)

type RecipeRepository interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	TopRecipes(ctx context.Context, limit int) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id int) (*models.Recipe, error)
	SearchRecipes(ctx context.Context, q store.SearchQuery) ([]models.Recipe, error)
	LikedRecipes(ctx context.Context, userID string) ([]models.Recipe, error)
	RecordSearch(ctx context.Context, h *models.SearchHistory) error
	RecentSearches(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Repository is everything the handlers read and write besides votes.
type Repository interface {
	RecipeRepository
	UserRepository
}

type Deps struct {
	Store      Repository
	Reconciler *feedback.Reconciler
	Tokens     *auth.Tokens
	Cache      *cache.Recipes
	Hub        *realtime.Hub
	Logger     *zap.Logger
}

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Recipe   *RecipeHandler
	Feedback *FeedbackHandler
	Profile  *ProfileHandler
	Stream   *StreamHandler
}

func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = &cache.Recipes{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{
		Auth:     &AuthHandler{users: d.Store, tokens: d.Tokens},
		Recipe:   &RecipeHandler{recipes: d.Store, reconciler: d.Reconciler, cache: d.Cache, logger: d.Logger},
		Feedback: &FeedbackHandler{recipes: d.Store, reconciler: d.Reconciler, cache: d.Cache, logger: d.Logger},
		Profile:  &ProfileHandler{recipes: d.Store, users: d.Store},
		Stream:   &StreamHandler{hub: d.Hub},
	}
}

func recipeID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return 0, false
	}
	return id, true
}

func viewerID(c *gin.Context) (string, bool) {
	return auth.ViewerFrom(c.Request.Context())
}
