package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/quickbite/backend/internal/feedback"
	"github.com/emilythestrangee/quickbite/backend/internal/models"
)

// CountersChannel is the postgres NOTIFY channel that carries counter
// changes as JSON-encoded feedback.CounterUpdate payloads.
const CountersChannel = "recipe_counters"

// Postgres is the gorm-backed store for recipes, votes, users and searches.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

// WithinTx runs fn against a store bound to a single transaction.
func (s *Postgres) WithinTx(ctx context.Context, fn func(feedback.VoteStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Postgres{db: tx})
	})
}

func (s *Postgres) GetViewerVote(ctx context.Context, recipeID int, viewerID string) (*feedback.Kind, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", viewerID, recipeID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vote: %w", err)
	}
	kind, err := feedback.ParseKind(vote.Kind)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}

// InsertVote upserts on (user_id, recipe_id), so repeating it is harmless.
func (s *Postgres) InsertVote(ctx context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	vote := models.Vote{UserID: viewerID, RecipeID: recipeID, Kind: string(kind)}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipe_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).
		Create(&vote).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return feedback.ErrRecipeNotFound
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteVote(ctx context.Context, recipeID int, viewerID string, kind feedback.Kind) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ? AND kind = ?", viewerID, recipeID, string(kind)).
		Delete(&models.Vote{})
	if res.Error != nil {
		return fmt.Errorf("delete vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return feedback.ErrVoteNotFound
	}
	return nil
}

// AdjustCounters applies d relative to the stored counters, floored at zero,
// and notifies CountersChannel. Inside a transaction the notification is
// delivered on commit.
func (s *Postgres) AdjustCounters(ctx context.Context, recipeID int, d feedback.Delta) (feedback.Counters, error) {
	var out feedback.Counters
	res := s.db.WithContext(ctx).Raw(`
		UPDATE recipes
		SET likes = GREATEST(likes + ?, 0),
		    dislikes = GREATEST(dislikes + ?, 0),
		    updated_at = NOW()
		WHERE id = ?
		RETURNING likes, dislikes`,
		d.Likes, d.Dislikes, recipeID).Scan(&out)
	if res.Error != nil {
		return feedback.Counters{}, fmt.Errorf("adjust counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return feedback.Counters{}, feedback.ErrRecipeNotFound
	}

	payload, err := json.Marshal(feedback.CounterUpdate{RecipeID: recipeID, Likes: out.Likes, Dislikes: out.Dislikes})
	if err != nil {
		return feedback.Counters{}, err
	}
	if err := s.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", CountersChannel, string(payload)).Error; err != nil {
		return feedback.Counters{}, fmt.Errorf("notify counters: %w", err)
	}
	return out, nil
}
