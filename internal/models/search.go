package models

import (
	"time"

	"github.com/lib/pq"
)

// SearchHistory records an authenticated user's recipe search.
type SearchHistory struct {
	ID          int            `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	CuisineType string         `json:"cuisine_type"`
	Ingredients pq.StringArray `gorm:"type:text[]" json:"ingredients"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (SearchHistory) TableName() string {
	return "search_history"
}
