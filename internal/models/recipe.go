package models

import (
	"time"

	"github.com/lib/pq"
)

type Recipe struct {
	ID           int            `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"not null" json:"title"`
	Image        string         `json:"image"`
	Cuisine      string         `gorm:"index" json:"cuisine"`
	CookTime     string         `json:"cook_time"`
	Ingredients  pq.StringArray `gorm:"type:text[]" json:"ingredients"`
	Instructions string         `json:"instructions"`
	Likes        int            `gorm:"not null;default:0;check:chk_recipe_likes,likes >= 0" json:"likes"`
	Dislikes     int            `gorm:"not null;default:0;check:chk_recipe_dislikes,dislikes >= 0" json:"dislikes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SearchRequest is bound from the search query string.
type SearchRequest struct {
	Cuisine     string   `form:"cuisine"`
	Ingredients []string `form:"ingredient"`
}
