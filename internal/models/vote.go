package models

import "time"

// Vote is a single user's like or dislike on a recipe. The unique index keeps
// it singular per (user, recipe).
type Vote struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_vote_user_recipe" json:"user_id"`
	RecipeID  int       `gorm:"not null;uniqueIndex:idx_vote_user_recipe;index" json:"recipe_id"`
	Kind      string    `gorm:"type:varchar(10);not null;check:chk_vote_kind,kind IN ('like','dislike')" json:"kind"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Recipe    Recipe    `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vote) TableName() string {
	return "recipe_votes"
}
