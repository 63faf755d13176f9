package model

import (
	"time"
)

// Meal is a single logged meal. Every meal belongs to exactly one user;
// meals are created and deleted but never updated.
type Meal struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	Calories    int64     `json:"calories"`
	CreatedAt   time.Time `json:"created_at"`
}

// MealSafeView is the projection returned to clients. created_at is epoch
// seconds, kept from the legacy frontend contract.
type MealSafeView struct {
	ID          uint   `json:"id"`
	Description string `json:"description"`
	Calories    int64  `json:"calories"`
	CreatedAt   int64  `json:"created_at"`
}

// SafeView builds the safe projection of the meal.
func (m *Meal) SafeView() MealSafeView {
	return MealSafeView{
		ID:          m.ID,
		Description: m.Description,
		Calories:    m.Calories,
		CreatedAt:   m.CreatedAt.Unix(),
	}
}
