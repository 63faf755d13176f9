package model

import (
	"time"

	"gorm.io/gorm"
)

// Roles a user can hold. The wire name for the field is "type", kept from the
// legacy frontend contract.
const (
	RoleRegularUser = "RegularUser"
	RoleUserManager = "UserManager"
	RoleAdmin       = "Admin"
)

// ValidRole reports whether role is one of the three enumerated roles.
func ValidRole(role string) bool {
	switch role {
	case RoleRegularUser, RoleUserManager, RoleAdmin:
		return true
	}
	return false
}

// User represents the user model stored in the database. Emails are stored
// lowercased so the unique index enforces case-insensitive uniqueness.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	FirstName    string         `json:"first_name" gorm:"type:varchar(100)"`
	LastName     string         `json:"last_name" gorm:"type:varchar(100)"`
	Email        string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255)"`
	Role         string         `json:"type" gorm:"type:varchar(20)"`
	DailyLimit   *int64         `json:"daily_limit,omitempty"`
	Meals        []Meal         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserSafeView is the projection returned to clients. It never carries the
// password hash.
type UserSafeView struct {
	ID         uint           `json:"id"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	DailyLimit *int64         `json:"daily_limit,omitempty"`
	Meals      []MealSafeView `json:"meals"`
}

// SafeView builds the safe projection of the user including its meals.
func (u *User) SafeView() UserSafeView {
	meals := make([]MealSafeView, 0, len(u.Meals))
	for i := range u.Meals {
		meals = append(meals, u.Meals[i].SafeView())
	}
	return UserSafeView{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		DailyLimit: u.DailyLimit,
		Meals:      meals,
	}
}

// UserSummary is one row of the user listing, annotated with the total number
// of meals the user has logged.
type UserSummary struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"type"`
	MealCount int64  `json:"meal_count"`
}
