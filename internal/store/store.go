package store

import (
	"errors"
	"strings"
	"time"

	"caltrack/internal/model"
	"caltrack/prometheus"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the database with the persistence operations the handlers
// need. All operations are single-row and atomic; there is no transaction
// discipline beyond that.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of a gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NormalizeEmail lowercases an email so both uniqueness and lookup are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user. The email is stored lowercased.
func (s *Store) CreateUser(user *model.User) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	user.Email = NormalizeEmail(user.Email)
	return s.db.Create(user).Error
}

// FindUserByEmail looks a user up by case-insensitive email.
func (s *Store) FindUserByEmail(email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := s.db.Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTaken reports whether a user with this email already exists.
func (s *Store) EmailTaken(email string) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	err := s.db.Model(&model.User{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

// FindUserByID looks a user up by id.
func (s *Store) FindUserByID(id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserWithMeals returns a user with their meals, most recent first.
func (s *Store) GetUserWithMeals(id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := s.db.Preload("Meals", func(db *gorm.DB) *gorm.DB {
		return db.Order("meals.created_at DESC")
	}).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserProfile updates the mutable profile fields of a user and returns
// the updated record. Only first_name, last_name and daily_limit can change.
func (s *Store) UpdateUserProfile(id uint, firstName, lastName *string, dailyLimit *int64) (*model.User, error) {
	user, err := s.FindUserByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if firstName != nil {
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		updates["last_name"] = *lastName
	}
	if dailyLimit != nil {
		updates["daily_limit"] = *dailyLimit
	}
	if len(updates) == 0 {
		return user, nil
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsersWithMealCount returns every user annotated with their total meal
// count, ordered by id ascending.
func (s *Store) ListUsersWithMealCount() ([]model.UserSummary, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	summaries := []model.UserSummary{}
	err := s.db.Model(&model.User{}).
		Select("users.id, users.first_name, users.last_name, users.role, COUNT(meals.id) AS meal_count").
		Joins("LEFT JOIN meals ON meals.user_id = users.id").
		Group("users.id, users.first_name, users.last_name, users.role").
		Order("users.id ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// CreateMeal inserts a meal owned by meal.UserID.
func (s *Store) CreateMeal(meal *model.Meal) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return s.db.Create(meal).Error
}

// FindMealByID looks a meal up by id.
func (s *Store) FindMealByID(id uint) (*model.Meal, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var meal model.Meal
	err := s.db.First(&meal, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// DeleteMeal removes a meal by id.
func (s *Store) DeleteMeal(id uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.Delete(&model.Meal{}, id).Error
}
