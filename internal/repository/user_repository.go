package repository

import (
	"ctf_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id string) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, "id = ?", id).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	return &user, err
}

// FindOrCreate registers a participant on first contact. Existing rows are
// returned untouched.
func (r *UserRepository) FindOrCreate(id, username string) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, "id = ?", id).Error
	if err == nil {
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	user = model.User{ID: id, Username: username, Role: model.Player}
	if err := r.DB.Create(&user).Error; err != nil {
		// lost a create race, the row exists now
		if ferr := r.DB.First(&user, "id = ?", id).Error; ferr == nil {
			return &user, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

// AddPoints applies a relative score change as a single atomic update.
func (r *UserRepository) AddPoints(tx *gorm.DB, userID string, delta int) error {
	return tx.Model(&model.User{}).
		Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", delta)).
		Error
}

// ChargePoints decrements points only when the balance covers the cost.
// Returns the number of rows updated (0 means insufficient balance or a
// concurrent spend won).
func (r *UserRepository) ChargePoints(tx *gorm.DB, userID string, cost int) (int64, error) {
	res := tx.Model(&model.User{}).
		Where("id = ? AND points >= ?", userID, cost).
		Update("points", gorm.Expr("points - ?", cost))
	return res.RowsAffected, res.Error
}

func (r *UserRepository) SetPoints(userID string, points int) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("points", points).Error
}

func (r *UserRepository) SetCooldown(tx *gorm.DB, userID string, until time.Time) error {
	return tx.Model(&model.User{}).Where("id = ?", userID).Update("flag_submit_cooldown", until).Error
}

func (r *UserRepository) SetUsername(userID, username string) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("username", username).Error
}

func (r *UserRepository) SetAnonymousMode(userID string, enabled bool) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("anonymous_mode", enabled).Error
}

func (r *UserRepository) SetBlacklisted(userID string, blacklisted bool) error {
	return r.DB.Model(&model.User{}).Where("id = ?", userID).Update("blacklisted", blacklisted).Error
}

func (r *UserRepository) Delete(userID string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.AttemptedChallenge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, "id = ?", userID).Error
	})
}

// ListScorers returns every rankable user (positive points, not blacklisted)
// ordered by points descending. Fine ordering between point ties is the
// ranker's job.
func (r *UserRepository) ListScorers() ([]model.User, error) {
	var users []model.User
	err := r.DB.Where("blacklisted = ? AND points > 0", false).
		Order("points DESC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) CountScorers() (int64, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("blacklisted = ? AND points > 0", false).Count(&count).Error
	return count, err
}

func (r *UserRepository) ListBlacklisted(page, pageSize int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	q := r.DB.Model(&model.User{}).Where("blacklisted = ?", true)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	return users, total, err
}

func (r *UserRepository) ListBlacklistedIDs() ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.User{}).Where("blacklisted = ?", true).Pluck("id", &ids).Error
	return ids, err
}
