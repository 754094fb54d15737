package repository

import (
	"ctf_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Find(challengeID uint, userID string) (*model.AttemptedChallenge, error) {
	var a model.AttemptedChallenge
	err := r.DB.Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountSolved(tx *gorm.DB, challengeID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.AttemptedChallenge{}).
		Where("challenge_id = ? AND solved = ?", challengeID, true).
		Count(&count).Error
	return count, err
}

// RecordIncorrect bumps total_attempts by one, creating the row on the first
// interaction. The conflict target is the (challenge_id, user_id) unique
// index, so the increment is a single atomic statement.
func (r *AttemptRepository) RecordIncorrect(tx *gorm.DB, challengeID uint, userID string) error {
	attempt := model.AttemptedChallenge{
		ChallengeID:   challengeID,
		UserID:        userID,
		TotalAttempts: 1,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_attempts": gorm.Expr("total_attempts + 1"),
		}),
	}).Create(&attempt).Error
}

// MarkSolved flips an attempt to solved exactly once. Returns false when the
// attempt was already solved — including when a concurrent solve committed
// first — so the caller never double-awards.
func (r *AttemptRepository) MarkSolved(tx *gorm.DB, challengeID uint, userID string, solvedAt time.Time) (bool, error) {
	res := tx.Model(&model.AttemptedChallenge{}).
		Where("challenge_id = ? AND user_id = ? AND solved = ?", challengeID, userID, false).
		Updates(map[string]interface{}{
			"solved":         true,
			"solved_at":      solvedAt,
			"total_attempts": gorm.Expr("total_attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// No unsolved row. Either this is the first interaction (create one) or
	// the attempt is already solved.
	var existing model.AttemptedChallenge
	err := tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}

	attempt := model.AttemptedChallenge{
		ChallengeID:   challengeID,
		UserID:        userID,
		Solved:        true,
		SolvedAt:      &solvedAt,
		TotalAttempts: 1,
	}
	if err := tx.Create(&attempt).Error; err != nil {
		// unique index collision: a concurrent solve created the row first
		return false, nil
	}
	return true, nil
}

// MarkHintUsed upserts the attempt with used_hint=true.
func (r *AttemptRepository) MarkHintUsed(tx *gorm.DB, challengeID uint, userID string) error {
	attempt := model.AttemptedChallenge{
		ChallengeID: challengeID,
		UserID:      userID,
		UsedHint:    true,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "challenge_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_hint": true,
		}),
	}).Create(&attempt).Error
}

func (r *AttemptRepository) ListByUser(userID string) ([]model.AttemptedChallenge, error) {
	var attempts []model.AttemptedChallenge
	err := r.DB.Where("user_id = ?", userID).Find(&attempts).Error
	return attempts, err
}

// SolvedByChallenge lists solved attempts in solve order (hint users last
// within the same instant).
func (r *AttemptRepository) SolvedByChallenge(challengeID uint) ([]model.AttemptedChallenge, error) {
	var attempts []model.AttemptedChallenge
	err := r.DB.Where("challenge_id = ? AND solved = ?", challengeID, true).
		Order("solved_at ASC, used_hint DESC").
		Find(&attempts).Error
	return attempts, err
}

// LatestSolves maps each user to their most recent solve time, used as the
// leaderboard tiebreaker.
func (r *AttemptRepository) LatestSolves() (map[string]time.Time, error) {
	var attempts []model.AttemptedChallenge
	err := r.DB.Select("user_id", "solved_at").
		Where("solved = ?", true).
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]time.Time)
	for _, a := range attempts {
		if a.SolvedAt == nil {
			continue
		}
		if a.SolvedAt.After(latest[a.UserID]) {
			latest[a.UserID] = *a.SolvedAt
		}
	}
	return latest, nil
}
