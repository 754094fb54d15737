package repository

import (
	"ctf_backend/internal/model"

	"gorm.io/gorm"
)

type ChallengeRepository struct {
	DB *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: db}
}

func (r *ChallengeRepository) Create(challenge *model.Challenge) error {
	return r.DB.Create(challenge).Error
}

func (r *ChallengeRepository) Save(challenge *model.Challenge) error {
	return r.DB.Save(challenge).Error
}

func (r *ChallengeRepository) FindByID(id uint) (*model.Challenge, error) {
	var c model.Challenge
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// All returns every challenge ordered by most recently edited, for cache
// refreshes.
func (r *ChallengeRepository) All() ([]model.Challenge, error) {
	var challenges []model.Challenge
	err := r.DB.Order("edited_at DESC").Find(&challenges).Error
	return challenges, err
}

func (r *ChallengeRepository) SetArchived(id uint, archived bool) error {
	return r.DB.Model(&model.Challenge{}).Where("id = ?", id).Update("archived", archived).Error
}

// ArchiveAll archives every live challenge and reports how many it touched.
func (r *ChallengeRepository) ArchiveAll(tx *gorm.DB) (int64, error) {
	res := tx.Model(&model.Challenge{}).Where("archived = ?", false).Update("archived", true)
	return res.RowsAffected, res.Error
}

func (r *ChallengeRepository) SetPublishedMessageURL(id uint, url string) error {
	return r.DB.Model(&model.Challenge{}).Where("id = ?", id).Update("published_message_url", url).Error
}

// Delete removes the challenge and cascades to its attempts.
func (r *ChallengeRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("challenge_id = ?", id).Delete(&model.AttemptedChallenge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Challenge{}, id).Error
	})
}
