package model

import "time"

// AttemptedChallenge records a user's submission history for one challenge.
// Exactly one row exists per (challenge, user) pair, created lazily on the
// first wrong submission, hint charge, or solve.
// swagger:model AttemptedChallenge
type AttemptedChallenge struct {
	BaseModel
	ChallengeID   uint       `gorm:"index;uniqueIndex:uniq_challenge_user;not null" json:"challengeId"`
	UserID        string     `gorm:"size:64;index;uniqueIndex:uniq_challenge_user;not null" json:"userId"`
	Solved        bool       `gorm:"default:false" json:"solved"`
	SolvedAt      *time.Time `json:"solvedAt,omitempty"`
	UsedHint      bool       `gorm:"default:false" json:"usedHint"`
	TotalAttempts int        `gorm:"default:0" json:"totalAttempts"`
}

func (AttemptedChallenge) TableName() string {
	return "attempted_challenges"
}
