package service

import (
	"context"
	"fmt"

	"ctf_backend/internal/cache"
	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/internal/util"
	"ctf_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const roundResetKey = "all"

// RoundResetQuote is phase one of a reset: how many players it will touch and
// the token the admin must return to commit.
type RoundResetQuote struct {
	Token           string `json:"token"`
	PlayersAffected int64  `json:"playersAffected"`
}

// RoundResetResult reports a committed reset. Standings is the final
// leaderboard of the round, captured before scores were zeroed.
type RoundResetResult struct {
	Standings          []LeaderboardEntry `json:"standings"`
	PlayersReset       int64              `json:"playersReset"`
	ChallengesArchived int64              `json:"challengesArchived"`
}

// RoundService ends a competition round: every challenge is archived and every
// score is folded into lifetime points.
type RoundService struct {
	DB             *gorm.DB
	UserRepo       *repository.UserRepository
	ChallengeRepo  *repository.ChallengeRepository
	Leaderboard    *LeaderboardService
	ChallengeCache *cache.ChallengeCache
	Confirms       ConfirmStore
	Announcer      Announcer
	Game           *config.GameConfig
}

func NewRoundService(db *gorm.DB, userRepo *repository.UserRepository, challengeRepo *repository.ChallengeRepository, leaderboard *LeaderboardService, challengeCache *cache.ChallengeCache, confirms ConfirmStore, announcer Announcer, game *config.GameConfig) *RoundService {
	return &RoundService{
		DB:             db,
		UserRepo:       userRepo,
		ChallengeRepo:  challengeRepo,
		Leaderboard:    leaderboard,
		ChallengeCache: challengeCache,
		Confirms:       confirms,
		Announcer:      announcer,
		Game:           game,
	}
}

// QuoteReset issues the reset confirmation. The long window lets the reset be
// prepared ahead of the round's official end.
func (s *RoundService) QuoteReset(ctx context.Context) (*RoundResetQuote, error) {
	affected, err := s.UserRepo.CountScorers()
	if err != nil {
		return nil, err
	}
	token, err := s.Confirms.Issue(ctx, "round-reset", roundResetKey, s.Game.ResetConfirmTTL)
	if err != nil {
		return nil, err
	}
	return &RoundResetQuote{Token: token, PlayersAffected: affected}, nil
}

// CommitReset archives every challenge and folds current scores into lifetime
// points in one transaction. Lifetime points only ever grow: a player keeps
// the larger of their previous lifetime total and this round's score.
// Cooldowns and hint usage records carry over untouched.
func (s *RoundService) CommitReset(ctx context.Context, token string) (*RoundResetResult, error) {
	ok, err := s.Confirms.Consume(ctx, "round-reset", roundResetKey, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrConfirmExpired
	}

	standings, err := s.Leaderboard.ranked()
	if err != nil {
		return nil, err
	}

	result := &RoundResetResult{Standings: standings}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		archived, aerr := s.ChallengeRepo.ArchiveAll(tx)
		if aerr != nil {
			return aerr
		}
		result.ChallengesArchived = archived

		// the same set QuoteReset counted: blacklisted players keep their
		// points so an unban restores them mid-round
		reset := tx.Model(&model.User{}).
			Where("points > 0 AND blacklisted = ?", false).
			Updates(map[string]interface{}{
				"lifetime_points": gorm.Expr("CASE WHEN points > lifetime_points THEN points ELSE lifetime_points END"),
				"points":          0,
			})
		if reset.Error != nil {
			return reset.Error
		}
		result.PlayersReset = reset.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.ChallengeCache.Refresh(); err != nil {
		logger.Log.Warn("challenge cache refresh after reset failed", zap.Error(err))
	}

	logger.Log.Info("round reset committed",
		zap.Int64("players_reset", result.PlayersReset),
		zap.Int64("challenges_archived", result.ChallengesArchived))
	s.Announcer.Notify(ctx, "Round reset",
		fmt.Sprintf("round ended: %d players reset, %d challenges archived", result.PlayersReset, result.ChallengesArchived))

	return result, nil
}
