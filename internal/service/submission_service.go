package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/pkg/logger"
	"ctf_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmissionStatus string

const (
	SubmissionSolved        SubmissionStatus = "solved"
	SubmissionIncorrect     SubmissionStatus = "incorrect"
	SubmissionAlreadySolved SubmissionStatus = "already_solved"
	SubmissionOnCooldown    SubmissionStatus = "on_cooldown"
	SubmissionUnavailable   SubmissionStatus = "unavailable"
	SubmissionArchived      SubmissionStatus = "archived"
)

type SubmissionResult struct {
	Status            SubmissionStatus `json:"status"`
	PointsAwarded     int              `json:"pointsAwarded,omitempty"`
	FirstBlood        bool             `json:"firstBlood,omitempty"`
	OldRank           int              `json:"oldRank,omitempty"`
	NewRank           int              `json:"newRank,omitempty"`
	TotalAttempts     int              `json:"totalAttempts,omitempty"`
	UsedHint          bool             `json:"usedHint,omitempty"`
	CooldownRemaining int              `json:"cooldownRemaining,omitempty"` // seconds
}

// raceLostSolved aborts the award transaction when a concurrent submission
// solved the attempt first.
var raceLostSolved = errors.New("attempt already solved")

type SubmissionService struct {
	DB            *gorm.DB
	UserRepo      *repository.UserRepository
	ChallengeRepo *repository.ChallengeRepository
	AttemptRepo   *repository.AttemptRepository
	Leaderboard   *LeaderboardService
	Announcer     Announcer
	Game          *config.GameConfig
}

func NewSubmissionService(db *gorm.DB, userRepo *repository.UserRepository, challengeRepo *repository.ChallengeRepository, attemptRepo *repository.AttemptRepository, leaderboard *LeaderboardService, announcer Announcer, game *config.GameConfig) *SubmissionService {
	return &SubmissionService{
		DB:            db,
		UserRepo:      userRepo,
		ChallengeRepo: challengeRepo,
		AttemptRepo:   attemptRepo,
		Leaderboard:   leaderboard,
		Announcer:     announcer,
		Game:          game,
	}
}

// Submit evaluates one flag submission. Challenge state is read from the
// store, never a cache. The award path (first-blood check, solve transition,
// point credit) runs in a single transaction so a challenge produces at most
// one first blood and a player is credited at most once per challenge.
func (s *SubmissionService) Submit(ctx context.Context, userID, username string, challengeID uint, flag string) (*SubmissionResult, error) {
	user, err := s.UserRepo.FindOrCreate(userID, username)
	if err != nil {
		return nil, err
	}

	challenge, err := s.ChallengeRepo.FindByID(challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &SubmissionResult{Status: SubmissionUnavailable}, nil
	}
	if err != nil {
		return nil, err
	}
	if !challenge.Published {
		return &SubmissionResult{Status: SubmissionUnavailable}, nil
	}

	// archived wins over everything, including a past solve
	if challenge.Archived {
		return &SubmissionResult{Status: SubmissionArchived}, nil
	}

	attempt, err := s.AttemptRepo.Find(challengeID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if attempt != nil && attempt.Solved {
		return &SubmissionResult{
			Status:        SubmissionAlreadySolved,
			TotalAttempts: attempt.TotalAttempts,
			UsedHint:      attempt.UsedHint,
		}, nil
	}

	now := time.Now()
	if user.FlagSubmitCooldown != nil && user.FlagSubmitCooldown.After(now) {
		remaining := int(time.Until(*user.FlagSubmitCooldown).Seconds()) + 1
		return &SubmissionResult{
			Status:            SubmissionOnCooldown,
			CooldownRemaining: remaining,
		}, nil
	}

	candidate := strings.TrimSpace(flag)

	if !challenge.MatchesFlag(candidate) {
		until := now.Add(s.Game.SubmitCooldown)
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := s.AttemptRepo.RecordIncorrect(tx, challengeID, userID); err != nil {
				return err
			}
			return s.UserRepo.SetCooldown(tx, userID, until)
		})
		if err != nil {
			return nil, err
		}
		monitoring.FlagSubmissions.WithLabelValues("incorrect").Inc()

		total := 1
		if attempt != nil {
			total = attempt.TotalAttempts + 1
		}
		return &SubmissionResult{
			Status:            SubmissionIncorrect,
			TotalAttempts:     total,
			CooldownRemaining: int(s.Game.SubmitCooldown.Seconds()),
		}, nil
	}

	oldRank, _, err := s.Leaderboard.RankOf(userID)
	if err != nil {
		return nil, err
	}

	var firstBlood bool
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		solvedCount, err := s.AttemptRepo.CountSolved(tx, challengeID)
		if err != nil {
			return err
		}
		firstBlood = solvedCount == 0

		ok, err := s.AttemptRepo.MarkSolved(tx, challengeID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return raceLostSolved
		}

		return s.UserRepo.AddPoints(tx, userID, challenge.Points)
	})
	if errors.Is(err, raceLostSolved) {
		return &SubmissionResult{Status: SubmissionAlreadySolved}, nil
	}
	if err != nil {
		return nil, err
	}

	monitoring.FlagSubmissions.WithLabelValues("solved").Inc()
	if firstBlood {
		monitoring.FirstBloods.Inc()
		s.Announcer.Notify(ctx, "First blood",
			fmt.Sprintf("%s drew first blood on **%s** (%d points)", user.Username, challenge.Title, challenge.Points))
	}

	newRank, _, err := s.Leaderboard.RankOf(userID)
	if err != nil {
		logger.Log.Warn("rank lookup after solve failed", zap.Error(err))
	}

	solved, err := s.AttemptRepo.Find(challengeID, userID)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("flag solved",
		zap.String("user_id", userID),
		zap.Uint("challenge_id", challengeID),
		zap.Bool("first_blood", firstBlood))

	return &SubmissionResult{
		Status:        SubmissionSolved,
		PointsAwarded: challenge.Points,
		FirstBlood:    firstBlood,
		OldRank:       oldRank,
		NewRank:       newRank,
		TotalAttempts: solved.TotalAttempts,
		UsedHint:      solved.UsedHint,
	}, nil
}

// Solvers lists the solved attempts for a challenge in solve order.
func (s *SubmissionService) Solvers(challengeID uint) ([]model.AttemptedChallenge, error) {
	if _, err := s.ChallengeRepo.FindByID(challengeID); err != nil {
		return nil, err
	}
	return s.AttemptRepo.SolvedByChallenge(challengeID)
}
