package service

import (
	"errors"
	"time"

	"ctf_backend/internal/cache"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/internal/util"
	"ctf_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProfileStatus string

const (
	ProfileOK            ProfileStatus = "ok"
	ProfileNotRegistered ProfileStatus = "not_registered"
	ProfileAnonymous     ProfileStatus = "anonymous"
	ProfileBlacklisted   ProfileStatus = "blacklisted"
)

type SolveSummary struct {
	ChallengeID   uint       `json:"challengeId"`
	Title         string     `json:"title"`
	Points        int        `json:"points"`
	TotalAttempts int        `json:"totalAttempts"`
	UsedHint      bool       `json:"usedHint"`
	SolvedAt      *time.Time `json:"solvedAt,omitempty"`
}

type Profile struct {
	Status         ProfileStatus  `json:"status"`
	UserID         string         `json:"userId,omitempty"`
	Username       string         `json:"username,omitempty"`
	Points         int            `json:"points"`
	LifetimePoints int            `json:"lifetimePoints"`
	Rank           int            `json:"rank,omitempty"`
	TotalPlayers   int            `json:"totalPlayers,omitempty"`
	Attempted      int            `json:"attempted"`
	Solved         int            `json:"solved"`
	Solves         []SolveSummary `json:"solves,omitempty"`
}

type UserService struct {
	DB             *gorm.DB
	UserRepo       *repository.UserRepository
	AttemptRepo    *repository.AttemptRepository
	Leaderboard    *LeaderboardService
	ChallengeCache *cache.ChallengeCache
	BlacklistCache *cache.BlacklistCache
}

func NewUserService(db *gorm.DB, userRepo *repository.UserRepository, attemptRepo *repository.AttemptRepository, leaderboard *LeaderboardService, challengeCache *cache.ChallengeCache, blacklistCache *cache.BlacklistCache) *UserService {
	return &UserService{
		DB:             db,
		UserRepo:       userRepo,
		AttemptRepo:    attemptRepo,
		Leaderboard:    leaderboard,
		ChallengeCache: challengeCache,
		BlacklistCache: blacklistCache,
	}
}

// FindOrCreate registers a participant on first contact and keeps the stored
// username in sync with the identity provider.
func (s *UserService) FindOrCreate(id, username string) (*model.User, error) {
	user, err := s.UserRepo.FindOrCreate(id, username)
	if err != nil {
		return nil, err
	}
	if username != "" && user.Username != username {
		if err := s.UserRepo.SetUsername(id, username); err != nil {
			return nil, err
		}
		user.Username = username
	}
	return user, nil
}

// Profile renders a player's scoring summary. Anonymous players hide their
// profile from everyone but themselves.
func (s *UserService) Profile(targetID string, self bool) (*Profile, error) {
	user, err := s.UserRepo.FindByID(targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Profile{Status: ProfileNotRegistered}, nil
	}
	if err != nil {
		return nil, err
	}

	if user.Blacklisted && !self {
		return &Profile{Status: ProfileBlacklisted}, nil
	}
	if user.AnonymousMode && !self {
		return &Profile{Status: ProfileAnonymous}, nil
	}

	attempts, err := s.AttemptRepo.ListByUser(targetID)
	if err != nil {
		return nil, err
	}

	rank, total, err := s.Leaderboard.RankOf(targetID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Status:         ProfileOK,
		UserID:         user.ID,
		Username:       user.Username,
		Points:         user.Points,
		LifetimePoints: user.DisplayLifetimePoints(),
		Rank:           rank,
		TotalPlayers:   total,
		Attempted:      len(attempts),
	}

	for _, a := range attempts {
		if !a.Solved {
			continue
		}
		profile.Solved++
		summary := SolveSummary{
			ChallengeID:   a.ChallengeID,
			TotalAttempts: a.TotalAttempts,
			UsedHint:      a.UsedHint,
			SolvedAt:      a.SolvedAt,
		}
		if ch, ok := s.ChallengeCache.Get(a.ChallengeID); ok {
			summary.Title = ch.Title
			summary.Points = ch.Points
		}
		profile.Solves = append(profile.Solves, summary)
	}
	return profile, nil
}

func (s *UserService) SetAnonymousMode(userID string, enabled bool) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}
	return s.UserRepo.SetAnonymousMode(userID, enabled)
}

// SetPoints overwrites a player's current score (admin correction).
func (s *UserService) SetPoints(userID string, points int) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}
	return s.UserRepo.SetPoints(userID, points)
}

// AddPoints applies a relative admin adjustment.
func (s *UserService) AddPoints(userID string, delta int) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}
	return s.UserRepo.AddPoints(s.DB, userID, delta)
}

func (s *UserService) SetUsername(userID, username string) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}
	return s.UserRepo.SetUsername(userID, username)
}

// SetBlacklisted bans or unbans a player. The cache is updated synchronously
// so the guard takes effect on the next request.
func (s *UserService) SetBlacklisted(userID string, blacklisted bool) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}

	if err := s.UserRepo.SetBlacklisted(userID, blacklisted); err != nil {
		return err
	}
	if blacklisted {
		s.BlacklistCache.Add(userID)
	} else {
		s.BlacklistCache.Remove(userID)
	}

	logger.Log.Info("blacklist updated",
		zap.String("user_id", userID),
		zap.Bool("blacklisted", blacklisted))
	return nil
}

func (s *UserService) ListBlacklisted(page, pageSize int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	return s.UserRepo.ListBlacklisted(page, pageSize)
}

// Delete removes a player and their attempts entirely.
func (s *UserService) Delete(userID string) error {
	if _, err := s.UserRepo.FindByID(userID); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrUserNotFound
	} else if err != nil {
		return err
	}

	if err := s.UserRepo.Delete(userID); err != nil {
		return err
	}
	s.BlacklistCache.Remove(userID)
	return nil
}
