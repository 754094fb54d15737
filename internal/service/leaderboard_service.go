package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const leaderboardSnapshotTTL = 60 * time.Second

// LeaderboardEntry pairs a user with their most recent solve time, the
// tiebreaker between equal scores.
type LeaderboardEntry struct {
	User        model.User
	LatestSolve time.Time
}

type LeaderboardRow struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"userId,omitempty"`
	Username  string `json:"username"`
	Points    int    `json:"points"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

type LeaderboardPage struct {
	Page         int              `json:"page"`
	TotalPages   int              `json:"totalPages"`
	TotalPlayers int              `json:"totalPlayers"`
	Rows         []LeaderboardRow `json:"rows"`
}

type LeaderboardService struct {
	UserRepo    *repository.UserRepository
	AttemptRepo *repository.AttemptRepository
	Redis       *redis.Client
	PageSize    int
}

func NewLeaderboardService(userRepo *repository.UserRepository, attemptRepo *repository.AttemptRepository, rdb *redis.Client, pageSize int) *LeaderboardService {
	return &LeaderboardService{
		UserRepo:    userRepo,
		AttemptRepo: attemptRepo,
		Redis:       rdb,
		PageSize:    pageSize,
	}
}

// RankEntries orders entries by points descending; ties go to the player who
// scored most recently. The sort is stable so fully tied players keep their
// incoming order.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].User.Points != ranked[j].User.Points {
			return ranked[i].User.Points > ranked[j].User.Points
		}
		return ranked[i].LatestSolve.After(ranked[j].LatestSolve)
	})
	return ranked
}

// ranked loads every scoring player and returns them in leaderboard order.
// Blacklisted and zero-point players never appear.
func (s *LeaderboardService) ranked() ([]LeaderboardEntry, error) {
	users, err := s.UserRepo.ListScorers()
	if err != nil {
		return nil, err
	}
	latest, err := s.AttemptRepo.LatestSolves()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, LeaderboardEntry{User: u, LatestSolve: latest[u.ID]})
	}
	return RankEntries(entries), nil
}

// Page returns one leaderboard page (1-based). The rendered page is held in
// redis for a short window; scoring writes do not invalidate it.
func (s *LeaderboardService) Page(ctx context.Context, page int) (*LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}

	cacheKey := fmt.Sprintf("leaderboard:page:%d", page)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached LeaderboardPage
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		}
	}

	entries, err := s.ranked()
	if err != nil {
		return nil, err
	}

	total := len(entries)
	totalPages := (total + s.PageSize - 1) / s.PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * s.PageSize
	if start > total {
		start = total
	}
	end := start + s.PageSize
	if end > total {
		end = total
	}

	result := &LeaderboardPage{
		Page:         page,
		TotalPages:   totalPages,
		TotalPlayers: total,
		Rows:         make([]LeaderboardRow, 0, end-start),
	}
	for i := start; i < end; i++ {
		entry := entries[i]
		row := LeaderboardRow{
			Rank:     i + 1,
			UserID:   entry.User.ID,
			Username: entry.User.Username,
			Points:   entry.User.Points,
		}
		if entry.User.AnonymousMode {
			row.UserID = ""
			row.Username = "Anonymous"
			row.Anonymous = true
		}
		result.Rows = append(result.Rows, row)
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.Redis.Set(ctx, cacheKey, raw, leaderboardSnapshotTTL).Err(); err != nil {
				logger.Log.Warn("leaderboard snapshot write failed", zap.Error(err))
			}
		}
	}
	return result, nil
}

// RankOf returns the player's 1-based rank and the total number of scorers.
// Rank 0 means the player is not on the board.
func (s *LeaderboardService) RankOf(userID string) (int, int, error) {
	entries, err := s.ranked()
	if err != nil {
		return 0, 0, err
	}
	for i, entry := range entries {
		if entry.User.ID == userID {
			return i + 1, len(entries), nil
		}
	}
	return 0, len(entries), nil
}
