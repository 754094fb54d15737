package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ctf_backend/internal/cache"
	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/internal/util"
	"ctf_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const autocompleteLimit = 25

type PublishStatus string

const (
	PublishDone                 PublishStatus = "published"
	PublishConfirmationRequired PublishStatus = "confirmation_required"
	PublishTimedOut             PublishStatus = "timed_out"
	PublishInvalid              PublishStatus = "invalid"
)

// DraftInput carries the authorable fields of a challenge.
type DraftInput struct {
	Title       string   `json:"title" binding:"required"`
	Category    string   `json:"category"`
	Points      int      `json:"points"`
	Flags       []string `json:"flags"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	Hint        *string  `json:"hint"`
	HintCost    *int     `json:"hintCost"`
}

type PublishResult struct {
	Status        PublishStatus    `json:"status"`
	Challenge     *model.Challenge `json:"challenge,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	Token         string           `json:"token,omitempty"`
	MessageURL    string           `json:"messageURL,omitempty"`
	AnnounceError string           `json:"announceError,omitempty"`
}

type ChallengeService struct {
	DB        *gorm.DB
	Repo      *repository.ChallengeRepository
	Cache     *cache.ChallengeCache
	Confirms  ConfirmStore
	Announcer Announcer
	Game      *config.GameConfig
}

func NewChallengeService(db *gorm.DB, repo *repository.ChallengeRepository, challengeCache *cache.ChallengeCache, confirms ConfirmStore, announcer Announcer, game *config.GameConfig) *ChallengeService {
	return &ChallengeService{
		DB:        db,
		Repo:      repo,
		Cache:     challengeCache,
		Confirms:  confirms,
		Announcer: announcer,
		Game:      game,
	}
}

func (s *ChallengeService) apply(challenge *model.Challenge, in DraftInput) {
	flags := make([]string, 0, len(in.Flags))
	for _, f := range in.Flags {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			flags = append(flags, trimmed)
		}
	}

	challenge.Title = strings.TrimSpace(in.Title)
	challenge.Category = strings.TrimSpace(in.Category)
	challenge.Points = in.Points
	challenge.Flags = flags
	challenge.Description = in.Description
	challenge.Files = in.Files
	challenge.Hint = in.Hint
	challenge.HintCost = in.HintCost
	challenge.EditedAt = time.Now()
}

// validatePublish lists everything that blocks an announcement outright.
func validatePublish(in DraftInput) []string {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		problems = append(problems, "description is required")
	}
	hasFlag := false
	for _, f := range in.Flags {
		if strings.TrimSpace(f) != "" {
			hasFlag = true
			break
		}
	}
	if !hasFlag {
		problems = append(problems, "at least one flag is required")
	}
	// zero-point challenges are legitimate (warmups, jokes)
	if in.Points < 0 {
		problems = append(problems, "points cannot be negative")
	}
	if in.Hint != nil && *in.Hint != "" && in.HintCost == nil {
		problems = append(problems, "a hint needs a cost")
	}
	if in.HintCost != nil && *in.HintCost < 0 {
		problems = append(problems, "hint cost cannot be negative")
	}
	return problems
}

// SaveDraft creates or updates a challenge without announcing it. Saving an
// already-published challenge pulls it back to draft.
func (s *ChallengeService) SaveDraft(authorID string, id *uint, in DraftInput) (*model.Challenge, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, util.ErrChallengeInvalid
	}

	var challenge *model.Challenge
	if id == nil {
		challenge = &model.Challenge{AuthorID: authorID}
		s.apply(challenge, in)
		if err := s.Repo.Create(challenge); err != nil {
			return nil, err
		}
	} else {
		existing, err := s.Repo.FindByID(*id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrChallengeNotFound
		}
		if err != nil {
			return nil, err
		}
		s.apply(existing, in)
		existing.Published = false
		if err := s.Repo.Save(existing); err != nil {
			return nil, err
		}
		challenge = existing
	}

	s.Cache.Set(*challenge)
	return challenge, nil
}

func publishConfirmKey(authorID, title string) string {
	return fmt.Sprintf("%s:%s", authorID, strings.ToLower(strings.TrimSpace(title)))
}

// publishGuards collects the advisory warnings an organizer must acknowledge
// before the announcement goes out. Evaluated against the cache: these checks
// protect against mistakes, not races.
func (s *ChallengeService) publishGuards(id *uint, in DraftInput) []string {
	var warnings []string

	title := strings.TrimSpace(in.Title)
	if dup, ok := s.Cache.Find(func(c model.Challenge) bool {
		if id != nil && c.ID == *id {
			return false
		}
		return strings.EqualFold(c.Title, title)
	}); ok {
		warnings = append(warnings, fmt.Sprintf("a challenge titled %q already exists (#%d)", dup.Title, dup.ID))
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	if recent, ok := s.Cache.Find(func(c model.Challenge) bool {
		// a republish must not trip over its own announcement
		if id != nil && c.ID == *id {
			return false
		}
		if c.PublishedMessageURL == nil {
			return false
		}
		return util.MessageURLTime(*c.PublishedMessageURL).After(cutoff)
	}); ok {
		warnings = append(warnings, fmt.Sprintf("%q was announced less than 24 hours ago", recent.Title))
	}

	if id != nil {
		if existing, ok := s.Cache.Get(*id); ok && existing.Published {
			warnings = append(warnings, "this challenge is already published; publishing again posts a new announcement")
		}
	}
	return warnings
}

// Publish saves the challenge and announces it. When any guard trips, the
// caller gets the warnings plus a confirmation token; resubmitting with the
// token within the window overrides the guards.
func (s *ChallengeService) Publish(ctx context.Context, authorID, authorName string, id *uint, in DraftInput, overrideToken string) (*PublishResult, error) {
	if problems := validatePublish(in); len(problems) > 0 {
		return &PublishResult{Status: PublishInvalid, Warnings: problems}, nil
	}

	key := publishConfirmKey(authorID, in.Title)
	if overrideToken != "" {
		ok, err := s.Confirms.Consume(ctx, "publish", key, overrideToken)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &PublishResult{Status: PublishTimedOut}, nil
		}
	} else if warnings := s.publishGuards(id, in); len(warnings) > 0 {
		token, err := s.Confirms.Issue(ctx, "publish", key, s.Game.ConfirmTTL)
		if err != nil {
			return nil, err
		}
		return &PublishResult{
			Status:   PublishConfirmationRequired,
			Warnings: warnings,
			Token:    token,
		}, nil
	}

	var challenge *model.Challenge
	if id == nil {
		challenge = &model.Challenge{AuthorID: authorID}
		s.apply(challenge, in)
		challenge.Published = true
		if err := s.Repo.Create(challenge); err != nil {
			return nil, err
		}
	} else {
		existing, err := s.Repo.FindByID(*id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrChallengeNotFound
		}
		if err != nil {
			return nil, err
		}
		s.apply(existing, in)
		existing.Published = true
		if err := s.Repo.Save(existing); err != nil {
			return nil, err
		}
		challenge = existing
	}

	result := &PublishResult{Status: PublishDone, Challenge: challenge}

	// The record is committed before the announcement goes out; a webhook
	// failure leaves a published-but-unannounced challenge, reported to the
	// caller rather than rolled back.
	url, err := s.Announcer.PublishChallenge(ctx, challenge, authorName)
	if err != nil {
		logger.Log.Error("challenge announcement failed",
			zap.Uint("challenge_id", challenge.ID),
			zap.Error(err))
		result.AnnounceError = err.Error()
	} else {
		if err := s.Repo.SetPublishedMessageURL(challenge.ID, url); err != nil {
			return nil, err
		}
		challenge.PublishedMessageURL = &url
		result.MessageURL = url
		s.Announcer.Notify(ctx, "Challenge published",
			fmt.Sprintf("%q (%d points) announced by %s", challenge.Title, challenge.Points, authorName))
	}

	s.Cache.Set(*challenge)
	return result, nil
}

// EditPublishedMessage updates the stored challenge and then edits its
// announcement in place. The record is updated even when the message can no
// longer be edited; that failure is surfaced as ErrMessageNotEditable.
func (s *ChallengeService) EditPublishedMessage(ctx context.Context, id uint, in *DraftInput) (*model.Challenge, error) {
	challenge, err := s.Repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	if in != nil {
		s.apply(challenge, *in)
		if err := s.Repo.Save(challenge); err != nil {
			return nil, err
		}
		s.Cache.Set(*challenge)
	}

	if err := s.Announcer.EditPublished(ctx, challenge); err != nil {
		return challenge, err
	}
	return challenge, nil
}

// SetArchived toggles the archive flag. Archived challenges stop accepting
// submissions and give their hint away.
func (s *ChallengeService) SetArchived(id uint, archived bool) (*model.Challenge, error) {
	challenge, err := s.Repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrChallengeNotSaved
	}
	if err != nil {
		return nil, err
	}

	if err := s.Repo.SetArchived(id, archived); err != nil {
		return nil, err
	}
	challenge.Archived = archived
	s.Cache.Set(*challenge)
	return challenge, nil
}

func (s *ChallengeService) Delete(id uint) error {
	if _, err := s.Repo.FindByID(id); errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrChallengeNotFound
	} else if err != nil {
		return err
	}

	if err := s.Repo.Delete(id); err != nil {
		return err
	}
	s.Cache.Invalidate(id)
	return nil
}

func (s *ChallengeService) Get(id uint) (*model.Challenge, error) {
	challenge, err := s.Repo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrChallengeNotFound
	}
	return challenge, err
}

// List returns the cached challenge mirror, most recently edited first.
// Unpublished drafts are organizer-only.
func (s *ChallengeService) List(includeUnpublished bool) []model.Challenge {
	all := s.Cache.All()
	if includeUnpublished {
		return all
	}
	out := make([]model.Challenge, 0, len(all))
	for _, c := range all {
		if c.Published {
			out = append(out, c)
		}
	}
	return out
}

// Autocomplete matches challenges by id or title substring, newest first.
func (s *ChallengeService) Autocomplete(query string, includeUnpublished bool) []model.Challenge {
	query = strings.ToLower(strings.TrimSpace(query))
	matches := make([]model.Challenge, 0, autocompleteLimit)
	for _, c := range s.List(includeUnpublished) {
		if len(matches) == autocompleteLimit {
			break
		}
		if query == "" ||
			strings.Contains(strings.ToLower(c.Title), query) ||
			strconv.FormatUint(uint64(c.ID), 10) == query {
			matches = append(matches, c)
		}
	}
	return matches
}
