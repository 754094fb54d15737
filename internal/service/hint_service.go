package service

import (
	"context"
	"errors"
	"fmt"

	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/repository"
	"ctf_backend/pkg/monitoring"

	"gorm.io/gorm"
)

type HintStatus string

const (
	// HintFree: the hint is handed out without charge (already solved, or the
	// challenge is archived).
	HintFree HintStatus = "free"
	// HintAlreadyUsed: the player paid before; the hint is re-shown at no cost.
	HintAlreadyUsed HintStatus = "already_used"
	// HintCharged: the commit succeeded and the cost was deducted.
	HintCharged HintStatus = "charged"
	// HintConfirmationRequired: a paid reveal is pending; commit with the token.
	HintConfirmationRequired HintStatus = "confirmation_required"
	// HintInsufficientPoints: balance does not cover the cost.
	HintInsufficientPoints HintStatus = "insufficient_points"
	// HintUnavailable: no hint configured, or challenge not published.
	HintUnavailable HintStatus = "unavailable"
	// HintTimedOut: the confirmation token expired or was already used.
	HintTimedOut HintStatus = "timed_out"
)

type HintResult struct {
	Status    HintStatus `json:"status"`
	Hint      string     `json:"hint,omitempty"`
	Cost      int        `json:"cost,omitempty"`
	Shortfall int        `json:"shortfall,omitempty"`
	Token     string     `json:"token,omitempty"`
}

var hintRaceInsufficient = errors.New("balance no longer covers hint cost")
var hintRaceAlreadyUsed = errors.New("hint already charged")

type HintService struct {
	DB            *gorm.DB
	UserRepo      *repository.UserRepository
	ChallengeRepo *repository.ChallengeRepository
	AttemptRepo   *repository.AttemptRepository
	Confirms      ConfirmStore
	Announcer     Announcer
	Game          *config.GameConfig
}

func NewHintService(db *gorm.DB, userRepo *repository.UserRepository, challengeRepo *repository.ChallengeRepository, attemptRepo *repository.AttemptRepository, confirms ConfirmStore, announcer Announcer, game *config.GameConfig) *HintService {
	return &HintService{
		DB:            db,
		UserRepo:      userRepo,
		ChallengeRepo: challengeRepo,
		AttemptRepo:   attemptRepo,
		Confirms:      confirms,
		Announcer:     announcer,
		Game:          game,
	}
}

func hintConfirmKey(userID string, challengeID uint) string {
	return fmt.Sprintf("%s:%d", userID, challengeID)
}

// load resolves the challenge and the player's attempt row (nil when the
// player never touched the challenge).
func (s *HintService) load(userID, username string, challengeID uint) (*model.Challenge, *model.AttemptedChallenge, error) {
	if _, err := s.UserRepo.FindOrCreate(userID, username); err != nil {
		return nil, nil, err
	}

	challenge, err := s.ChallengeRepo.FindByID(challengeID)
	if err != nil {
		return nil, nil, err
	}

	attempt, err := s.AttemptRepo.Find(challengeID, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	return challenge, attempt, nil
}

// Quote is phase one of the hint economy: it decides whether the hint is
// free, already paid for, unaffordable, or needs a paid confirmation. No state
// changes here except issuing the confirmation token.
func (s *HintService) Quote(ctx context.Context, userID, username string, challengeID uint) (*HintResult, error) {
	challenge, attempt, err := s.load(userID, username, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &HintResult{Status: HintUnavailable}, nil
	}
	if err != nil {
		return nil, err
	}
	if !challenge.Published || !challenge.HasHint() {
		return &HintResult{Status: HintUnavailable}, nil
	}

	hint := *challenge.Hint
	cost := *challenge.HintCost

	// solved and archived challenges give the hint away, even to players who
	// paid while the challenge was live
	if (attempt != nil && attempt.Solved) || challenge.Archived {
		return &HintResult{Status: HintFree, Hint: hint}, nil
	}
	if attempt != nil && attempt.UsedHint {
		return &HintResult{Status: HintAlreadyUsed, Hint: hint, Cost: cost}, nil
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user.Points < cost {
		return &HintResult{
			Status:    HintInsufficientPoints,
			Cost:      cost,
			Shortfall: cost - user.Points,
		}, nil
	}

	token, err := s.Confirms.Issue(ctx, "hint", hintConfirmKey(userID, challengeID), s.Game.ConfirmTTL)
	if err != nil {
		return nil, err
	}
	return &HintResult{Status: HintConfirmationRequired, Cost: cost, Token: token}, nil
}

// Commit is phase two: it consumes the confirmation token and charges the
// cost. The charge is a conditional decrement, so a balance spent elsewhere
// between quote and commit downgrades the result instead of going negative.
// The token is single-use; a successful charge is never repeated.
func (s *HintService) Commit(ctx context.Context, userID, username string, challengeID uint, token string) (*HintResult, error) {
	challenge, attempt, err := s.load(userID, username, challengeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &HintResult{Status: HintUnavailable}, nil
	}
	if err != nil {
		return nil, err
	}
	if !challenge.Published || !challenge.HasHint() {
		return &HintResult{Status: HintUnavailable}, nil
	}

	hint := *challenge.Hint
	cost := *challenge.HintCost

	// conditions that make the charge moot win over token validity
	if (attempt != nil && attempt.Solved) || challenge.Archived {
		return &HintResult{Status: HintFree, Hint: hint}, nil
	}
	if attempt != nil && attempt.UsedHint {
		return &HintResult{Status: HintAlreadyUsed, Hint: hint, Cost: cost}, nil
	}

	ok, err := s.Confirms.Consume(ctx, "hint", hintConfirmKey(userID, challengeID), token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &HintResult{Status: HintTimedOut}, nil
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var current model.AttemptedChallenge
		ferr := tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).First(&current).Error
		if ferr == nil && current.UsedHint {
			return hintRaceAlreadyUsed
		}
		if ferr != nil && !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return ferr
		}

		rows, cerr := s.UserRepo.ChargePoints(tx, userID, cost)
		if cerr != nil {
			return cerr
		}
		if rows == 0 {
			return hintRaceInsufficient
		}
		return s.AttemptRepo.MarkHintUsed(tx, challengeID, userID)
	})
	switch {
	case errors.Is(err, hintRaceAlreadyUsed):
		return &HintResult{Status: HintAlreadyUsed, Hint: hint, Cost: cost}, nil
	case errors.Is(err, hintRaceInsufficient):
		user, ferr := s.UserRepo.FindByID(userID)
		if ferr != nil {
			return nil, ferr
		}
		return &HintResult{
			Status:    HintInsufficientPoints,
			Cost:      cost,
			Shortfall: cost - user.Points,
		}, nil
	case err != nil:
		return nil, err
	}

	monitoring.HintsCharged.Inc()
	s.Announcer.Notify(ctx, "Hint purchased",
		fmt.Sprintf("%s bought the hint for **%s** (-%d points)", username, challenge.Title, cost))

	return &HintResult{Status: HintCharged, Hint: hint, Cost: cost}, nil
}
