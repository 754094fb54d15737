package service

import (
	"context"
	"testing"

	"ctf_backend/internal/model"
)

func withHint(text string, cost int) func(*model.Challenge) {
	return func(c *model.Challenge) {
		c.Hint = strptr(text)
		c.HintCost = intptr(cost)
	}
}

func TestHintQuoteAndCommitChargesOnce(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Hinted", 100, []string{"flag{x}"}, withHint("look closer", 30))
	env.createUser(t, "u1", "alice", 100)

	quote, err := env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Status != HintConfirmationRequired {
		t.Fatalf("quote status = %s, want confirmation_required", quote.Status)
	}
	if quote.Hint != "" {
		t.Errorf("quote must not leak the hint text")
	}
	if quote.Cost != 30 {
		t.Errorf("quote cost = %d, want 30", quote.Cost)
	}
	if quote.Token == "" {
		t.Fatalf("quote carries no token")
	}

	commit, err := env.hint.Commit(context.Background(), "u1", "alice", challenge.ID, quote.Token)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if commit.Status != HintCharged {
		t.Fatalf("commit status = %s, want charged", commit.Status)
	}
	if commit.Hint != "look closer" {
		t.Errorf("commit hint = %q", commit.Hint)
	}
	if got := env.userPoints(t, "u1"); got != 70 {
		t.Errorf("points after charge = %d, want 70", got)
	}

	// replaying the commit re-shows the hint without charging again
	replay, err := env.hint.Commit(context.Background(), "u1", "alice", challenge.ID, quote.Token)
	if err != nil {
		t.Fatalf("replay commit: %v", err)
	}
	if replay.Status != HintAlreadyUsed {
		t.Fatalf("replay status = %s, want already_used", replay.Status)
	}
	if got := env.userPoints(t, "u1"); got != 70 {
		t.Errorf("points after replay = %d, want 70", got)
	}
}

func TestHintInsufficientPointsReportsShortfall(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Pricey", 100, []string{"flag{x}"}, withHint("secret", 50))
	env.createUser(t, "u1", "alice", 30)

	quote, err := env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Status != HintInsufficientPoints {
		t.Fatalf("status = %s, want insufficient_points", quote.Status)
	}
	if quote.Shortfall != 20 {
		t.Errorf("shortfall = %d, want 20", quote.Shortfall)
	}
	if quote.Hint != "" {
		t.Errorf("insufficient quote must not include the hint")
	}
}

func TestHintFreeForSolvedAndArchived(t *testing.T) {
	env := newTestEnv(t)
	solvedCh := env.createChallenge(t, "Done", 100, []string{"flag{x}"}, withHint("free now", 40))

	if _, err := env.submission.Submit(context.Background(), "u1", "alice", solvedCh.ID, "flag{x}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	result, err := env.hint.Quote(context.Background(), "u1", "alice", solvedCh.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintFree || result.Hint != "free now" {
		t.Fatalf("solved quote = %+v, want free with text", result)
	}
	if got := env.userPoints(t, "u1"); got != 100 {
		t.Errorf("free hint must not charge, points = %d", got)
	}

	archivedCh := env.createChallenge(t, "Retired", 100, []string{"flag{y}"}, withHint("old news", 40), func(c *model.Challenge) {
		c.Archived = true
	})
	result, err = env.hint.Quote(context.Background(), "u2", "bob", archivedCh.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintFree || result.Hint != "old news" {
		t.Fatalf("archived quote = %+v, want free with text", result)
	}
}

func TestHintFreeWinsOverAlreadyUsed(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Paid Then Retired", 100, []string{"flag{x}"}, withHint("secret", 30))
	env.createUser(t, "u1", "alice", 100)

	quote, err := env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := env.hint.Commit(context.Background(), "u1", "alice", challenge.ID, quote.Token); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// once the challenge is archived the hint is free for everyone, including
	// a player who paid while it was live
	if err := env.challenges.SetArchived(challenge.ID, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	result, err := env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintFree || result.Hint != "secret" {
		t.Fatalf("archived quote after charge = %+v, want free with text", result)
	}

	// same precedence for a solver who paid earlier
	if err := env.challenges.SetArchived(challenge.ID, false); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if _, err := env.submission.Submit(context.Background(), "u1", "alice", challenge.ID, "flag{x}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	result, err = env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintFree {
		t.Fatalf("solved quote after charge = %s, want free", result.Status)
	}
}

func TestHintUnavailableWithoutHintOrPublish(t *testing.T) {
	env := newTestEnv(t)
	noHint := env.createChallenge(t, "Bare", 100, []string{"flag{x}"})

	result, err := env.hint.Quote(context.Background(), "u1", "alice", noHint.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintUnavailable {
		t.Fatalf("status = %s, want unavailable", result.Status)
	}

	// hint text without a cost is not a usable hint
	half := env.createChallenge(t, "Half", 100, []string{"flag{y}"}, func(c *model.Challenge) {
		c.Hint = strptr("text only")
	})
	result, err = env.hint.Quote(context.Background(), "u1", "alice", half.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.Status != HintUnavailable {
		t.Fatalf("status = %s, want unavailable for cost-less hint", result.Status)
	}
}

func TestHintCommitWithExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Timed", 100, []string{"flag{x}"}, withHint("secret", 30))
	env.createUser(t, "u1", "alice", 100)

	result, err := env.hint.Commit(context.Background(), "u1", "alice", challenge.ID, "bogus-token")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Status != HintTimedOut {
		t.Fatalf("status = %s, want timed_out", result.Status)
	}
	if got := env.userPoints(t, "u1"); got != 100 {
		t.Errorf("expired commit must not charge, points = %d", got)
	}
}

func TestHintCommitAfterBalanceSpentElsewhere(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Drained", 100, []string{"flag{x}"}, withHint("secret", 30))
	env.createUser(t, "u1", "alice", 100)

	quote, err := env.hint.Quote(context.Background(), "u1", "alice", challenge.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	// balance drops below the cost between quote and commit
	if err := env.users.SetPoints("u1", 10); err != nil {
		t.Fatalf("set points: %v", err)
	}

	commit, err := env.hint.Commit(context.Background(), "u1", "alice", challenge.ID, quote.Token)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if commit.Status != HintInsufficientPoints {
		t.Fatalf("status = %s, want insufficient_points", commit.Status)
	}
	if commit.Shortfall != 20 {
		t.Errorf("shortfall = %d, want 20", commit.Shortfall)
	}
	if got := env.userPoints(t, "u1"); got != 10 {
		t.Errorf("points = %d, want 10 (never negative)", got)
	}

	attempt, err := env.attempts.Find(challenge.ID, "u1")
	if err == nil && attempt.UsedHint {
		t.Errorf("failed charge must not mark the hint used")
	}
}
