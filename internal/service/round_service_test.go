package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctf_backend/internal/util"
)

func TestRoundResetFoldsScoresIntoLifetime(t *testing.T) {
	env := newTestEnv(t)
	env.createChallenge(t, "Round Challenge", 100, []string{"flag{x}"})

	// alice beat her previous best, bob did not
	alice := env.createUser(t, "alice", "alice", 100)
	alice.LifetimePoints = 50
	if err := env.users.Update(alice); err != nil {
		t.Fatalf("update: %v", err)
	}
	bob := env.createUser(t, "bob", "bob", 40)
	bob.LifetimePoints = 80
	if err := env.users.Update(bob); err != nil {
		t.Fatalf("update: %v", err)
	}

	quote, err := env.round.QuoteReset(context.Background())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.PlayersAffected != 2 {
		t.Errorf("players affected = %d, want 2", quote.PlayersAffected)
	}

	result, err := env.round.CommitReset(context.Background(), quote.Token)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.PlayersReset != 2 {
		t.Errorf("players reset = %d, want 2", result.PlayersReset)
	}
	if result.ChallengesArchived != 1 {
		t.Errorf("challenges archived = %d, want 1", result.ChallengesArchived)
	}
	if len(result.Standings) != 2 || result.Standings[0].User.ID != "alice" {
		t.Errorf("standings = %+v, want pre-reset board led by alice", result.Standings)
	}

	aliceAfter, _ := env.users.FindByID("alice")
	if aliceAfter.Points != 0 || aliceAfter.LifetimePoints != 100 {
		t.Errorf("alice after reset = %d/%d, want 0/100", aliceAfter.Points, aliceAfter.LifetimePoints)
	}
	bobAfter, _ := env.users.FindByID("bob")
	if bobAfter.Points != 0 || bobAfter.LifetimePoints != 80 {
		t.Errorf("bob after reset = %d/%d, want 0/80 (lifetime never shrinks)", bobAfter.Points, bobAfter.LifetimePoints)
	}

	challenges, err := env.challenges.All()
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	for _, c := range challenges {
		if !c.Archived {
			t.Errorf("challenge %q not archived by reset", c.Title)
		}
	}
}

func TestRoundResetSkipsBlacklistedPlayers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "alice", 100)
	banned := env.createUser(t, "mallory", "mallory", 250)
	if err := env.users.SetBlacklisted(banned.ID, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	quote, err := env.round.QuoteReset(context.Background())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.PlayersAffected != 1 {
		t.Errorf("players affected = %d, want 1 (banned excluded)", quote.PlayersAffected)
	}

	result, err := env.round.CommitReset(context.Background(), quote.Token)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.PlayersReset != 1 {
		t.Errorf("players reset = %d, want 1", result.PlayersReset)
	}

	after, _ := env.users.FindByID("mallory")
	if after.Points != 250 || after.LifetimePoints != 0 {
		t.Errorf("banned player touched by reset: %d/%d, want 250/0", after.Points, after.LifetimePoints)
	}
}

func TestRoundResetLeavesCooldownsAlone(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice", "alice", 100)

	until := time.Now().Add(20 * time.Second)
	if err := env.users.SetCooldown(env.db, "alice", until); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}

	quote, err := env.round.QuoteReset(context.Background())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := env.round.CommitReset(context.Background(), quote.Token); err != nil {
		t.Fatalf("commit: %v", err)
	}

	alice, _ := env.users.FindByID("alice")
	if alice.FlagSubmitCooldown == nil {
		t.Errorf("reset must not clear submission cooldowns")
	}
}

func TestRoundResetRejectsStaleToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.round.CommitReset(context.Background(), "stale-token")
	if !errors.Is(err, util.ErrConfirmExpired) {
		t.Fatalf("err = %v, want ErrConfirmExpired", err)
	}

	quote, err := env.round.QuoteReset(context.Background())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := env.round.CommitReset(context.Background(), quote.Token); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// the token is single-use
	_, err = env.round.CommitReset(context.Background(), quote.Token)
	if !errors.Is(err, util.ErrConfirmExpired) {
		t.Fatalf("replayed commit err = %v, want ErrConfirmExpired", err)
	}
}
