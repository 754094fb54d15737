package service

import (
	"context"
	"testing"
	"time"
)

func TestProfileShowsSolvesAndRank(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Solved One", 100, []string{"flag{x}"})

	if _, err := env.submission.Submit(context.Background(), "u1", "alice", challenge.ID, "flag{bad}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.users.SetCooldown(env.db, "u1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("clear cooldown: %v", err)
	}
	if _, err := env.submission.Submit(context.Background(), "u1", "alice", challenge.ID, "flag{x}"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	profile, err := env.user.Profile("u1", false)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Status != ProfileOK {
		t.Fatalf("status = %s, want ok", profile.Status)
	}
	if profile.Solved != 1 || profile.Attempted != 1 {
		t.Errorf("solved/attempted = %d/%d, want 1/1", profile.Solved, profile.Attempted)
	}
	if profile.Rank != 1 {
		t.Errorf("rank = %d, want 1", profile.Rank)
	}
	if len(profile.Solves) != 1 || profile.Solves[0].Title != "Solved One" {
		t.Errorf("solves = %+v", profile.Solves)
	}
	if profile.Solves[0].TotalAttempts != 2 {
		t.Errorf("solve attempts = %d, want 2", profile.Solves[0].TotalAttempts)
	}
}

func TestProfileAnonymousHiddenFromOthers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "ghost", "casper", 100)
	if err := env.user.SetAnonymousMode("ghost", true); err != nil {
		t.Fatalf("set anonymous: %v", err)
	}

	others, err := env.user.Profile("ghost", false)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if others.Status != ProfileAnonymous || others.Username != "" {
		t.Errorf("anonymous profile leaked to others: %+v", others)
	}

	self, err := env.user.Profile("ghost", true)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if self.Status != ProfileOK || self.Username != "casper" {
		t.Errorf("owner cannot see their own profile: %+v", self)
	}
}

func TestProfileLifetimeDisplayNeverBelowCurrent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "u1", "alice", 120)
	user.LifetimePoints = 80
	if err := env.users.Update(user); err != nil {
		t.Fatalf("update: %v", err)
	}

	profile, err := env.user.Profile("u1", true)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.LifetimePoints != 120 {
		t.Errorf("lifetime display = %d, want 120 (max of stored and current)", profile.LifetimePoints)
	}
}

func TestProfileNotRegistered(t *testing.T) {
	env := newTestEnv(t)

	profile, err := env.user.Profile("nobody", false)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Status != ProfileNotRegistered {
		t.Fatalf("status = %s, want not_registered", profile.Status)
	}
}

func TestSetBlacklistedUpdatesCache(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bad", "mallory", 100)

	if err := env.user.SetBlacklisted("bad", true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if !env.blCache.Has("bad") {
		t.Errorf("blacklist cache not updated on ban")
	}

	if err := env.user.SetBlacklisted("bad", false); err != nil {
		t.Fatalf("unblacklist: %v", err)
	}
	if env.blCache.Has("bad") {
		t.Errorf("blacklist cache not updated on unban")
	}
}

func TestFindOrCreateSyncsUsername(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "old-name", 0)

	user, err := env.user.FindOrCreate("u1", "new-name")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if user.Username != "new-name" {
		t.Errorf("username = %s, want synced new-name", user.Username)
	}

	stored, _ := env.users.FindByID("u1")
	if stored.Username != "new-name" {
		t.Errorf("stored username = %s, want new-name", stored.Username)
	}
}
