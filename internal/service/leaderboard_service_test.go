package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ctf_backend/internal/model"
)

func TestRankEntriesOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []LeaderboardEntry{
		{User: model.User{ID: "low", Points: 50}, LatestSolve: base.Add(3 * time.Hour)},
		{User: model.User{ID: "tied-old", Points: 100}, LatestSolve: base},
		{User: model.User{ID: "tied-new", Points: 100}, LatestSolve: base.Add(time.Hour)},
		{User: model.User{ID: "top", Points: 200}, LatestSolve: base},
	}

	ranked := RankEntries(entries)

	want := []string{"top", "tied-new", "tied-old", "low"}
	for i, id := range want {
		if ranked[i].User.ID != id {
			t.Fatalf("rank %d = %s, want %s", i+1, ranked[i].User.ID, id)
		}
	}
}

func TestRankEntriesStableForFullTies(t *testing.T) {
	solve := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []LeaderboardEntry{
		{User: model.User{ID: "a", Points: 100}, LatestSolve: solve},
		{User: model.User{ID: "b", Points: 100}, LatestSolve: solve},
		{User: model.User{ID: "c", Points: 100}, LatestSolve: solve},
	}

	ranked := RankEntries(entries)
	for i, id := range []string{"a", "b", "c"} {
		if ranked[i].User.ID != id {
			t.Fatalf("full tie reordered: rank %d = %s, want %s", i+1, ranked[i].User.ID, id)
		}
	}
}

func TestLeaderboardPageExcludesAndPaginates(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 12; i++ {
		env.createUser(t, fmt.Sprintf("p%02d", i), fmt.Sprintf("player%02d", i), i*10)
	}
	env.createUser(t, "zero", "zero", 0)
	banned := env.createUser(t, "banned", "banned", 500)
	if err := env.users.SetBlacklisted(banned.ID, true); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	page1, err := env.leaderboard.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page1.TotalPlayers != 12 {
		t.Errorf("total players = %d, want 12 (zero-point and banned excluded)", page1.TotalPlayers)
	}
	if len(page1.Rows) != 10 {
		t.Fatalf("page 1 rows = %d, want 10", len(page1.Rows))
	}
	if page1.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", page1.TotalPages)
	}
	if page1.Rows[0].UserID != "p12" || page1.Rows[0].Rank != 1 {
		t.Errorf("top row = %+v, want p12 at rank 1", page1.Rows[0])
	}

	page2, err := env.leaderboard.Page(context.Background(), 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Rows) != 2 {
		t.Fatalf("page 2 rows = %d, want 2", len(page2.Rows))
	}
	if page2.Rows[0].Rank != 11 {
		t.Errorf("page 2 first rank = %d, want 11", page2.Rows[0].Rank)
	}

	for _, row := range append(page1.Rows, page2.Rows...) {
		if row.UserID == "banned" || row.UserID == "zero" {
			t.Errorf("excluded player %s appeared on the board", row.UserID)
		}
	}
}

func TestLeaderboardAnonymousRow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "ghost", "casper", 100)
	if err := env.users.SetAnonymousMode(user.ID, true); err != nil {
		t.Fatalf("set anonymous: %v", err)
	}

	page, err := env.leaderboard.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(page.Rows))
	}

	row := page.Rows[0]
	if !row.Anonymous || row.Username != "Anonymous" || row.UserID != "" {
		t.Errorf("anonymous row leaked identity: %+v", row)
	}
	if row.Points != 100 {
		t.Errorf("anonymous row hides points: %+v", row)
	}
}

func TestRankOf(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "a", "alice", 300)
	env.createUser(t, "b", "bob", 200)
	env.createUser(t, "c", "carol", 0)

	rank, total, err := env.leaderboard.RankOf("b")
	if err != nil {
		t.Fatalf("rank of b: %v", err)
	}
	if rank != 2 || total != 2 {
		t.Errorf("rank of b = %d/%d, want 2/2", rank, total)
	}

	rank, _, err = env.leaderboard.RankOf("c")
	if err != nil {
		t.Fatalf("rank of c: %v", err)
	}
	if rank != 0 {
		t.Errorf("zero-point player rank = %d, want 0 (off the board)", rank)
	}
}

func TestLeaderboardTiebreakerUsesLatestSolve(t *testing.T) {
	env := newTestEnv(t)
	early := env.createChallenge(t, "Early", 100, []string{"flag{a}"})
	late := env.createChallenge(t, "Late", 100, []string{"flag{b}"})

	if _, err := env.submission.Submit(context.Background(), "first", "first", early.ID, "flag{a}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := env.submission.Submit(context.Background(), "second", "second", late.ID, "flag{b}"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// equal points; the more recent solver ranks higher
	page, err := env.leaderboard.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.Rows[0].UserID != "second" {
		t.Errorf("top = %s, want the most recent solver", page.Rows[0].UserID)
	}
}
