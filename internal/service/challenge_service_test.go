package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ctf_backend/internal/util"
)

func draft(title string) DraftInput {
	return DraftInput{
		Title:       title,
		Category:    "crypto",
		Points:      100,
		Flags:       []string{"flag{x}"},
		Description: "a challenge",
	}
}

func TestSaveDraftCreatesUnpublished(t *testing.T) {
	env := newTestEnv(t)

	challenge, err := env.challenge.SaveDraft("org-1", nil, draft("New One"))
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if challenge.Published {
		t.Errorf("draft must not be published")
	}
	if _, ok := env.chCache.Get(challenge.ID); !ok {
		t.Errorf("saved draft missing from cache")
	}
}

func TestSaveDraftUnpublishesExisting(t *testing.T) {
	env := newTestEnv(t)
	published := env.createChallenge(t, "Live", 100, []string{"flag{x}"})

	updated, err := env.challenge.SaveDraft("org-1", &published.ID, draft("Live"))
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if updated.Published {
		t.Errorf("saving a published challenge must pull it back to draft")
	}
}

func TestPublishHappyPath(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("Fresh"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishDone {
		t.Fatalf("status = %s (warnings %v), want published", result.Status, result.Warnings)
	}
	if result.MessageURL == "" {
		t.Errorf("published result carries no message URL")
	}

	stored, err := env.challenges.FindByID(result.Challenge.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !stored.Published || stored.PublishedMessageURL == nil {
		t.Errorf("stored challenge = published %v, url %v", stored.Published, stored.PublishedMessageURL)
	}
}

func TestPublishInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	in := draft("Broken")
	in.Flags = nil
	in.Points = -5

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, in, "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishInvalid {
		t.Fatalf("status = %s, want invalid", result.Status)
	}
	if len(result.Warnings) < 2 {
		t.Errorf("warnings = %v, want flag and points problems", result.Warnings)
	}
}

func TestPublishZeroPointChallenge(t *testing.T) {
	env := newTestEnv(t)

	in := draft("Sanity Check")
	in.Points = 0

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, in, "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishDone {
		t.Fatalf("status = %s (warnings %v), want published for a zero-point challenge", result.Status, result.Warnings)
	}
}

func TestPublishDuplicateTitleGuardIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.createChallenge(t, "Baby RSA", 100, []string{"flag{n}"})

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("baby rsa"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishConfirmationRequired {
		t.Fatalf("status = %s, want confirmation_required", result.Status)
	}
	if result.Token == "" {
		t.Fatalf("guard response carries no override token")
	}
	if len(env.announcer.published) != 0 {
		t.Errorf("guarded publish must not announce")
	}

	// resubmitting with the token overrides the guard
	confirmed, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("baby rsa"), result.Token)
	if err != nil {
		t.Fatalf("confirmed publish: %v", err)
	}
	if confirmed.Status != PublishDone {
		t.Fatalf("confirmed status = %s, want published", confirmed.Status)
	}
}

func TestPublishOverrideTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.createChallenge(t, "Dup", 100, []string{"flag{n}"})

	first, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("dup"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("dup"), first.Token); err != nil {
		t.Fatalf("confirmed publish: %v", err)
	}

	replay, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("dup"), first.Token)
	if err != nil {
		t.Fatalf("replay publish: %v", err)
	}
	if replay.Status != PublishTimedOut {
		t.Fatalf("replay status = %s, want timed_out", replay.Status)
	}
}

func TestPublishRecentAnnouncementGuard(t *testing.T) {
	env := newTestEnv(t)
	recent := env.createChallenge(t, "Yesterday", 100, []string{"flag{n}"})

	// a message id whose embedded timestamp is one hour old
	id := uint64(time.Now().Add(-time.Hour).UnixMilli()-1420070400000) << 22
	url := fmt.Sprintf("https://chat.example/channels/0/1/%d", id)
	if err := env.challenges.SetPublishedMessageURL(recent.ID, url); err != nil {
		t.Fatalf("set url: %v", err)
	}
	if err := env.chCache.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("Unrelated"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishConfirmationRequired {
		t.Fatalf("status = %s, want confirmation_required for a publish within 24h", result.Status)
	}
}

func TestPublishRepublishIgnoresOwnAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	existing := env.createChallenge(t, "Self", 100, []string{"flag{n}"})

	// the challenge's own announcement is recent
	id := uint64(time.Now().Add(-time.Hour).UnixMilli()-1420070400000) << 22
	url := fmt.Sprintf("https://chat.example/channels/0/1/%d", id)
	if err := env.challenges.SetPublishedMessageURL(existing.ID, url); err != nil {
		t.Fatalf("set url: %v", err)
	}
	if err := env.chCache.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", &existing.ID, draft("Self"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishConfirmationRequired {
		t.Fatalf("status = %s, want confirmation_required (republish warning)", result.Status)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v, want only the republish warning, not the challenge's own announcement", result.Warnings)
	}
}

func TestPublishRepublishWarning(t *testing.T) {
	env := newTestEnv(t)
	existing := env.createChallenge(t, "Again", 100, []string{"flag{n}"})

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", &existing.ID, draft("Again"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishConfirmationRequired {
		t.Fatalf("status = %s, want confirmation_required for a republish", result.Status)
	}
}

func TestPublishAnnounceFailureStillCommits(t *testing.T) {
	env := newTestEnv(t)
	env.announcer.publishErr = errors.New("webhook down")

	result, err := env.challenge.Publish(context.Background(), "org-1", "orga", nil, draft("Orphan"), "")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Status != PublishDone {
		t.Fatalf("status = %s, want published despite announce failure", result.Status)
	}
	if result.AnnounceError == "" {
		t.Errorf("announce failure not reported")
	}

	stored, err := env.challenges.FindByID(result.Challenge.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !stored.Published {
		t.Errorf("record must stay published when only the announcement failed")
	}
	if stored.PublishedMessageURL != nil {
		t.Errorf("failed announcement must not record a message URL")
	}
}

func TestEditMessageUpdatesRecordEvenWhenNotEditable(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Stale", 100, []string{"flag{x}"})
	env.announcer.editErr = util.ErrMessageNotEditable

	in := draft("Stale")
	in.Description = "rewritten"
	_, err := env.challenge.EditPublishedMessage(context.Background(), challenge.ID, &in)
	if !errors.Is(err, util.ErrMessageNotEditable) {
		t.Fatalf("err = %v, want ErrMessageNotEditable", err)
	}

	stored, ferr := env.challenges.FindByID(challenge.ID)
	if ferr != nil {
		t.Fatalf("find: %v", ferr)
	}
	if stored.Description != "rewritten" {
		t.Errorf("record not updated despite uneditable message")
	}
}

func TestSetArchivedUnsavedChallenge(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.challenge.SetArchived(9999, true)
	if !errors.Is(err, util.ErrChallengeNotSaved) {
		t.Fatalf("err = %v, want ErrChallengeNotSaved", err)
	}
}

func TestDeleteRemovesChallengeAndAttempts(t *testing.T) {
	env := newTestEnv(t)
	challenge := env.createChallenge(t, "Gone", 100, []string{"flag{x}"})

	if _, err := env.submission.Submit(context.Background(), "u1", "alice", challenge.ID, "flag{x}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.challenge.Delete(challenge.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.challenges.FindByID(challenge.ID); err == nil {
		t.Errorf("challenge still present after delete")
	}
	if _, err := env.attempts.Find(challenge.ID, "u1"); err == nil {
		t.Errorf("attempts must be removed with the challenge")
	}
	if _, ok := env.chCache.Get(challenge.ID); ok {
		t.Errorf("deleted challenge still cached")
	}
}

func TestAutocompleteHidesDraftsFromPlayers(t *testing.T) {
	env := newTestEnv(t)
	env.createChallenge(t, "Visible Web", 100, []string{"flag{a}"})
	hidden := env.createChallenge(t, "Hidden Web", 100, []string{"flag{b}"})
	if err := env.db.Model(hidden).Update("published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if err := env.chCache.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	players := env.challenge.Autocomplete("web", false)
	if len(players) != 1 || players[0].Title != "Visible Web" {
		t.Errorf("player matches = %v, want only the published one", players)
	}

	organizers := env.challenge.Autocomplete("web", true)
	if len(organizers) != 2 {
		t.Errorf("organizer matches = %d, want 2", len(organizers))
	}
}
