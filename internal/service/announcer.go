package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ctf_backend/internal/config"
	"ctf_backend/internal/model"
	"ctf_backend/internal/util"
	"ctf_backend/pkg/logger"

	"go.uber.org/zap"
)

// Announcer is the presentation collaborator that renders challenge
// announcements and the audit side channel. Failures here never roll back
// store state; callers report them separately.
type Announcer interface {
	PublishChallenge(ctx context.Context, challenge *model.Challenge, authorName string) (string, error)
	EditPublished(ctx context.Context, challenge *model.Challenge) error
	Notify(ctx context.Context, title, description string)
}

type webhookEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Fields      []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// WebhookAnnouncer posts announcements to chat-platform webhooks.
type WebhookAnnouncer struct {
	Cfg    *config.AnnounceConfig
	Client *http.Client
}

func NewWebhookAnnouncer(cfg *config.AnnounceConfig) *WebhookAnnouncer {
	return &WebhookAnnouncer{
		Cfg:    cfg,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *WebhookAnnouncer) challengeEmbed(challenge *model.Challenge, authorName string) webhookEmbed {
	embed := webhookEmbed{
		Title:       challenge.Title,
		Description: challenge.Description,
		Fields: []webhookField{
			{Name: "Category", Value: challenge.Category, Inline: true},
			{Name: "Points", Value: fmt.Sprintf("%d", challenge.Points), Inline: true},
		},
	}
	if len(challenge.Files) > 0 {
		embed.Fields = append(embed.Fields, webhookField{
			Name:  "Attachments",
			Value: "- " + strings.Join(challenge.Files, "\n- "),
		})
	}
	if !a.Cfg.Anonymous && authorName != "" {
		embed.Fields = append(embed.Fields, webhookField{
			Name:   "Author",
			Value:  authorName,
			Inline: true,
		})
	}
	return embed
}

func (a *WebhookAnnouncer) post(ctx context.Context, url string, payload webhookPayload) (*webhookMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(data))
	}

	var msg webhookMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// PublishChallenge sends the announcement and returns the resulting message
// URL (the caller records it on the challenge).
func (a *WebhookAnnouncer) PublishChallenge(ctx context.Context, challenge *model.Challenge, authorName string) (string, error) {
	if a.Cfg.WebhookURL == "" {
		return "", fmt.Errorf("announce webhook not configured")
	}

	// wait=true makes the platform return the created message
	msg, err := a.post(ctx, a.Cfg.WebhookURL+"?wait=true", webhookPayload{
		Embeds: []webhookEmbed{a.challengeEmbed(challenge, authorName)},
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.Cfg.MessageURLBase, "/"), msg.ChannelID, msg.ID), nil
}

// EditPublished updates the existing announcement in place.
func (a *WebhookAnnouncer) EditPublished(ctx context.Context, challenge *model.Challenge) error {
	if challenge.PublishedMessageURL == nil {
		return util.ErrMessageNotEditable
	}
	id := util.MessageIDFromURL(*challenge.PublishedMessageURL)
	if id == 0 {
		return util.ErrMessageNotEditable
	}

	payload := webhookPayload{Embeds: []webhookEmbed{a.challengeEmbed(challenge, "")}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/messages/%d", a.Cfg.WebhookURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden {
		return util.ErrMessageNotEditable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook edit returned %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

// Notify posts to the audit side channel. Best-effort: failures are logged
// and swallowed.
func (a *WebhookAnnouncer) Notify(ctx context.Context, title, description string) {
	if a.Cfg.AuditWebhookURL == "" {
		return
	}
	_, err := a.post(ctx, a.Cfg.AuditWebhookURL, webhookPayload{
		Embeds: []webhookEmbed{{Title: title, Description: description}},
	})
	if err != nil {
		logger.Log.Warn("audit notify failed", zap.Error(err))
	}
}
