package controller

import (
	"errors"
	"strconv"

	"ctf_backend/internal/model"
	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChallengeController struct {
	ChallengeService *service.ChallengeService
	StorageService   *service.StorageService
}

func NewChallengeController(challengeService *service.ChallengeService, storageService *service.StorageService) *ChallengeController {
	return &ChallengeController{
		ChallengeService: challengeService,
		StorageService:   storageService,
	}
}

// ChallengeView is the player-facing shape: no flags, no author internals.
type ChallengeView struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Points      int      `json:"points"`
	Description string   `json:"description"`
	Files       []string `json:"files,omitempty"`
	HasHint     bool     `json:"hasHint"`
	HintCost    int      `json:"hintCost,omitempty"`
	Archived    bool     `json:"archived"`
}

func toChallengeView(c model.Challenge) ChallengeView {
	view := ChallengeView{
		ID:          c.ID,
		Title:       c.Title,
		Category:    c.Category,
		Points:      c.Points,
		Description: c.Description,
		Files:       c.Files,
		HasHint:     c.HasHint(),
		Archived:    c.Archived,
	}
	if c.HasHint() {
		view.HintCost = *c.HintCost
	}
	return view
}

type SaveChallengeRequest struct {
	ID    *uint              `json:"id"`
	Draft service.DraftInput `json:"draft" binding:"required"`
}

type PublishChallengeRequest struct {
	ID            *uint              `json:"id"`
	Draft         service.DraftInput `json:"draft" binding:"required"`
	OverrideToken string             `json:"overrideToken"`
}

func isOrganizer(ctx *gin.Context) bool {
	claims := util.GetUserFromContext(ctx)
	return claims != nil && (claims.Role == model.Organizer || claims.Role == model.Admin)
}

// List godoc
// @Summary List challenges
// @Description Players see published challenges only; organizers also see drafts.
// @Tags challenges
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/challenges [get]
func (c *ChallengeController) List(ctx *gin.Context) {
	if isOrganizer(ctx) {
		util.Success(ctx, c.ChallengeService.List(true))
		return
	}

	challenges := c.ChallengeService.List(false)
	views := make([]ChallengeView, 0, len(challenges))
	for _, ch := range challenges {
		views = append(views, toChallengeView(ch))
	}
	util.Success(ctx, views)
}

// Get godoc
// @Summary Fetch one challenge
// @Tags challenges
// @Produce json
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/challenges/{id} [get]
func (c *ChallengeController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	challenge, err := c.ChallengeService.Get(uint(id))
	if errors.Is(err, util.ErrChallengeNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	if isOrganizer(ctx) {
		util.Success(ctx, challenge)
		return
	}
	if !challenge.Published {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, toChallengeView(*challenge))
}

// Autocomplete godoc
// @Summary Match challenges by title or id
// @Tags challenges
// @Produce json
// @Param q query string false "query"
// @Success 200 {object} util.Response
// @Router /api/search/challenges [get]
func (c *ChallengeController) Autocomplete(ctx *gin.Context) {
	matches := c.ChallengeService.Autocomplete(ctx.Query("q"), isOrganizer(ctx))
	type suggestion struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}
	out := make([]suggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, suggestion{ID: m.ID, Title: m.Title})
	}
	util.Success(ctx, out)
}

// Save godoc
// @Summary Save a challenge draft
// @Description Creates or updates a challenge without announcing it. Saving a published challenge unpublishes it.
// @Tags challenges
// @Accept json
// @Produce json
// @Param body body SaveChallengeRequest true "draft"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/challenges [post]
func (c *ChallengeController) Save(ctx *gin.Context) {
	var req SaveChallengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	challenge, err := c.ChallengeService.SaveDraft(claims.UserID, req.ID, req.Draft)
	switch {
	case errors.Is(err, util.ErrChallengeInvalid):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrChallengeNotFound):
		util.NotFound(ctx)
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, challenge)
	}
}

// Publish godoc
// @Summary Publish a challenge
// @Description Saves and announces the challenge. Guard warnings come back with a confirmation token; resubmit with the token to override.
// @Tags challenges
// @Accept json
// @Produce json
// @Param body body PublishChallengeRequest true "challenge"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/publish [post]
func (c *ChallengeController) Publish(ctx *gin.Context) {
	var req PublishChallengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.ChallengeService.Publish(ctx.Request.Context(), claims.UserID, claims.Username, req.ID, req.Draft, req.OverrideToken)
	if errors.Is(err, util.ErrChallengeNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// EditMessage godoc
// @Summary Update a published announcement
// @Description Updates the stored challenge and edits its announcement in place.
// @Tags challenges
// @Accept json
// @Produce json
// @Param id path int true "challenge id"
// @Param body body service.DraftInput false "updated fields"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "message no longer editable"
// @Router /api/challenges/{id}/message [put]
func (c *ChallengeController) EditMessage(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	var draft *service.DraftInput
	if ctx.Request.ContentLength > 0 {
		var in service.DraftInput
		if err := ctx.ShouldBindJSON(&in); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
		draft = &in
	}

	challenge, err := c.ChallengeService.EditPublishedMessage(ctx.Request.Context(), uint(id), draft)
	switch {
	case errors.Is(err, util.ErrChallengeNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrMessageNotEditable):
		// the record was still updated
		util.Error(ctx, 409, util.ErrMessageNotEditable.Error())
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, challenge)
	}
}

func (c *ChallengeController) setArchived(ctx *gin.Context, archived bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	challenge, err := c.ChallengeService.SetArchived(uint(id), archived)
	switch {
	case errors.Is(err, util.ErrChallengeNotSaved):
		util.BadRequest(ctx, err.Error())
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, challenge)
	}
}

// Archive godoc
// @Summary Archive a challenge
// @Tags challenges
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Router /api/challenges/{id}/archive [post]
func (c *ChallengeController) Archive(ctx *gin.Context) {
	c.setArchived(ctx, true)
}

// Unarchive godoc
// @Summary Unarchive a challenge
// @Tags challenges
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Router /api/challenges/{id}/unarchive [post]
func (c *ChallengeController) Unarchive(ctx *gin.Context) {
	c.setArchived(ctx, false)
}

// Delete godoc
// @Summary Delete a challenge and its attempts
// @Tags challenges
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Router /api/challenges/{id} [delete]
func (c *ChallengeController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	err = c.ChallengeService.Delete(uint(id))
	switch {
	case errors.Is(err, util.ErrChallengeNotFound):
		util.NotFound(ctx)
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, nil)
	}
}

// UploadAttachment godoc
// @Summary Upload a challenge attachment
// @Tags challenges
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "attachment"
// @Success 200 {object} util.Response
// @Router /api/attachments [post]
func (c *ChallengeController) UploadAttachment(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	url, err := c.StorageService.UploadAttachment(
		ctx.Request.Context(),
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
