package controller

import (
	"strconv"

	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type HintController struct {
	HintService *service.HintService
}

func NewHintController(hintService *service.HintService) *HintController {
	return &HintController{HintService: hintService}
}

type CommitHintRequest struct {
	Token string `json:"token" binding:"required"`
}

// Quote godoc
// @Summary Ask for a hint
// @Description Returns the hint directly when it is free, or a cost quote with a confirmation token when it must be paid for.
// @Tags hints
// @Produce json
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response{data=service.HintResult}
// @Router /api/challenges/{id}/hint [get]
func (c *HintController) Quote(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.HintService.Quote(ctx.Request.Context(), claims.UserID, claims.Username, uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Commit godoc
// @Summary Confirm a paid hint
// @Description Consumes the confirmation token and charges the hint cost.
// @Tags hints
// @Accept json
// @Produce json
// @Param id path int true "challenge id"
// @Param body body CommitHintRequest true "confirmation token"
// @Success 200 {object} util.Response{data=service.HintResult}
// @Router /api/challenges/{id}/hint [post]
func (c *HintController) Commit(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	var req CommitHintRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.HintService.Commit(ctx.Request.Context(), claims.UserID, claims.Username, uint(id), req.Token)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
