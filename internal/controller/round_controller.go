package controller

import (
	"errors"

	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RoundController struct {
	RoundService *service.RoundService
}

func NewRoundController(roundService *service.RoundService) *RoundController {
	return &RoundController{RoundService: roundService}
}

type CommitResetRequest struct {
	Token string `json:"token" binding:"required"`
}

// QuoteReset godoc
// @Summary Prepare a round reset
// @Description Returns how many players the reset touches and the token needed to commit it.
// @Tags admin
// @Produce json
// @Success 200 {object} util.Response{data=service.RoundResetQuote}
// @Router /api/admin/round/reset/quote [post]
func (c *RoundController) QuoteReset(ctx *gin.Context) {
	quote, err := c.RoundService.QuoteReset(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, quote)
}

// CommitReset godoc
// @Summary Commit a round reset
// @Description Archives every challenge and folds current scores into lifetime points.
// @Tags admin
// @Accept json
// @Produce json
// @Param body body CommitResetRequest true "confirmation token"
// @Success 200 {object} util.Response{data=service.RoundResetResult}
// @Failure 410 {object} util.Response "confirmation expired"
// @Router /api/admin/round/reset [post]
func (c *RoundController) CommitReset(ctx *gin.Context) {
	var req CommitResetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.RoundService.CommitReset(ctx.Request.Context(), req.Token)
	if errors.Is(err, util.ErrConfirmExpired) {
		util.Error(ctx, 410, err.Error())
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
