package controller

import (
	"strconv"

	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SubmissionController struct {
	SubmissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{SubmissionService: submissionService}
}

type SubmitFlagRequest struct {
	Flag string `json:"flag" binding:"required"`
}

// Submit godoc
// @Summary Submit a flag
// @Description Evaluates one flag submission. Incorrect guesses start a submission cooldown.
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path int true "challenge id"
// @Param body body SubmitFlagRequest true "flag"
// @Success 200 {object} util.Response{data=service.SubmissionResult}
// @Failure 400 {object} util.Response
// @Router /api/challenges/{id}/submissions [post]
func (c *SubmissionController) Submit(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	var req SubmitFlagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	result, err := c.SubmissionService.Submit(ctx.Request.Context(), claims.UserID, claims.Username, uint(id), req.Flag)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Solvers godoc
// @Summary List solvers of a challenge
// @Tags submissions
// @Produce json
// @Param id path int true "challenge id"
// @Success 200 {object} util.Response
// @Router /api/challenges/{id}/solvers [get]
func (c *SubmissionController) Solvers(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid challenge id")
		return
	}

	solvers, err := c.SubmissionService.Solvers(uint(id))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, solvers)
}
