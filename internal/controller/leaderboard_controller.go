package controller

import (
	"strconv"

	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	LeaderboardService *service.LeaderboardService
}

func NewLeaderboardController(leaderboardService *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{LeaderboardService: leaderboardService}
}

// Page godoc
// @Summary Leaderboard page
// @Description Scoring players ranked by points; ties go to the most recent solver. Blacklisted and zero-point players are excluded.
// @Tags leaderboard
// @Produce json
// @Param page query int false "page (1-based)"
// @Success 200 {object} util.Response{data=service.LeaderboardPage}
// @Router /api/leaderboard [get]
func (c *LeaderboardController) Page(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))

	result, err := c.LeaderboardService.Page(ctx.Request.Context(), page)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Rank godoc
// @Summary The caller's rank
// @Tags leaderboard
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/leaderboard/rank [get]
func (c *LeaderboardController) Rank(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	rank, total, err := c.LeaderboardService.RankOf(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"rank": rank, "totalPlayers": total})
}
