package controller

import (
	"errors"
	"strconv"

	"ctf_backend/internal/service"
	"ctf_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{UserService: userService}
}

type AnonymousModeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type SetPointsRequest struct {
	Points *int `json:"points" binding:"required"`
}

type AddPointsRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type SetUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type BlacklistRequest struct {
	Blacklisted *bool `json:"blacklisted" binding:"required"`
}

// Me godoc
// @Summary The caller's own profile
// @Tags users
// @Produce json
// @Success 200 {object} util.Response{data=service.Profile}
// @Router /api/users/me [get]
func (c *UserController) Me(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	// syncs the stored username as a side effect
	if _, err := c.UserService.FindOrCreate(claims.UserID, claims.Username); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	profile, err := c.UserService.Profile(claims.UserID, true)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// Profile godoc
// @Summary Another player's profile
// @Description Anonymous players hide their profile from everyone but themselves.
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} util.Response{data=service.Profile}
// @Router /api/users/profile/{id} [get]
func (c *UserController) Profile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	targetID := ctx.Param("id")

	profile, err := c.UserService.Profile(targetID, claims.UserID == targetID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// SetAnonymousMode godoc
// @Summary Toggle anonymous mode
// @Tags users
// @Accept json
// @Success 200 {object} util.Response
// @Router /api/users/me/anonymous [put]
func (c *UserController) SetAnonymousMode(ctx *gin.Context) {
	var req AnonymousModeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	if _, err := c.UserService.FindOrCreate(claims.UserID, claims.Username); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if err := c.UserService.SetAnonymousMode(claims.UserID, *req.Enabled); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"anonymousMode": *req.Enabled})
}

func (c *UserController) handleUserError(ctx *gin.Context, err error) {
	if errors.Is(err, util.ErrUserNotFound) {
		util.NotFound(ctx)
		return
	}
	util.LogInternalError(ctx, err)
}

// SetPoints godoc
// @Summary Overwrite a player's score
// @Tags admin
// @Accept json
// @Param id path string true "user id"
// @Param body body SetPointsRequest true "new score"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/points [put]
func (c *UserController) SetPoints(ctx *gin.Context) {
	var req SetPointsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.SetPoints(ctx.Param("id"), *req.Points); err != nil {
		c.handleUserError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddPoints godoc
// @Summary Adjust a player's score by a delta
// @Tags admin
// @Accept json
// @Param id path string true "user id"
// @Param body body AddPointsRequest true "delta"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/points [post]
func (c *UserController) AddPoints(ctx *gin.Context) {
	var req AddPointsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.AddPoints(ctx.Param("id"), req.Delta); err != nil {
		c.handleUserError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SetUsername godoc
// @Summary Rename a player
// @Tags admin
// @Accept json
// @Param id path string true "user id"
// @Param body body SetUsernameRequest true "username"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/username [put]
func (c *UserController) SetUsername(ctx *gin.Context) {
	var req SetUsernameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.SetUsername(ctx.Param("id"), req.Username); err != nil {
		c.handleUserError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// SetBlacklisted godoc
// @Summary Ban or unban a player
// @Tags admin
// @Accept json
// @Param id path string true "user id"
// @Param body body BlacklistRequest true "flag"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id}/blacklist [put]
func (c *UserController) SetBlacklisted(ctx *gin.Context) {
	var req BlacklistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.UserService.SetBlacklisted(ctx.Param("id"), *req.Blacklisted); err != nil {
		c.handleUserError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"blacklisted": *req.Blacklisted})
}

// ListBlacklisted godoc
// @Summary List banned players
// @Tags admin
// @Produce json
// @Param page query int false "page (1-based)"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/users/blacklist [get]
func (c *UserController) ListBlacklisted(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	users, total, err := c.UserService.ListBlacklisted(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  users,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// Delete godoc
// @Summary Delete a player and their attempts
// @Tags admin
// @Param id path string true "user id"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{id} [delete]
func (c *UserController) Delete(ctx *gin.Context) {
	if err := c.UserService.Delete(ctx.Param("id")); err != nil {
		c.handleUserError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
