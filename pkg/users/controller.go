package users

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/repository"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Controller serves the user management endpoints. All routes sit behind
// the ADMIN role requirement applied at mount time in the server.
type Controller struct {
	repo   Repository
	logger logger.Logger
}

// NewController creates a user controller.
func NewController(repo Repository, log logger.Logger) *Controller {
	return &Controller{
		repo:   repo,
		logger: log,
	}
}

// RegisterRoutes mounts the user endpoints on r, expected to be the /users
// route group.
func (c *Controller) RegisterRoutes(r router.Router) {
	r.POST("", c.Create)
	r.GET("", c.List)
	r.GET("/:id", c.Get)
	r.PUT("/:id", c.Update)
	r.DELETE("/:id", c.Delete)
}

type createUserRequest struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	PasswordHash string `json:"password_hash"`
}

type updateUserRequest struct {
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	PasswordHash string `json:"password_hash"`
}

// Create handles POST /users. Usernames are unique.
func (c *Controller) Create(ctx router.Context) error {
	var req createUserRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	if strings.TrimSpace(req.Username) == "" {
		return controller.Error(ctx, controller.NewValidationError("username is required"))
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.repo.FindByUsername(reqCtx, req.Username); err == nil {
		return controller.Error(ctx, controller.NewValidationError(
			fmt.Sprintf("username %q is already taken", req.Username)))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return controller.Error(ctx, controller.NewInternalError("failed to check username", err))
	}

	now := time.Now().UTC()
	user := &User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		Role:         role,
		PasswordHash: req.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.repo.Create(reqCtx, user); err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to create user", err))
	}

	c.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return controller.Created(ctx, user)
}

// List handles GET /users with an optional role filter.
func (c *Controller) List(ctx router.Context) error {
	opts := repository.QueryOptions{
		Filter: repository.Filter{},
		Pagination: repository.Pagination{
			Page:     1,
			PageSize: defaultPageSize,
		},
	}

	if raw := ctx.Query("role"); raw != "" {
		role, err := ParseRole(raw)
		if err != nil {
			return controller.Error(ctx, controller.NewValidationError(err.Error()))
		}
		opts.Filter["role"] = string(role)
	}
	if raw := ctx.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return controller.Error(ctx, controller.NewValidationError("page must be a positive integer"))
		}
		opts.Pagination.Page = page
	}
	if raw := ctx.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 || size > maxPageSize {
			return controller.Error(ctx, controller.NewValidationError(
				fmt.Sprintf("page_size must be between 1 and %d", maxPageSize)))
		}
		opts.Pagination.PageSize = size
	}

	items, err := c.repo.FindAll(ctx.Request().Context(), opts)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to list users", err))
	}
	total, err := c.repo.Count(ctx.Request().Context(), opts.Filter)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to count users", err))
	}

	return controller.Success(ctx, map[string]interface{}{
		"items":     items,
		"total":     total,
		"page":      opts.Pagination.Page,
		"page_size": opts.Pagination.PageSize,
	})
}

// Get handles GET /users/:id
func (c *Controller) Get(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}

	user, err := c.repo.FindByID(ctx.Request().Context(), id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, user)
}

// Update handles PUT /users/:id. The username is immutable; display name,
// role, and password hash may change.
func (c *Controller) Update(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}

	var req updateUserRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	role, err := ParseRole(req.Role)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	reqCtx := ctx.Request().Context()
	user, err := c.repo.FindByID(reqCtx, id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}

	user.DisplayName = req.DisplayName
	user.Role = role
	if req.PasswordHash != "" {
		user.PasswordHash = req.PasswordHash
	}
	user.UpdatedAt = time.Now().UTC()

	if err := c.repo.Update(reqCtx, user); err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, user)
}

// Delete handles DELETE /users/:id
func (c *Controller) Delete(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}

	if err := c.repo.Delete(ctx.Request().Context(), id); err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}

	c.logger.Info("user deleted", "user_id", id)
	return controller.Success(ctx, nil)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, controller.NewValidationError(fmt.Sprintf("invalid user id %q", raw))
	}
	return id, nil
}

func notFoundOrInternal(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return controller.NewNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	return controller.NewInternalError("user storage operation failed", err)
}
