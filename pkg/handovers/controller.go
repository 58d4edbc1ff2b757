package handovers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/locking"
	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/repository"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

const lockNamespace = "handover"

const (
	defaultPageSize = 20
	maxPageSize     = 100

	shiftDateLayout = "2006-01-02"
)

// Controller serves the handover note endpoints. Note updates run under the
// EDIT lock; creating and reading notes is lock-free.
type Controller struct {
	repo   Repository
	locks  *locking.Manager
	logger logger.Logger
}

// NewController creates a handover note controller.
func NewController(repo Repository, locks *locking.Manager, log logger.Logger) *Controller {
	return &Controller{
		repo:   repo,
		locks:  locks,
		logger: log,
	}
}

// RegisterRoutes mounts the handover endpoints on r, expected to be the
// /handovers route group. Static lock routes register before /:id so the
// gorilla adapter routes them correctly.
func (c *Controller) RegisterRoutes(r router.Router) {
	lockCtrl := locking.NewController(c.locks, lockNamespace, c.exists, c.logger)
	lockCtrl.RegisterRoutes(r)

	r.POST("", c.Create)
	r.GET("", c.List)
	r.GET("/:id", c.Get)
	r.PUT("/:id", c.Update)
	r.DELETE("/:id", c.Delete)
}

type createNoteRequest struct {
	OrderID   int64  `json:"order_id"`
	Content   string `json:"content"`
	ShiftDate string `json:"shift_date"`
}

type updateNoteRequest struct {
	Content   string `json:"content"`
	ShiftDate string `json:"shift_date"`
}

// Create handles POST /handovers. The author is the authenticated user.
func (c *Controller) Create(ctx router.Context) error {
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req createNoteRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	if req.OrderID <= 0 {
		return controller.Error(ctx, controller.NewValidationError("order_id is required"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return controller.Error(ctx, controller.NewValidationError("content is required"))
	}
	shiftDate, err := parseShiftDate(req.ShiftDate)
	if err != nil {
		return controller.Error(ctx, err)
	}

	now := time.Now().UTC()
	note := &Note{
		OrderID:   req.OrderID,
		AuthorID:  holder,
		Content:   req.Content,
		ShiftDate: shiftDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.repo.Create(ctx.Request().Context(), note); err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to create handover note", err))
	}

	c.logger.Info("handover note created",
		"note_id", note.ID, "order_id", note.OrderID, "author_id", holder)
	return controller.Created(ctx, note)
}

// List handles GET /handovers with optional order_id and author_id filters.
func (c *Controller) List(ctx router.Context) error {
	opts, err := listOptions(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	items, err := c.repo.FindAll(ctx.Request().Context(), opts)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to list handover notes", err))
	}
	total, err := c.repo.Count(ctx.Request().Context(), opts.Filter)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to count handover notes", err))
	}

	return controller.Success(ctx, map[string]interface{}{
		"items":     items,
		"total":     total,
		"page":      opts.Pagination.Page,
		"page_size": opts.Pagination.PageSize,
	})
}

// Get handles GET /handovers/:id
func (c *Controller) Get(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}

	note, err := c.repo.FindByID(ctx.Request().Context(), id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, note)
}

// Update handles PUT /handovers/:id under the EDIT lock.
func (c *Controller) Update(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req updateNoteRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return controller.Error(ctx, controller.NewValidationError("content is required"))
	}
	shiftDate, err := parseShiftDate(req.ShiftDate)
	if err != nil {
		return controller.Error(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.locks.Acquire(reqCtx, lockID(id), locking.LockTypeEdit, holder); err != nil {
		return controller.Error(ctx, locking.ToAppError(err))
	}
	defer c.release(reqCtx, id, holder)

	note, err := c.repo.FindByID(reqCtx, id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}

	note.Content = req.Content
	note.ShiftDate = shiftDate
	note.UpdatedAt = time.Now().UTC()

	if err := c.repo.Update(reqCtx, note); err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, note)
}

// Delete handles DELETE /handovers/:id; the note's lock rows go with it.
func (c *Controller) Delete(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.locks.Acquire(reqCtx, lockID(id), locking.LockTypeEdit, holder); err != nil {
		return controller.Error(ctx, locking.ToAppError(err))
	}

	if err := c.repo.Delete(reqCtx, id); err != nil {
		c.release(reqCtx, id, holder)
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	if err := c.locks.ReleaseForResource(reqCtx, lockID(id)); err != nil {
		c.logger.Warn("failed to release locks for deleted handover note",
			"note_id", id, "error", err)
	}

	c.logger.Info("handover note deleted", "note_id", id, "deleted_by", holder)
	return controller.Success(ctx, nil)
}

func (c *Controller) release(ctx context.Context, id int64, holder string) {
	if err := c.locks.Release(ctx, lockID(id), locking.LockTypeEdit, holder); err != nil {
		c.logger.Warn("failed to release handover note lock",
			"note_id", id, "holder", holder, "error", err)
	}
}

func (c *Controller) holder(ctx router.Context) (string, *controller.AppError) {
	holder := middleware.GetUserID(ctx.Request().Context())
	if holder == "" {
		return "", controller.NewUnauthorizedError("authentication required")
	}
	return holder, nil
}

func (c *Controller) exists(ctx context.Context, raw string) (bool, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return c.repo.Exists(ctx, id)
}

func lockID(id int64) string {
	return fmt.Sprintf("%s:%d", lockNamespace, id)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, controller.NewValidationError(fmt.Sprintf("invalid handover note id %q", raw))
	}
	return id, nil
}

func parseShiftDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, controller.NewValidationError("shift_date is required")
	}
	shiftDate, err := time.Parse(shiftDateLayout, raw)
	if err != nil {
		return time.Time{}, controller.NewValidationError(
			fmt.Sprintf("shift_date must be formatted %s", shiftDateLayout))
	}
	return shiftDate, nil
}

func notFoundOrInternal(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return controller.NewNotFoundError(fmt.Sprintf("handover note %d not found", id))
	}
	return controller.NewInternalError("handover note storage operation failed", err)
}

func listOptions(ctx router.Context) (repository.QueryOptions, error) {
	opts := repository.QueryOptions{
		Filter: repository.Filter{},
		Pagination: repository.Pagination{
			Page:     1,
			PageSize: defaultPageSize,
		},
	}

	if raw := ctx.Query("order_id"); raw != "" {
		orderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || orderID <= 0 {
			return opts, controller.NewValidationError("order_id must be a positive integer")
		}
		opts.Filter["order_id"] = orderID
	}
	if raw := ctx.Query("author_id"); raw != "" {
		opts.Filter["author_id"] = raw
	}

	if raw := ctx.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return opts, controller.NewValidationError("page must be a positive integer")
		}
		opts.Pagination.Page = page
	}
	if raw := ctx.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 || size > maxPageSize {
			return opts, controller.NewValidationError(
				fmt.Sprintf("page_size must be between 1 and %d", maxPageSize))
		}
		opts.Pagination.PageSize = size
	}

	if field := ctx.Query("sort"); field != "" {
		opts.Sort.Field = field
		if strings.EqualFold(ctx.Query("order"), "desc") {
			opts.Sort.Order = repository.SortDesc
		} else {
			opts.Sort.Order = repository.SortAsc
		}
	}

	return opts, nil
}
