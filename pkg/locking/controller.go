package locking

import (
	"context"
	"errors"
	"fmt"

	"github.com/cargodesk/cargodesk/pkg/controller"
	"github.com/cargodesk/cargodesk/pkg/middleware"
	"github.com/cargodesk/cargodesk/pkg/observability/logger"
	"github.com/cargodesk/cargodesk/pkg/server/router"
)

// ExistsFunc reports whether the resource with the given raw id exists.
// Controllers validate existence before the lock layer is reached.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Controller serves the lock endpoints for one resource kind. Each resource
// package mounts one on its route group; ids are namespaced before they
// reach the shared lock table so order 42 and handover 42 never collide.
type Controller struct {
	manager   *Manager
	namespace string
	exists    ExistsFunc
	logger    logger.Logger
}

// NewController creates a lock controller for the given resource namespace
func NewController(manager *Manager, namespace string, exists ExistsFunc, log logger.Logger) *Controller {
	return &Controller{
		manager:   manager,
		namespace: namespace,
		exists:    exists,
		logger:    log,
	}
}

// RegisterRoutes mounts the lock endpoints on a resource route group
func (c *Controller) RegisterRoutes(r router.Router) {
	r.POST("/:id/lock", c.Acquire)
	r.DELETE("/:id/lock", c.Release)
	r.GET("/:id/lock", c.Inspect)
	r.POST("/locks", c.AcquireBatch)
	r.DELETE("/locks", c.ReleaseBatch)
}

type lockRequest struct {
	LockType string `json:"lock_type"`
}

type batchLockRequest struct {
	ResourceIDs []string `json:"resource_ids"`
	LockType    string   `json:"lock_type"`
}

// Acquire handles POST /:id/lock
func (c *Controller) Acquire(ctx router.Context) error {
	id := ctx.Param("id")
	holder, err := c.holder(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	var req lockRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	lockType, err := ParseLockType(req.LockType)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	if err := c.checkExists(ctx.Request().Context(), id); err != nil {
		return controller.Error(ctx, err)
	}

	lock, err := c.manager.Acquire(ctx.Request().Context(), c.resourceID(id), lockType, holder)
	if err != nil {
		return controller.Error(ctx, ToAppError(err))
	}

	return controller.Success(ctx, map[string]interface{}{
		"locked_by":   lock.LockedBy,
		"acquired_at": lock.AcquiredAt,
		"expires_at":  lock.ExpiresAt,
	})
}

// Release handles DELETE /:id/lock. The lock type comes from the body or
// the "type" query parameter. With ?force=true an ADMIN bypasses the holder
// check.
func (c *Controller) Release(ctx router.Context) error {
	id := ctx.Param("id")
	holder, err := c.holder(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	lockType, err := c.lockTypeFromRequest(ctx)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	if ctx.Query("force") == "true" {
		if middleware.GetUserRole(ctx.Request().Context()) != "ADMIN" {
			return controller.Error(ctx, controller.NewForbiddenError("force release requires the ADMIN role"))
		}
		if err := c.manager.ForceRelease(ctx.Request().Context(), c.resourceID(id), lockType); err != nil {
			return controller.Error(ctx, ToAppError(err))
		}
		return controller.Success(ctx, nil)
	}

	if err := c.manager.Release(ctx.Request().Context(), c.resourceID(id), lockType, holder); err != nil {
		return controller.Error(ctx, ToAppError(err))
	}
	return controller.Success(ctx, nil)
}

// Inspect handles GET /:id/lock?type=
func (c *Controller) Inspect(ctx router.Context) error {
	id := ctx.Param("id")

	lockType, err := ParseLockType(ctx.Query("type"))
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	state, err := c.manager.Inspect(ctx.Request().Context(), c.resourceID(id), lockType)
	if err != nil {
		return controller.Error(ctx, ToAppError(err))
	}
	return controller.Success(ctx, state)
}

// AcquireBatch handles POST /locks: all-or-nothing acquire over several ids
func (c *Controller) AcquireBatch(ctx router.Context) error {
	holder, err := c.holder(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	var req batchLockRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	lockType, err := ParseLockType(req.LockType)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}
	if len(req.ResourceIDs) == 0 {
		return controller.Error(ctx, controller.NewValidationError("resource_ids must not be empty"))
	}

	namespaced := make([]string, 0, len(req.ResourceIDs))
	for _, id := range req.ResourceIDs {
		if err := c.checkExists(ctx.Request().Context(), id); err != nil {
			return controller.Error(ctx, err)
		}
		namespaced = append(namespaced, c.resourceID(id))
	}

	locks, err := c.manager.AcquireMany(ctx.Request().Context(), namespaced, lockType, holder)
	if err != nil {
		return controller.Error(ctx, ToAppError(err))
	}
	return controller.Success(ctx, map[string]interface{}{"locks": locks})
}

// ReleaseBatch handles DELETE /locks: best-effort release over several ids
func (c *Controller) ReleaseBatch(ctx router.Context) error {
	holder, err := c.holder(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	var req batchLockRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	lockType, err := ParseLockType(req.LockType)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}
	if len(req.ResourceIDs) == 0 {
		return controller.Error(ctx, controller.NewValidationError("resource_ids must not be empty"))
	}

	namespaced := make([]string, 0, len(req.ResourceIDs))
	for _, id := range req.ResourceIDs {
		namespaced = append(namespaced, c.resourceID(id))
	}
	c.manager.ReleaseMany(ctx.Request().Context(), namespaced, lockType, holder)

	return controller.Success(ctx, nil)
}

func (c *Controller) resourceID(id string) string {
	return c.namespace + ":" + id
}

func (c *Controller) holder(ctx router.Context) (string, error) {
	holder := middleware.GetUserID(ctx.Request().Context())
	if holder == "" {
		return "", controller.NewUnauthorizedError("authentication required")
	}
	return holder, nil
}

func (c *Controller) checkExists(ctx context.Context, id string) error {
	if c.exists == nil {
		return nil
	}
	found, err := c.exists(ctx, id)
	if err != nil {
		return controller.NewInternalError("failed to look up resource", err)
	}
	if !found {
		return controller.NewNotFoundError(fmt.Sprintf("%s %s not found", c.namespace, id))
	}
	return nil
}

// ToAppError translates lock layer errors into the controller taxonomy.
// Resource controllers use it for their own lock-guarded mutations.
func ToAppError(err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		holder := conflict.LockedBy
		return controller.NewLockConflictError(
			fmt.Sprintf("resource is locked by %s", holder),
			map[string]interface{}{
				"locked_by":  holder,
				"expires_at": conflict.ExpiresAt,
			},
		)
	}
	if errors.Is(err, ErrInvalidLockType) ||
		errors.Is(err, ErrHolderRequired) ||
		errors.Is(err, ErrResourceRequired) ||
		errors.Is(err, ErrNoResources) {
		return controller.NewValidationError(err.Error())
	}
	return controller.NewInternalError("lock operation failed", err)
}

// lockTypeFromRequest reads the lock type from the JSON body when present,
// falling back to the "type" query parameter
func (c *Controller) lockTypeFromRequest(ctx router.Context) (LockType, error) {
	var req lockRequest
	if err := ctx.Bind(&req); err == nil && req.LockType != "" {
		return ParseLockType(req.LockType)
	}
	return ParseLockType(ctx.Query("type"))
}
