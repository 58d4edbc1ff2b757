package orders

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

// lockNamespace prefixes order ids in the shared lock table so they never
// collide with other resource kinds.
const lockNamespace = "order"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Controller serves the order endpoints. Mutating handlers acquire the
// appropriate lock before touching the row and release it when the request
// finishes; a lock held by someone else surfaces as HTTP 409 immediately,
// never as a retry.
type Controller struct {
	repo   Repository
	locks  *locking.Manager
	tx     repository.TransactionManager
	logger logger.Logger
}

// NewController creates an order controller.
func NewController(repo Repository, locks *locking.Manager, tx repository.TransactionManager, log logger.Logger) *Controller {
	return &Controller{
		repo:   repo,
		locks:  locks,
		tx:     tx,
		logger: log,
	}
}

// RegisterRoutes mounts the order endpoints on r, which is expected to be
// the /orders route group. The lock endpoints are mounted through the shared
// lock controller with the order namespace.
func (c *Controller) RegisterRoutes(r router.Router) {
	// Static routes go first: the gorilla adapter matches in registration
	// order, so /locks and /bulk/* must not be swallowed by /:id.
	lockCtrl := locking.NewController(c.locks, lockNamespace, c.exists, c.logger)
	lockCtrl.RegisterRoutes(r)
	r.POST("/bulk/status", c.BulkChangeStatus)
	r.POST("/bulk/assign", c.BulkAssignDriver)

	r.POST("", c.Create)
	r.GET("", c.List)
	r.GET("/:id", c.Get)
	r.PUT("/:id", c.Update)
	r.DELETE("/:id", c.Delete)
	r.PATCH("/:id/status", c.ChangeStatus)
	r.PATCH("/:id/assign", c.AssignDriver)
}

type createOrderRequest struct {
	OrderNo            string `json:"order_no"`
	CustomerName       string `json:"customer_name"`
	OriginAddress      string `json:"origin_address"`
	DestinationAddress string `json:"destination_address"`
	DriverID           string `json:"driver_id"`
	Remark             string `json:"remark"`
}

type updateOrderRequest struct {
	CustomerName       string `json:"customer_name"`
	OriginAddress      string `json:"origin_address"`
	DestinationAddress string `json:"destination_address"`
	Remark             string `json:"remark"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

type bulkStatusRequest struct {
	OrderIDs []int64 `json:"order_ids"`
	Status   string  `json:"status"`
}

type bulkAssignRequest struct {
	OrderIDs []int64 `json:"order_ids"`
	DriverID string  `json:"driver_id"`
}

// Create handles POST /orders. New orders start in PENDING.
func (c *Controller) Create(ctx router.Context) error {
	var req createOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	if strings.TrimSpace(req.OrderNo) == "" {
		return controller.Error(ctx, controller.NewValidationError("order_no is required"))
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return controller.Error(ctx, controller.NewValidationError("customer_name is required"))
	}

	now := time.Now().UTC()
	order := &Order{
		OrderNo:            req.OrderNo,
		CustomerName:       req.CustomerName,
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		Status:             StatusPending,
		DriverID:           req.DriverID,
		Remark:             req.Remark,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := c.repo.Create(ctx.Request().Context(), order); err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to create order", err))
	}

	c.logger.Info("order created", "order_id", order.ID, "order_no", order.OrderNo)
	return controller.Created(ctx, order)
}

// List handles GET /orders with optional status and driver_id filters,
// pagination, and sorting.
func (c *Controller) List(ctx router.Context) error {
	opts, err := listOptions(ctx)
	if err != nil {
		return controller.Error(ctx, err)
	}

	items, err := c.repo.FindAll(ctx.Request().Context(), opts)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to list orders", err))
	}
	total, err := c.repo.Count(ctx.Request().Context(), opts.Filter)
	if err != nil {
		return controller.Error(ctx, controller.NewInternalError("failed to count orders", err))
	}

	return controller.Success(ctx, map[string]interface{}{
		"items":     items,
		"total":     total,
		"page":      opts.Pagination.Page,
		"page_size": opts.Pagination.PageSize,
	})
}

// Get handles GET /orders/:id
func (c *Controller) Get(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}

	order, err := c.repo.FindByID(ctx.Request().Context(), id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, order)
}

// Update handles PUT /orders/:id under the EDIT lock. The lock is acquired
// for the duration of the request; a browser session already holding the
// EDIT lock re-enters it idempotently.
func (c *Controller) Update(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req updateOrderRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.locks.Acquire(reqCtx, lockID(id), locking.LockTypeEdit, holder); err != nil {
		return controller.Error(ctx, locking.ToAppError(err))
	}
	defer c.release(reqCtx, id, locking.LockTypeEdit, holder)

	order, err := c.repo.FindByID(reqCtx, id)
	if err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}

	order.CustomerName = req.CustomerName
	order.OriginAddress = req.OriginAddress
	order.DestinationAddress = req.DestinationAddress
	order.Remark = req.Remark
	order.UpdatedAt = time.Now().UTC()

	if err := c.repo.Update(reqCtx, order); err != nil {
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	return controller.Success(ctx, order)
}

// Delete handles DELETE /orders/:id. The row and every lock row for the
// order go together; a deleted order must leave nothing to conflict on.
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
		c.release(reqCtx, id, locking.LockTypeEdit, holder)
		return controller.Error(ctx, notFoundOrInternal(id, err))
	}
	if err := c.locks.ReleaseForResource(reqCtx, lockID(id)); err != nil {
		c.logger.Warn("failed to release locks for deleted order", "order_id", id, "error", err)
	}

	c.logger.Info("order deleted", "order_id", id, "deleted_by", holder)
	return controller.Success(ctx, nil)
}

// ChangeStatus handles PATCH /orders/:id/status under the STATUS lock.
func (c *Controller) ChangeStatus(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req changeStatusRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.locks.Acquire(reqCtx, lockID(id), locking.LockTypeStatus, holder); err != nil {
		return controller.Error(ctx, locking.ToAppError(err))
	}
	defer c.release(reqCtx, id, locking.LockTypeStatus, holder)

	order, err := c.applyStatus(reqCtx, id, status)
	if err != nil {
		return controller.Error(ctx, err)
	}
	c.logger.Info("order status changed",
		"order_id", id, "status", status, "changed_by", holder)
	return controller.Success(ctx, order)
}

// AssignDriver handles PATCH /orders/:id/assign under the ASSIGN lock. An
// empty driver_id unassigns the order.
func (c *Controller) AssignDriver(ctx router.Context) error {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return controller.Error(ctx, err)
	}
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req assignDriverRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.locks.Acquire(reqCtx, lockID(id), locking.LockTypeAssign, holder); err != nil {
		return controller.Error(ctx, locking.ToAppError(err))
	}
	defer c.release(reqCtx, id, locking.LockTypeAssign, holder)

	order, err := c.applyDriver(reqCtx, id, req.DriverID)
	if err != nil {
		return controller.Error(ctx, err)
	}
	c.logger.Info("order driver assigned",
		"order_id", id, "driver_id", req.DriverID, "assigned_by", holder)
	return controller.Success(ctx, order)
}

// BulkChangeStatus handles POST /orders/bulk/status: the STATUS lock is
// taken on every order or none, then all rows update inside one transaction.
// A single conflicting order fails the whole batch with 409.
func (c *Controller) BulkChangeStatus(ctx router.Context) error {
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req bulkStatusRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return controller.Error(ctx, controller.NewValidationError(err.Error()))
	}

	updated, err := c.bulkMutate(ctx, req.OrderIDs, holder, locking.LockTypeStatus,
		func(mCtx context.Context, id int64) (*Order, error) {
			return c.applyStatus(mCtx, id, status)
		})
	if err != nil {
		return controller.Error(ctx, err)
	}

	c.logger.Info("bulk status change applied",
		"count", len(updated), "status", status, "changed_by", holder)
	return controller.Success(ctx, map[string]interface{}{"items": updated})
}

// BulkAssignDriver handles POST /orders/bulk/assign: ASSIGN locks on every
// order or none, then all assignments inside one transaction.
func (c *Controller) BulkAssignDriver(ctx router.Context) error {
	holder, appErr := c.holder(ctx)
	if appErr != nil {
		return controller.Error(ctx, appErr)
	}

	var req bulkAssignRequest
	if err := ctx.Bind(&req); err != nil {
		return controller.Error(ctx, controller.NewValidationError("invalid request body"))
	}

	updated, err := c.bulkMutate(ctx, req.OrderIDs, holder, locking.LockTypeAssign,
		func(mCtx context.Context, id int64) (*Order, error) {
			return c.applyDriver(mCtx, id, req.DriverID)
		})
	if err != nil {
		return controller.Error(ctx, err)
	}

	c.logger.Info("bulk driver assignment applied",
		"count", len(updated), "driver_id", req.DriverID, "assigned_by", holder)
	return controller.Success(ctx, map[string]interface{}{"items": updated})
}

// bulkMutate takes the batch locks on every id (all-or-nothing), then runs
// mutate over each id inside one transaction. The locks are dropped when the
// request finishes regardless of outcome.
func (c *Controller) bulkMutate(ctx router.Context, ids []int64, holder string, lockType locking.LockType, mutate func(context.Context, int64) (*Order, error)) ([]Order, error) {
	if len(ids) == 0 {
		return nil, controller.NewValidationError("order_ids must not be empty")
	}

	reqCtx := ctx.Request().Context()
	lockIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		lockIDs = append(lockIDs, lockID(id))
	}

	if _, err := c.locks.AcquireMany(reqCtx, lockIDs, lockType, holder); err != nil {
		return nil, locking.ToAppError(err)
	}
	defer c.locks.ReleaseMany(reqCtx, lockIDs, lockType, holder)

	updated := make([]Order, 0, len(ids))
	err := c.tx.WithTransaction(reqCtx, func(txCtx context.Context) error {
		for _, id := range ids {
			order, mErr := mutate(txCtx, id)
			if mErr != nil {
				return mErr
			}
			updated = append(updated, *order)
		}
		return nil
	})
	if err != nil {
		var appErr *controller.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, controller.NewInternalError("bulk order update failed", err)
	}
	return updated, nil
}

func (c *Controller) applyStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	order, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(id, err)
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	if err := c.repo.Update(ctx, order); err != nil {
		return nil, notFoundOrInternal(id, err)
	}
	return order, nil
}

func (c *Controller) applyDriver(ctx context.Context, id int64, driverID string) (*Order, error) {
	order, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(id, err)
	}
	order.DriverID = driverID
	order.UpdatedAt = time.Now().UTC()
	if err := c.repo.Update(ctx, order); err != nil {
		return nil, notFoundOrInternal(id, err)
	}
	return order, nil
}

// release drops a per-request lock. Failures are logged, never surfaced:
// the mutation already happened and the row expires on its own anyway.
func (c *Controller) release(ctx context.Context, id int64, lockType locking.LockType, holder string) {
	if err := c.locks.Release(ctx, lockID(id), lockType, holder); err != nil {
		c.logger.Warn("failed to release order lock",
			"order_id", id, "lock_type", lockType, "holder", holder, "error", err)
	}
}

func (c *Controller) holder(ctx router.Context) (string, *controller.AppError) {
	holder := middleware.GetUserID(ctx.Request().Context())
	if holder == "" {
		return "", controller.NewUnauthorizedError("authentication required")
	}
	return holder, nil
}

// exists backs the lock controller's existence check; the raw id comes from
// the URL and may not be numeric.
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
		return 0, controller.NewValidationError(fmt.Sprintf("invalid order id %q", raw))
	}
	return id, nil
}

func notFoundOrInternal(id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return controller.NewNotFoundError(fmt.Sprintf("order %d not found", id))
	}
	return controller.NewInternalError("order storage operation failed", err)
}

// listOptions parses the list query parameters into repository options.
func listOptions(ctx router.Context) (repository.QueryOptions, error) {
	opts := repository.QueryOptions{
		Filter: repository.Filter{},
		Pagination: repository.Pagination{
			Page:     1,
			PageSize: defaultPageSize,
		},
	}

	if raw := ctx.Query("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return opts, controller.NewValidationError(err.Error())
		}
		opts.Filter["status"] = string(status)
	}
	if raw := ctx.Query("driver_id"); raw != "" {
		opts.Filter["driver_id"] = raw
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
