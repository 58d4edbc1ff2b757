package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	// SpanOperationDBQuery represents a database query operation
	SpanOperationDBQuery SpanOperation = "db.query"
	// SpanOperationDBInsert represents a database insert operation
	SpanOperationDBInsert SpanOperation = "db.insert"
	// SpanOperationDBUpdate represents a database update operation
	SpanOperationDBUpdate SpanOperation = "db.update"
	// SpanOperationDBDelete represents a database delete operation
	SpanOperationDBDelete SpanOperation = "db.delete"
	// SpanOperationDBTx represents a database transaction
	SpanOperationDBTx SpanOperation = "db.transaction"

	// SpanOperationLockAcquire represents acquiring a record lock
	SpanOperationLockAcquire SpanOperation = "lock.acquire"
	// SpanOperationLockRelease represents releasing a record lock
	SpanOperationLockRelease SpanOperation = "lock.release"
	// SpanOperationLockSweep represents the expired lock cleanup sweep
	SpanOperationLockSweep SpanOperation = "lock.sweep"
)

// StartDatabaseSpan creates a span for a database operation with
// database-specific attributes.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("database")

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the database table name for the span.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.table", table))
	}
}

// WithDBSystem sets the database system (e.g., "postgresql").
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBStatement sets the database query statement.
func WithDBStatement(statement string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

// WithDBName sets the database name.
func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// StartLockSpan creates a span for a record lock operation.
func StartLockSpan(ctx context.Context, operation SpanOperation, opts ...LockSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("locking")

	spanOpts := &lockSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("lock.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("LOCK %s", operation)
	if spanOpts.resource != "" {
		spanName = fmt.Sprintf("LOCK %s %s", operation, spanOpts.resource)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// LockSpanOption configures a lock span.
type LockSpanOption func(*lockSpanOptions)

type lockSpanOptions struct {
	resource   string
	attributes []attribute.KeyValue
}

// WithLockResource sets the namespaced resource id (e.g., "order:42").
func WithLockResource(resource string) LockSpanOption {
	return func(opts *lockSpanOptions) {
		opts.resource = resource
		opts.attributes = append(opts.attributes, attribute.String("lock.resource", resource))
	}
}

// WithLockType sets the lock type (EDIT, STATUS, ASSIGN).
func WithLockType(lockType string) LockSpanOption {
	return func(opts *lockSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("lock.type", lockType))
	}
}

// WithLockHolder sets the lock holder identity.
func WithLockHolder(holder string) LockSpanOption {
	return func(opts *lockSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("lock.holder", holder))
	}
}

// RecordError records an error on the span and sets its status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
