package billing

import (
	"context"

	"github.com/google/uuid"
)

// OperationMeta identifies who performed an operation and from where. The
// HTTP layer attaches it to the request context; services copy it onto audit
// entries.
type OperationMeta struct {
	Actor     string
	IPAddress string
	UserAgent string
}

type operationMetaKey struct{}

// WithOperationMeta returns a context carrying the caller's identity
func WithOperationMeta(ctx context.Context, meta OperationMeta) context.Context {
	return context.WithValue(ctx, operationMetaKey{}, meta)
}

// OperationMetaFrom extracts the caller's identity from the context. Calls
// that bypass the HTTP layer (webhooks, jobs) get the "system" actor.
func OperationMetaFrom(ctx context.Context) OperationMeta {
	if meta, ok := ctx.Value(operationMetaKey{}).(OperationMeta); ok {
		return meta
	}
	return OperationMeta{Actor: "system"}
}

// AuditEntry is one immutable record of a state-changing operation. Before
// and After hold JSON snapshots of the entity state around the change; they
// are empty where no prior or subsequent state exists.
type AuditEntry struct {
	TenantID   uuid.UUID
	Actor      string
	IPAddress  string
	UserAgent  string
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Detail     string
	Before     string
	After      string
}

// AuditSink records audit entries. Implementations must never fail the
// business operation: errors are logged and swallowed.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}
