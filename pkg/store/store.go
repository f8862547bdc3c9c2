// Package store defines the invocation journal: an append-only audit log of
// dispatched tool calls. Results are never stored.
package store

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/tool"
)

// InvocationRecord is the persisted representation of one invocation.
type InvocationRecord struct {
	ID         string
	Tool       string
	Arguments  json.RawMessage
	Status     int
	ErrorCode  string
	DurationMS int64
	CreatedAt  time.Time
}

// Journal persists and lists invocation records. Implementations must
// return records newest first.
type Journal interface {
	Append(ctx context.Context, rec InvocationRecord) (InvocationRecord, error)
	List(ctx context.Context, tool string, limit int) ([]InvocationRecord, error)
}

// RecordFromInvocation converts a dispatcher observation into a record.
// Bodies that are not valid JSON are kept as a JSON string.
func RecordFromInvocation(inv tool.Invocation) InvocationRecord {
	rec := InvocationRecord{
		ID:         uuid.NewString(),
		Tool:       inv.Tool,
		Arguments:  inv.Arguments,
		Status:     http.StatusOK,
		DurationMS: inv.Duration.Milliseconds(),
		CreatedAt:  inv.At.UTC(),
	}
	if len(rec.Arguments) == 0 {
		rec.Arguments = json.RawMessage("null")
	} else if !json.Valid(rec.Arguments) {
		b, _ := json.Marshal(string(rec.Arguments))
		rec.Arguments = b
	}
	if inv.Err != nil {
		rec.Status = errmodel.HTTPStatus(inv.Err)
		rec.ErrorCode = inv.Err.Code
	}
	return rec
}

// Observer journals every invocation. Journal failures are logged and never
// reach the caller.
type Observer struct {
	j       Journal
	log     *logger.Logger
	timeout time.Duration
}

// NewObserver returns a tool.Observer writing to j.
func NewObserver(j Journal, l *logger.Logger) *Observer {
	return &Observer{j: j, log: logger.OrNop(l).Named("journal"), timeout: 2 * time.Second}
}

func (o *Observer) ObserveInvocation(ctx context.Context, inv tool.Invocation) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	if _, err := o.j.Append(ctx, RecordFromInvocation(inv)); err != nil {
		o.log.Warnw("journal append failed", "tool", inv.Tool, "error", err)
	}
}
