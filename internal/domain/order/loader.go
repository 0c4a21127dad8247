package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrEmptyOrderID is returned when Load is called without an identifier.
var ErrEmptyOrderID = errors.New("order id required")

const defaultLoadMessage = "Unable to load order, please try again."

// Source fetches an order by its internal identifier.
type Source interface {
	GetOrder(ctx context.Context, id string) (*Snapshot, error)
}

// DetailError is implemented by source errors that carry a server-supplied,
// shopper-facing detail message.
type DetailError interface {
	error
	Detail() string
}

// LoadError is a failed order fetch. Message is safe to show to the shopper.
type LoadError struct {
	OrderID string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load order %s: %s", e.OrderID, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader fetches order snapshots and maps failures to LoadError.
type Loader struct {
	source Source
}

// NewLoader creates a Loader backed by source.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// Load fetches the order. On failure no snapshot is returned and the error is
// a *LoadError unless id is empty.
func (l *Loader) Load(ctx context.Context, id string) (*Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyOrderID
	}

	lg := zctx.From(ctx).With(zap.String("order", id))
	start := time.Now()

	snap, err := l.source.GetOrder(ctx, id)
	if err != nil {
		msg := defaultLoadMessage
		var de DetailError
		if errors.As(err, &de) && de.Detail() != "" {
			msg = de.Detail()
		}
		lg.Warn("Order load failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return nil, &LoadError{OrderID: id, Message: msg, Err: err}
	}

	lg.Debug("Order loaded",
		zap.String("order_id", snap.OrderID),
		zap.String("settlement", string(snap.Settlement().Kind())),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}
