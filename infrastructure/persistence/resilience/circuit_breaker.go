// Package resilience decorates the node repository with a circuit
// breaker so a failing store sheds load quickly instead of piling up
// timed-out requests.
package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/filesystem"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

// BreakerRepository wraps a NodeRepository behind a gobreaker circuit.
// Only infrastructure failures (BackendUnavailable) count against the
// circuit; domain outcomes like NotFound pass through untouched.
type BreakerRepository struct {
	inner  ports.NodeRepository
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerRepository wraps repo with a circuit breaker.
func NewBreakerRepository(inner ports.NodeRepository, logger *zap.Logger) ports.NodeRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "node-repository",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Domain errors mean the store answered; only transport
			// and availability failures count against the circuit.
			return err == nil || !pkgerrors.IsUnavailable(err)
		},
	})

	return &BreakerRepository{inner: inner, cb: cb, logger: logger}
}

var _ ports.NodeRepository = (*BreakerRepository)(nil)

// execute funnels a repository call through the breaker, mapping an
// open circuit to BackendUnavailable.
func (r *BreakerRepository) execute(operation string, fn func() error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError(operation, err)
	}
	return err
}

func (r *BreakerRepository) FindByID(ctx context.Context, itemID string) (*filesystem.Node, error) {
	var node *filesystem.Node
	err := r.execute("FindByID", func() error {
		var innerErr error
		node, innerErr = r.inner.FindByID(ctx, itemID)
		return innerErr
	})
	return node, err
}

func (r *BreakerRepository) FindByKey(ctx context.Context, userID, parentID, name string) (*filesystem.Node, error) {
	var node *filesystem.Node
	err := r.execute("FindByKey", func() error {
		var innerErr error
		node, innerErr = r.inner.FindByKey(ctx, userID, parentID, name)
		return innerErr
	})
	return node, err
}

func (r *BreakerRepository) ListChildren(ctx context.Context, userID, parentID string) ([]filesystem.Node, error) {
	var nodes []filesystem.Node
	err := r.execute("ListChildren", func() error {
		var innerErr error
		nodes, innerErr = r.inner.ListChildren(ctx, userID, parentID)
		return innerErr
	})
	return nodes, err
}

func (r *BreakerRepository) FindByPathPrefix(ctx context.Context, userID, prefix string) ([]filesystem.Node, error) {
	var nodes []filesystem.Node
	err := r.execute("FindByPathPrefix", func() error {
		var innerErr error
		nodes, innerErr = r.inner.FindByPathPrefix(ctx, userID, prefix)
		return innerErr
	})
	return nodes, err
}

func (r *BreakerRepository) Save(ctx context.Context, node *filesystem.Node) error {
	return r.execute("Save", func() error {
		return r.inner.Save(ctx, node)
	})
}

func (r *BreakerRepository) SaveIfAbsent(ctx context.Context, node *filesystem.Node) error {
	return r.execute("SaveIfAbsent", func() error {
		return r.inner.SaveIfAbsent(ctx, node)
	})
}

func (r *BreakerRepository) UpdatePath(ctx context.Context, node *filesystem.Node, newPath string) error {
	return r.execute("UpdatePath", func() error {
		return r.inner.UpdatePath(ctx, node, newPath)
	})
}

func (r *BreakerRepository) Delete(ctx context.Context, userID string, key filesystem.Key) error {
	return r.execute("Delete", func() error {
		return r.inner.Delete(ctx, userID, key)
	})
}

// DeleteBatch reports failures through counts rather than errors, so it
// bypasses the breaker's failure accounting.
func (r *BreakerRepository) DeleteBatch(ctx context.Context, userID string, keys []filesystem.Key) (deleted, failed int) {
	return r.inner.DeleteBatch(ctx, userID, keys)
}
