package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/five82/climdo/internal/observability"
)

// refresher coordinates session refreshes. It is either idle or refreshing;
// the first request to see a 401 while idle performs the one refresh, and
// any request that sees a 401 meanwhile parks in a FIFO queue until the
// refresh settles.
type refresher struct {
	refresh func(ctx context.Context) error
	replay  func(ctx context.Context, req *request) ([]byte, error)
	logger  *slog.Logger
	metrics *observability.Metrics

	mu         sync.Mutex
	refreshing bool
	pending    []*pendingRequest
	onExpired  func(*Error)
}

type pendingRequest struct {
	ctx    context.Context
	req    *request
	result chan replayResult
}

type replayResult struct {
	body []byte
	err  error
}

func newRefresher(
	refresh func(ctx context.Context) error,
	replay func(ctx context.Context, req *request) ([]byte, error),
	logger *slog.Logger,
	metrics *observability.Metrics,
) *refresher {
	return &refresher{refresh: refresh, replay: replay, logger: logger, metrics: metrics}
}

func (r *refresher) setExpiredHandler(fn func(*Error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpired = fn
}

// recover handles a 401 for req, which has not been retried yet. It returns
// the outcome of the single retry, or a terminal Unauthorized error when the
// session could not be refreshed.
func (r *refresher) recover(ctx context.Context, req *request) ([]byte, error) {
	req.retried = true

	r.mu.Lock()
	if r.refreshing {
		waiter := &pendingRequest{ctx: ctx, req: req, result: make(chan replayResult, 1)}
		r.pending = append(r.pending, waiter)
		r.mu.Unlock()
		r.metrics.RequestsQueued.Inc()
		observability.FromContext(observability.WithRequestID(ctx, req.id), r.logger).
			Debug("request queued behind session refresh", "method", req.method, "path", req.path)

		select {
		case res := <-waiter.result:
			return res.body, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	// The flag is set before the refresh call is dispatched so concurrent
	// 401s queue instead of starting their own refresh.
	r.refreshing = true
	r.mu.Unlock()

	r.logger.Info("session expired, refreshing", "trigger", req.method+" "+req.path)
	err := r.refresh(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.refreshing = false
	queued := r.pending
	r.pending = nil
	onExpired := r.onExpired
	r.mu.Unlock()

	if err != nil {
		r.metrics.SessionRefreshes.WithLabelValues("failure").Inc()
		expired := &Error{
			Kind:        KindUnauthorized,
			Status:      http.StatusUnauthorized,
			Title:       "Session Expired",
			Description: descSessionExpired,
			Err:         err,
		}
		r.logger.Warn("session refresh failed", "queued", len(queued), "error", err)
		for _, waiter := range queued {
			waiter.result <- replayResult{err: expired}
		}
		if onExpired != nil {
			onExpired(expired)
		}
		return nil, expired
	}

	r.metrics.SessionRefreshes.WithLabelValues("success").Inc()
	r.logger.Info("session refreshed", "queued", len(queued))
	for _, waiter := range queued {
		body, err := r.replay(waiter.ctx, waiter.req)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		r.metrics.RequestsReplayed.WithLabelValues(outcome).Inc()
		waiter.result <- replayResult{body: body, err: err}
	}
	return r.replay(ctx, req)
}
