package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefreshMode names the path that triggered a refresh.
type RefreshMode string

const (
	RefreshDebounced RefreshMode = "debounced"
	RefreshImmediate RefreshMode = "immediate"
)

// RefreshFunc performs one refresh of the feed. mode tells an immediate
// refresh apart from a debounced one.
type RefreshFunc func(ctx context.Context, mode RefreshMode, showRefreshing bool)

const refreshKey = "refresh"

// Coordinator serializes feed refreshes for one consumer. Local edits use the
// debounced path because they arrive in bursts; status transitions use the
// immediate path. Both are no-ops while a refresh is running.
type Coordinator struct {
	scheduler    *Scheduler
	refresh      RefreshFunc
	defaultDelay time.Duration
	logger       *zap.Logger
	metrics      Metrics

	mu         sync.Mutex
	refreshing bool
	epoch      uint64
}

// NewCoordinator builds a coordinator around refresh.
func NewCoordinator(refresh RefreshFunc, defaultDelay time.Duration, logger *zap.Logger, metrics Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Coordinator{
		scheduler:    NewScheduler(),
		refresh:      refresh,
		defaultDelay: defaultDelay,
		logger:       logger,
		metrics:      metrics,
	}
}

// DebouncedRefresh schedules a refresh after delay, replacing any refresh
// already scheduled. A non-positive delay uses the default.
func (c *Coordinator) DebouncedRefresh(delay time.Duration, showRefreshing bool) {
	if c.Refreshing() {
		c.logger.Debug("debounced refresh skipped: refresh running")
		return
	}
	if delay <= 0 {
		delay = c.defaultDelay
	}
	c.scheduler.ScheduleAfter(refreshKey, delay, func() {
		c.run(RefreshDebounced, showRefreshing)
	})
}

// ImmediateRefresh refreshes now on the caller's goroutine.
func (c *Coordinator) ImmediateRefresh() {
	c.run(RefreshImmediate, false)
}

// Pending reports whether a debounced refresh is scheduled.
func (c *Coordinator) Pending() bool {
	return c.scheduler.Pending(refreshKey)
}

// Refreshing reports whether a refresh is executing.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Cleanup cancels any scheduled refresh and clears the running flag. A
// refresh that is already executing is not interrupted.
func (c *Coordinator) Cleanup() {
	c.scheduler.Cancel(refreshKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	c.epoch++
}

func (c *Coordinator) run(mode RefreshMode, showRefreshing bool) {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		c.logger.Debug("refresh skipped: refresh running", zap.String("mode", string(mode)))
		return
	}
	c.refreshing = true
	epoch := c.epoch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.epoch == epoch {
			c.refreshing = false
		}
		c.mu.Unlock()
	}()

	c.metrics.RecordRefresh(mode)
	c.refresh(context.Background(), mode, showRefreshing)
}
