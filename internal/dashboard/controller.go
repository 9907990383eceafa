package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/stream"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// ErrNotMounted is returned by operations that need a mounted dashboard
var ErrNotMounted = errors.New("dashboard not mounted")

// Feed is the change stream the dashboard subscribes to; satisfied by *stream.Feed
type Feed interface {
	Subscribe(sub stream.Subscriber) (*stream.Subscription, error)
	Submit(fn func()) error
}

// Charts is the chart registry driven by the engine; satisfied by *chart.Registry
type Charts interface {
	EnsureAll() error
	Reset()
}

// Engine recomputes aggregates; satisfied by *aggregator.Engine
type Engine interface {
	stream.Subscriber
	Refresh()
	Rollover(now time.Time)
}

// Broadcaster fans frames out to connected dashboards
type Broadcaster interface {
	Broadcast(message []byte)
}

// Controller owns the dashboard lifecycle: it creates the charts, subscribes
// the engine to the change stream and tracks department chart visibility.
type Controller struct {
	feed   Feed
	charts Charts
	engine Engine

	mu  sync.Mutex
	sub *stream.Subscription

	// separate from mu: visibility changes run on the feed goroutine
	bmu         sync.RWMutex
	broadcaster Broadcaster

	visible   atomic.Bool
	announced atomic.Bool

	now    func() time.Time
	logger zerolog.Logger
}

// NewController creates a dashboard controller
func NewController(feed Feed, charts Charts, engine Engine, logger zerolog.Logger) *Controller {
	return &Controller{
		feed:   feed,
		charts: charts,
		engine: engine,
		now:    time.Now,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

// SetBroadcaster sets the receiver of visibility frames (set after
// construction to avoid circular init)
func (c *Controller) SetBroadcaster(b Broadcaster) {
	c.bmu.Lock()
	c.broadcaster = b
	c.bmu.Unlock()
}

// Mount creates every chart, hides the department chart and subscribes the
// engine. Records already in the stores are replayed to the engine. Mounting
// twice is a no-op.
func (c *Controller) Mount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		return nil
	}

	err := c.feed.Submit(func() {
		if err := c.charts.EnsureAll(); err != nil {
			c.logger.Warn().Err(err).Msg("some charts could not be created")
		}
		c.SetDepartmentChartVisible(false)
	})
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	sub, err := c.feed.Subscribe(c.engine)
	if err != nil {
		return fmt.Errorf("mount: subscribe: %w", err)
	}
	c.sub = sub

	c.logger.Info().Msg("dashboard mounted")
	return nil
}

// Unmount releases the subscription. Chart handles are kept.
func (c *Controller) Unmount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub == nil {
		return nil
	}
	if err := c.sub.Close(); err != nil {
		return fmt.Errorf("unmount: %w", err)
	}
	c.sub = nil

	c.logger.Info().Msg("dashboard unmounted")
	return nil
}

// Mounted reports whether the engine is subscribed
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Rollover recomputes the hour bucket containing now on the feed goroutine
func (c *Controller) Rollover(now time.Time) error {
	if !c.Mounted() {
		return ErrNotMounted
	}
	return c.feed.Submit(func() { c.engine.Rollover(now) })
}

// ResetCharts recreates every chart and recomputes all aggregates, used when
// the day changes and by the admin API
func (c *Controller) ResetCharts() error {
	if !c.Mounted() {
		return ErrNotMounted
	}
	return c.feed.Submit(func() {
		c.charts.Reset()
		if err := c.charts.EnsureAll(); err != nil {
			c.logger.Warn().Err(err).Msg("some charts could not be recreated")
		}
		c.engine.Refresh()
		c.logger.Info().Msg("charts reset")
	})
}

// SetDepartmentChartVisible records the department chart visibility and
// announces it to the dashboards when it changes
func (c *Controller) SetDepartmentChartVisible(visible bool) {
	previous := c.visible.Swap(visible)
	if previous == visible && c.announced.Load() {
		return
	}
	c.announced.Store(true)
	metrics.Get().SetDepartmentChartVisible(visible)

	c.logger.Debug().Bool("visible", visible).Msg("department chart visibility changed")

	c.bmu.RLock()
	b := c.broadcaster
	c.bmu.RUnlock()
	if b == nil {
		return
	}

	data, err := json.Marshal(c.VisibilityFrame())
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal visibility frame")
		return
	}
	b.Broadcast(data)
}

// DepartmentChartVisible reports whether the department chart is shown
func (c *Controller) DepartmentChartVisible() bool {
	return c.visible.Load()
}

// VisibilityFrame returns the current department chart visibility as a frame
func (c *Controller) VisibilityFrame() types.VisibilityFrame {
	return types.VisibilityFrame{
		Type:      "visibility",
		Chart:     types.ChartChatsPerDepartment,
		Visible:   c.visible.Load(),
		Timestamp: c.now(),
	}
}
