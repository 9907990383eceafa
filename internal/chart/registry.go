package chart

import (
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/bucket"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
)

// Handle is an opaque rendering context returned by a Renderer
type Handle any

// Renderer draws charts. Handles returned by the Init methods are passed back
// unchanged; the registry never inspects them.
type Renderer interface {
	InitDoughnut(target, title string, prior Handle, labels []string) (Handle, error)
	InitLine(target string, prior Handle, series, xLabels []string, data [][]float64) (Handle, error)
	UpdateSeries(h Handle, label string, values []float64) error
}

var (
	// ErrUnknownChart is returned for chart IDs without an initializer
	ErrUnknownChart = errors.New("unknown chart")

	// ErrRendererPanic wraps a panic raised by the renderer
	ErrRendererPanic = errors.New("renderer panicked")
)

// Category labels of the doughnut charts and series names of the line charts
const (
	LabelOpen    = "Open"
	LabelQueue   = "Queue"
	LabelClosed  = "Closed"
	LabelOnline  = "Online"
	LabelAway    = "Away"
	LabelBusy    = "Busy"
	LabelOffline = "Offline"
)

var (
	responseSeries = []string{"Avg_reaction_time", "Longest_reaction_time", "Avg_response_time", "Longest_response_time"}
	durationSeries = []string{"Avg_chat_duration", "Longest_chat_duration"}
)

type initializer func(r Renderer, target string, prior Handle, now time.Time) (Handle, error)

var initializers = map[types.ChartID]initializer{
	types.ChartChatsByState: func(r Renderer, target string, prior Handle, _ time.Time) (Handle, error) {
		return r.InitDoughnut(target, "Chats", prior, []string{LabelOpen, LabelQueue, LabelClosed})
	},
	types.ChartAgentsByStatus: func(r Renderer, target string, prior Handle, _ time.Time) (Handle, error) {
		return r.InitDoughnut(target, "Agents", prior, []string{LabelOnline, LabelAway, LabelBusy, LabelOffline})
	},
	types.ChartChatsPerAgent:      openClosedLine,
	types.ChartChatsPerDepartment: openClosedLine,
	types.ChartResponseTimes: func(r Renderer, target string, prior Handle, now time.Time) (Handle, error) {
		return hourlyLine(r, target, prior, now, responseSeries)
	},
	types.ChartChatDuration: func(r Renderer, target string, prior Handle, now time.Time) (Handle, error) {
		return hourlyLine(r, target, prior, now, durationSeries)
	},
}

func openClosedLine(r Renderer, target string, prior Handle, _ time.Time) (Handle, error) {
	return r.InitLine(target, prior, []string{LabelOpen, LabelClosed}, []string{}, [][]float64{{}, {}})
}

// hourlyLine seeds every hour bucket of the day with zeros so the x-axis is
// complete before any data arrives
func hourlyLine(r Renderer, target string, prior Handle, now time.Time, series []string) (Handle, error) {
	labels := bucket.SinceStartOfDay(now)
	data := make([][]float64, len(series))
	for i := range data {
		data[i] = make([]float64, len(labels))
	}
	return r.InitLine(target, prior, append([]string(nil), series...), labels, data)
}

// Registry owns the lazily created rendering handle of every chart.
//
// A Registry is not safe for concurrent use; it is only touched from the
// feed's event loop.
type Registry struct {
	renderer  Renderer
	now       func() time.Time
	handles   map[types.ChartID]Handle
	discarded map[types.ChartID]Handle
}

// NewRegistry creates a registry drawing through renderer. now supplies the
// time used to seed the hourly charts.
func NewRegistry(renderer Renderer, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		renderer:  renderer,
		now:       now,
		handles:   make(map[types.ChartID]Handle),
		discarded: make(map[types.ChartID]Handle),
	}
}

// Ensure returns the cached handle of id, creating it on first use
func (r *Registry) Ensure(id types.ChartID) (Handle, error) {
	if h, ok := r.handles[id]; ok {
		return h, nil
	}

	init, ok := initializers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, id)
	}

	var h Handle
	err := r.guard(func() error {
		var err error
		h, err = init(r.renderer, string(id), r.discarded[id], r.now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init chart %s: %w", id, err)
	}

	delete(r.discarded, id)
	r.handles[id] = h
	return h, nil
}

// EnsureAll creates every chart that does not have a handle yet
func (r *Registry) EnsureAll() error {
	var errs []error
	for _, id := range types.AllCharts {
		if _, err := r.Ensure(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Update pushes values for label to chart id
func (r *Registry) Update(id types.ChartID, label string, values []float64) error {
	h, err := r.Ensure(id)
	if err != nil {
		return err
	}

	err = r.guard(func() error {
		return r.renderer.UpdateSeries(h, label, values)
	})
	if err != nil {
		return fmt.Errorf("update chart %s label %q: %w", id, label, err)
	}
	return nil
}

// Reset discards every cached handle. The next Ensure hands the discarded
// handle to the renderer as the prior context.
func (r *Registry) Reset() {
	for id, h := range r.handles {
		r.discarded[id] = h
	}
	r.handles = make(map[types.ChartID]Handle)
}

// Cached reports whether id currently has a handle
func (r *Registry) Cached(id types.ChartID) bool {
	_, ok := r.handles[id]
	return ok
}

func (r *Registry) guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRendererPanic, p)
		}
	}()
	return fn()
}
