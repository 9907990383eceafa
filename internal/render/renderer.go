package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/chart"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

const (
	KindDoughnut = "doughnut"
	KindLine     = "line"

	FrameInit   = "chart_init"
	FrameUpdate = "chart_update"
)

var (
	// ErrUnknownHandle is returned when updating through a handle that was
	// not issued by this renderer or has been replaced by a newer init
	ErrUnknownHandle = errors.New("unknown chart handle")

	// ErrValueCount is returned when an update carries the wrong number of values
	ErrValueCount = errors.New("value count does not match chart series")
)

// Broadcaster fans encoded frames out to connected dashboards
type Broadcaster interface {
	Broadcast(message []byte)
}

// handle identifies one generation of a chart model
type handle struct {
	target string
	gen    int
}

// model is the server side state of one chart
type model struct {
	gen    int
	kind   string
	title  string
	labels []string
	series []string
	data   [][]float64 // doughnut: data[0][i] is labels[i]; line: data[s][i] is series s at labels[i]
}

// Renderer keeps a server side model of every chart and pushes each change
// to the dashboards as a JSON frame
type Renderer struct {
	charts      map[string]*model
	gen         int
	broadcaster Broadcaster
	now         func() time.Time
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// Interface compliance check
var _ chart.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer. broadcaster may be nil.
func NewRenderer(broadcaster Broadcaster, logger zerolog.Logger) *Renderer {
	return &Renderer{
		charts:      make(map[string]*model),
		broadcaster: broadcaster,
		now:         time.Now,
		logger:      logger.With().Str("component", "renderer").Logger(),
	}
}

// SetBroadcaster sets the frame sink (set after construction to avoid circular init)
func (r *Renderer) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	r.broadcaster = b
	r.mu.Unlock()
}

// InitDoughnut creates a category chart with every category at zero
func (r *Renderer) InitDoughnut(target, title string, prior chart.Handle, labels []string) (chart.Handle, error) {
	m := &model{
		kind:   KindDoughnut,
		title:  title,
		labels: slices.Clone(labels),
		data:   [][]float64{make([]float64, len(labels))},
	}
	return r.install(target, prior, m)
}

// InitLine creates a line chart with the given series and x labels
func (r *Renderer) InitLine(target string, prior chart.Handle, series, xLabels []string, data [][]float64) (chart.Handle, error) {
	if len(data) != len(series) {
		return nil, fmt.Errorf("init %s: %d data rows for %d series: %w", target, len(data), len(series), ErrValueCount)
	}
	m := &model{
		kind:   KindLine,
		labels: slices.Clone(xLabels),
		series: slices.Clone(series),
		data:   make([][]float64, len(series)),
	}
	for i, row := range data {
		if len(row) != len(xLabels) {
			return nil, fmt.Errorf("init %s: series %q has %d points for %d labels: %w",
				target, series[i], len(row), len(xLabels), ErrValueCount)
		}
		m.data[i] = slices.Clone(row)
	}
	return r.install(target, prior, m)
}

func (r *Renderer) install(target string, prior chart.Handle, m *model) (chart.Handle, error) {
	r.mu.Lock()
	if p, ok := prior.(*handle); ok && p.target != target {
		r.mu.Unlock()
		return nil, fmt.Errorf("init %s with handle of %s: %w", target, p.target, ErrUnknownHandle)
	}
	r.gen++
	m.gen = r.gen
	r.charts[target] = m
	frame := m.frame(FrameInit, target, r.now())
	r.mu.Unlock()

	r.logger.Debug().
		Str("chart", target).
		Str("kind", m.kind).
		Bool("replaced", prior != nil).
		Msg("chart initialized")

	r.broadcast(frame)
	return &handle{target: target, gen: m.gen}, nil
}

// UpdateSeries sets the values at label. On a doughnut label is a category
// and values holds one number; on a line chart label is an x position and
// values holds one number per series. Unknown labels are appended.
func (r *Renderer) UpdateSeries(h chart.Handle, label string, values []float64) error {
	hd, ok := h.(*handle)
	if !ok || hd == nil {
		return fmt.Errorf("update %q: %w", label, ErrUnknownHandle)
	}

	r.mu.Lock()
	m, exists := r.charts[hd.target]
	if !exists || m.gen != hd.gen {
		r.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", hd.target, label, ErrUnknownHandle)
	}

	rows := len(m.data)
	if len(values) != rows {
		r.mu.Unlock()
		return fmt.Errorf("update %s/%s: got %d values, want %d: %w", hd.target, label, len(values), rows, ErrValueCount)
	}

	idx := slices.Index(m.labels, label)
	if idx < 0 {
		m.labels = append(m.labels, label)
		for i := range m.data {
			m.data[i] = append(m.data[i], 0)
		}
		idx = len(m.labels) - 1
	}
	for i, v := range values {
		m.data[i][idx] = v
	}

	frame := types.ChartFrame{
		Type:      FrameUpdate,
		Chart:     hd.target,
		Label:     label,
		Values:    slices.Clone(values),
		Timestamp: r.now(),
	}
	r.mu.Unlock()

	r.broadcast(frame)
	return nil
}

// Snapshot returns an init frame for every chart, carrying its current values
func (r *Renderer) Snapshot() []types.ChartFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	frames := make([]types.ChartFrame, 0, len(r.charts))
	for target, m := range r.charts {
		frames = append(frames, m.frame(FrameInit, target, now))
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Chart < frames[j].Chart })
	return frames
}

// Values returns the current value of every series at label
func (r *Renderer) Values(target, label string) ([]float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.charts[target]
	if !ok {
		return nil, false
	}
	idx := slices.Index(m.labels, label)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(m.data))
	for i := range m.data {
		out[i] = m.data[i][idx]
	}
	return out, true
}

func (r *Renderer) broadcast(frame types.ChartFrame) {
	r.mu.RLock()
	b := r.broadcaster
	r.mu.RUnlock()
	if b == nil {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error().Err(err).Str("chart", frame.Chart).Msg("failed to marshal chart frame")
		return
	}
	b.Broadcast(data)
}

func (m *model) frame(typ, target string, ts time.Time) types.ChartFrame {
	data := make([][]float64, len(m.data))
	for i, row := range m.data {
		data[i] = slices.Clone(row)
	}
	return types.ChartFrame{
		Type:      typ,
		Chart:     target,
		Kind:      m.kind,
		Title:     m.title,
		Labels:    slices.Clone(m.labels),
		Series:    slices.Clone(m.series),
		Data:      data,
		Timestamp: ts,
	}
}
