package mockrenderer

import (
	"errors"
	"fmt"

	"github.com/dennisdiepolder/monti/livechat/internal/chart"
)

// ErrInjected is returned for targets configured to fail
var ErrInjected = errors.New("injected renderer failure")

// Handle is the handle type handed out by Renderer
type Handle struct {
	Target string
	Seq    int
}

// Update is a single recorded UpdateSeries call
type Update struct {
	Target string
	Label  string
	Values []float64
}

// Init is a single recorded Init call
type Init struct {
	Target string
	Kind   string
	Prior  chart.Handle
	Labels []string
	Series []string
	Data   [][]float64
}

// Renderer records every call. FailTargets makes updates to the listed
// targets fail; PanicTargets makes them panic.
type Renderer struct {
	Inits        []Init
	Updates      []Update
	FailTargets  map[string]bool
	PanicTargets map[string]bool
	FailInit     map[string]bool

	seq int
}

// Interface compliance check
var _ chart.Renderer = &Renderer{}

// New creates an empty recording renderer
func New() *Renderer {
	return &Renderer{
		FailTargets:  make(map[string]bool),
		PanicTargets: make(map[string]bool),
		FailInit:     make(map[string]bool),
	}
}

func (r *Renderer) InitDoughnut(target, title string, prior chart.Handle, labels []string) (chart.Handle, error) {
	if r.FailInit[target] {
		return nil, ErrInjected
	}
	r.seq++
	r.Inits = append(r.Inits, Init{Target: target, Kind: "doughnut", Prior: prior, Labels: labels})
	return &Handle{Target: target, Seq: r.seq}, nil
}

func (r *Renderer) InitLine(target string, prior chart.Handle, series, xLabels []string, data [][]float64) (chart.Handle, error) {
	if r.FailInit[target] {
		return nil, ErrInjected
	}
	r.seq++
	r.Inits = append(r.Inits, Init{Target: target, Kind: "line", Prior: prior, Labels: xLabels, Series: series, Data: data})
	return &Handle{Target: target, Seq: r.seq}, nil
}

func (r *Renderer) UpdateSeries(h chart.Handle, label string, values []float64) error {
	handle, ok := h.(*Handle)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	if r.PanicTargets[handle.Target] {
		panic("renderer exploded")
	}
	if r.FailTargets[handle.Target] {
		return ErrInjected
	}
	r.Updates = append(r.Updates, Update{Target: handle.Target, Label: label, Values: append([]float64(nil), values...)})
	return nil
}

// Last returns the most recent values pushed for target and label
func (r *Renderer) Last(target, label string) ([]float64, bool) {
	for i := len(r.Updates) - 1; i >= 0; i-- {
		u := r.Updates[i]
		if u.Target == target && u.Label == label {
			return u.Values, true
		}
	}
	return nil, false
}

// UpdatesFor returns every update pushed to target, in order
func (r *Renderer) UpdatesFor(target string) []Update {
	var out []Update
	for _, u := range r.Updates {
		if u.Target == target {
			out = append(out, u)
		}
	}
	return out
}

// InitsFor returns every init call for target, in order
func (r *Renderer) InitsFor(target string) []Init {
	var out []Init
	for _, in := range r.Inits {
		if in.Target == target {
			out = append(out, in)
		}
	}
	return out
}

// Clear forgets recorded updates
func (r *Renderer) Clear() {
	r.Updates = nil
}
