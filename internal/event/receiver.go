package event

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/ingestion"
	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/stream"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds a single notification batch
const maxBodyBytes = 4 << 20

// Publisher accepts decoded changes; satisfied by *stream.Feed
type Publisher interface {
	PublishSession(c types.SessionChange) error
	PublishAgent(c types.AgentChange) error
	PublishDepartment(c types.DepartmentChange) error
	Stats() stream.Stats
}

// Counts exposes the store sizes reported by the stats endpoint
type Counts struct {
	Sessions    func() int
	Agents      func() int
	Departments func() int
	AgentStatus func() map[types.AgentStatus]int
}

// Receiver handles change notifications pushed by the chat platform
type Receiver struct {
	feed           Publisher
	counts         Counts
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new change receiver
func NewReceiver(feed Publisher, counts Counts, logger zerolog.Logger) *Receiver {
	return &Receiver{
		feed:   feed,
		counts: counts,
		logger: logger.With().Str("component", "receiver").Logger(),
	}
}

// HandleSessions receives session notifications
func (r *Receiver) HandleSessions(w http.ResponseWriter, req *http.Request) {
	receive(r, w, req, stream.SourceSessions, ingestion.DecodeSessions, r.feed.PublishSession)
}

// HandleAgents receives agent notifications
func (r *Receiver) HandleAgents(w http.ResponseWriter, req *http.Request) {
	receive(r, w, req, stream.SourceAgents, ingestion.DecodeAgents, r.feed.PublishAgent)
}

// HandleDepartments receives department notifications
func (r *Receiver) HandleDepartments(w http.ResponseWriter, req *http.Request) {
	receive(r, w, req, stream.SourceDepartments, ingestion.DecodeDepartments, r.feed.PublishDepartment)
}

func receive[T any](r *Receiver, w http.ResponseWriter, req *http.Request, source string,
	decode func([]byte) ([]T, error), publish func(T) error) {
	m := metrics.Get()

	if req.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		r.logger.Error().Err(err).Str("source", source).Msg("failed to read notification body")
		m.RecordChangeRejected(source)
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	changes, err := decode(body)
	if err != nil {
		r.logger.Warn().Err(err).Str("source", source).Msg("failed to decode notifications")
		m.RecordChangeRejected(source)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted := 0
	for _, c := range changes {
		if err := publish(c); err != nil {
			if errors.Is(err, stream.ErrStopped) {
				writeError(w, http.StatusServiceUnavailable, "feed stopped")
				return
			}
			r.logger.Error().Err(err).Str("source", source).Msg("failed to publish change")
			m.RecordChangeRejected(source)
			continue
		}
		accepted++
	}

	count := atomic.AddInt64(&r.eventsReceived, int64(accepted))
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	r.logger.Debug().
		Str("source", source).
		Int("accepted", accepted).
		Int64("total_received", count).
		Msg("notifications received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}

// GetStats returns receiver and feed statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":   lastReceived,
		"feed":            r.feed.Stats(),
	}

	records := map[string]int{}
	if r.counts.Sessions != nil {
		records[stream.SourceSessions] = r.counts.Sessions()
	}
	if r.counts.Agents != nil {
		records[stream.SourceAgents] = r.counts.Agents()
	}
	if r.counts.Departments != nil {
		records[stream.SourceDepartments] = r.counts.Departments()
	}
	stats["records"] = records

	if r.counts.AgentStatus != nil {
		stats["agent_status"] = r.counts.AgentStatus()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
