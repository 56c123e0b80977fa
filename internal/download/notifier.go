package download

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// NoticeLevel classifies a user-facing notice
type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

// Notice is a toast-style message
type Notice struct {
	RequestID string      `json:"request_id"`
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProgressUpdate reports how far the audio write has got
type ProgressUpdate struct {
	RequestID string    `json:"request_id"`
	Percent   int       `json:"percent"` // -1 when the total size is unknown
	Written   int64     `json:"written"`
	Total     int64     `json:"total"`
	Speed     float64   `json:"speed"` // bytes per second
	ETA       int       `json:"eta"`   // seconds remaining
	Timestamp time.Time `json:"timestamp"`
}

// Event is delivered to hub subscribers; exactly one field is set
type Event struct {
	Notice   *Notice         `json:"notice,omitempty"`
	Progress *ProgressUpdate `json:"progress,omitempty"`
}

type transferStats struct {
	start       time.Time
	lastUpdate  time.Time
	lastWritten int64
	speed       float64
}

// Hub fans notices and progress out to subscribers. Slow subscribers miss
// events instead of blocking the workflow.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	statsMu     sync.Mutex
	stats       map[string]*transferStats
	logger      *zap.Logger
}

// NewHub creates a hub; logger may be nil
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		stats:       make(map[string]*transferStats),
		logger:      logger,
	}
}

// Subscribe registers a listener; buffer bounds how many events it may lag
func (h *Hub) Subscribe(id string, buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	if old, ok := h.subscribers[id]; ok {
		close(old)
	}
	h.subscribers[id] = ch
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Notify implements Notifier
func (h *Hub) Notify(n Notice) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if n.Level != LevelInfo {
		h.statsMu.Lock()
		delete(h.stats, n.RequestID)
		h.statsMu.Unlock()
	}

	h.logger.Debug("Notice",
		zap.String("request_id", n.RequestID),
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message))
	h.broadcast(Event{Notice: &n})
}

// Progress implements Notifier and fills in speed and ETA
func (h *Hub) Progress(p ProgressUpdate) {
	now := time.Now()
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}

	h.statsMu.Lock()
	st, ok := h.stats[p.RequestID]
	if !ok {
		st = &transferStats{start: now, lastUpdate: now}
		h.stats[p.RequestID] = st
	}
	if elapsed := now.Sub(st.lastUpdate).Seconds(); elapsed > 0 {
		st.speed = float64(p.Written-st.lastWritten) / elapsed
	}
	st.lastUpdate = now
	st.lastWritten = p.Written
	p.Speed = st.speed
	if st.speed > 0 && p.Total > 0 {
		p.ETA = int(float64(p.Total-p.Written) / st.speed)
	}
	if p.Total > 0 && p.Written >= p.Total {
		delete(h.stats, p.RequestID)
	}
	h.statsMu.Unlock()

	h.broadcast(Event{Progress: &p})
}

// noticeWait bounds how long a notice waits for a lagging subscriber
const noticeWait = 2 * time.Second

// broadcast delivers e to every subscriber. Progress is dropped for a
// lagging subscriber; a notice waits up to noticeWait for buffer space.
func (h *Hub) broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- e:
			continue
		default:
		}
		if e.Notice == nil {
			h.logger.Debug("Subscriber lagging, progress dropped", zap.String("subscriber", id))
			continue
		}

		timer := time.NewTimer(noticeWait)
		select {
		case ch <- e:
		case <-timer.C:
			h.logger.Warn("Subscriber lagging, notice dropped",
				zap.String("subscriber", id),
				zap.String("message", e.Notice.Message))
		}
		timer.Stop()
	}
}

// LogNotifier writes notices to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (l *LogNotifier) Notify(n Notice) {
	fields := []zap.Field{zap.String("request_id", n.RequestID)}
	switch n.Level {
	case LevelError:
		l.logger.Error(n.Message, fields...)
	case LevelWarning:
		l.logger.Warn(n.Message, fields...)
	default:
		l.logger.Info(n.Message, fields...)
	}
}

// Progress implements Notifier
func (l *LogNotifier) Progress(p ProgressUpdate) {
	l.logger.Debug("Download progress",
		zap.String("request_id", p.RequestID),
		zap.Int("percent", p.Percent),
		zap.Int64("written", p.Written),
		zap.Int64("total", p.Total))
}

// progressThrottle forwards an update only when the whole percent changes,
// or every unknownStep bytes when the total is unknown
type progressThrottle struct {
	requestID   string
	notifier    Notifier
	lastPercent int
	lastWritten int64
}

const unknownStep = 1 << 20

func newProgressThrottle(requestID string, notifier Notifier) *progressThrottle {
	return &progressThrottle{requestID: requestID, notifier: notifier, lastPercent: -1}
}

func (t *progressThrottle) report(written, total int64) {
	if total <= 0 {
		if written-t.lastWritten < unknownStep {
			return
		}
		t.lastWritten = written
		t.notifier.Progress(ProgressUpdate{RequestID: t.requestID, Percent: -1, Written: written})
		return
	}

	percent := int(written * 100 / total)
	if percent > 100 {
		percent = 100
	}
	if percent == t.lastPercent {
		return
	}
	t.lastPercent = percent
	t.notifier.Progress(ProgressUpdate{RequestID: t.requestID, Percent: percent, Written: written, Total: total})
}
