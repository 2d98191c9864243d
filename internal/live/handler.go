package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/djarekg/tampa-taffy/pkg/reactive"
	"github.com/djarekg/tampa-taffy/pkg/resource"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	maxFrameSize = 4096

	// DefaultAttributeDebounce is the attribute frame debounce used by serve.
	DefaultAttributeDebounce = 150 * time.Millisecond
)

// SessionHooks observe session lifetimes.
type SessionHooks interface {
	SessionOpened()
	SessionClosed()
}

// Handler upgrades requests and runs one SearchView per connection.
type Handler struct {
	search   SearchFunc
	upgrader websocket.Upgrader
	logger   *slog.Logger
	observer resource.Observer
	hooks    SessionHooks
	limit    int
	debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithObserver instruments every view's search resource.
func WithObserver(o resource.Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

// WithSessionHooks reports session opens and closes.
func WithSessionHooks(hooks SessionHooks) Option {
	return func(h *Handler) {
		h.hooks = hooks
	}
}

// WithDefaultLimit sets the initial result limit of new views.
func WithDefaultLimit(n int) Option {
	return func(h *Handler) {
		h.limit = n
	}
}

// WithAttributeDebounce delays attr and remove frames until d has passed
// without another frame for the same attribute. Only the last one applies.
func WithAttributeDebounce(d time.Duration) Option {
	return func(h *Handler) {
		h.debounce = d
	}
}

// WithCheckOrigin sets the upgrade origin check. The default accepts all.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHandler creates a live handler backed by search.
func NewHandler(search SearchFunc, opts ...Option) *Handler {
	h := &Handler{
		search: search,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:   slog.Default(),
		limit:    DefaultLimit,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "live")
	return h
}

// SessionCount returns the number of open sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ServeHTTP upgrades the connection and blocks until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := uuid.NewString()
	logger := h.logger.With("session", id)
	view, err := NewSearchView(h.search, ViewOptions{
		Limit:    h.limit,
		Context:  ctx,
		Observer: h.observer,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("view init failed", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "init failed"))
		conn.Close()
		return
	}

	s := &session{id: id, conn: conn, view: view, logger: logger, debounce: h.debounce}
	h.track(s, true)
	defer h.track(s, false)

	s.run(ctx, cancel)
}

func (h *Handler) track(s *session, open bool) {
	h.mu.Lock()
	if open {
		h.sessions[s.id] = s
	} else {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()

	if h.hooks == nil {
		return
	}
	if open {
		h.hooks.SessionOpened()
	} else {
		h.hooks.SessionClosed()
	}
}

// frame is a client message.
type frame struct {
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type session struct {
	id     string
	conn   *websocket.Conn
	view   *SearchView
	logger *slog.Logger

	writeMu sync.Mutex

	debounce  time.Duration
	attrMu    sync.Mutex
	debounced map[string]func(frame)
	stops     []func()
}

// run connects the view, pumps client frames on a second goroutine and
// pushes snapshots until either side closes.
func (s *session) run(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		s.stopDebounce()
		s.view.Dispose()
		s.conn.Close()
		s.logger.Debug("session closed")
	}()

	s.view.ConnectedCallback()
	s.view.Flush()
	if err := s.write(s.view.Snapshot()); err != nil {
		return
	}

	go func() {
		defer cancel()
		s.readLoop()
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.view.DisconnectedCallback()
			s.writeControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-s.view.Updates():
			changed := s.view.Flush()
			if changed == nil {
				continue
			}
			snap := s.view.Snapshot()
			snap.Changed = sortedKeys(changed)
			if err := s.write(snap); err != nil {
				s.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := s.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			s.sendError("invalid frame")
			continue
		}
		s.apply(f)
	}
}

func (s *session) apply(f frame) {
	switch f.Type {
	case "attr":
		if f.Name == "" {
			s.sendError("attr frame needs a name")
			return
		}
		s.attribute(f)
	case "remove":
		s.attribute(f)
	case "limit":
		if f.Limit < 1 {
			s.sendError("limit must be positive")
			return
		}
		s.view.SetLimit(f.Limit)
	case "reload":
		s.view.Reload()
	default:
		s.sendError("unknown frame type " + f.Type)
	}
}

// attribute applies an attr or remove frame, through the attribute's
// debouncer when one is configured.
func (s *session) attribute(f frame) {
	if s.debounce <= 0 {
		s.applyAttribute(f)
		return
	}

	s.attrMu.Lock()
	fn, ok := s.debounced[f.Name]
	if !ok {
		var stop func()
		fn, stop = reactive.Debounce(s.applyAttribute, s.debounce)
		if s.debounced == nil {
			s.debounced = make(map[string]func(frame))
		}
		s.debounced[f.Name] = fn
		s.stops = append(s.stops, stop)
	}
	s.attrMu.Unlock()

	fn(f)
}

func (s *session) applyAttribute(f frame) {
	if f.Type == "remove" {
		s.view.RemoveAttribute(f.Name)
		return
	}
	s.view.SetAttribute(f.Name, f.Value)
}

func (s *session) stopDebounce() {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil
}

func (s *session) sendError(msg string) {
	if err := s.write(errorFrame{Type: "error", Message: msg}); err != nil {
		s.logger.Debug("error frame not sent", "error", err)
	}
}

func (s *session) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *session) writeControl(messageType int, data []byte) error {
	return s.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
