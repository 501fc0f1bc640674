package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"energy-dashboard/internal/coordinator"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
)

// Client actions
const (
	actionSelectCountries = "select_countries"
	actionSelectMetric    = "select_metric"
	actionExport          = "export"
	actionRefresh         = "refresh"
)

// Server message types
const (
	msgTimeSeries = "timeseries"
	msgMap        = "map"
	msgExport     = "export"
	msgError      = "error"
)

// ClientMessage is a selection event sent by the browser. Countries may be
// a single string or an array of strings.
type ClientMessage struct {
	Action    string          `json:"action"`
	Countries json.RawMessage `json:"countries,omitempty"`
	Metric    string          `json:"metric,omitempty"`
	Format    string          `json:"format,omitempty"`
}

// ServerMessage carries one artifact, or an error, back to the browser.
// Export payloads are base64 encoded in Data.
type ServerMessage struct {
	Type        string      `json:"type"`
	Seq         uint64      `json:"seq"`
	Data        interface{} `json:"data,omitempty"`
	Filename    string      `json:"filename,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Error       string      `json:"error,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// view returns the coordinator view a message presents, if any
func (m ServerMessage) view() (coordinator.View, bool) {
	switch m.Type {
	case msgTimeSeries:
		return coordinator.ViewTimeSeries, true
	case msgMap:
		return coordinator.ViewMap, true
	case msgExport:
		return coordinator.ViewExport, true
	default:
		return "", false
	}
}

// decodeCountries accepts a JSON string, an array of strings, or nothing
func decodeCountries(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("countries must be a string or an array of strings")
	}
	return list, nil
}

// SessionHandler serves the reactive dashboard over websockets. Every
// connection gets its own selection and coordinator.
type SessionHandler struct {
	computer coordinator.ViewComputer
	upgrader websocket.Upgrader
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewSessionHandler creates a new websocket session handler
func NewSessionHandler(computer coordinator.ViewComputer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SessionHandler {
	return &SessionHandler{
		computer: computer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// RegisterRoutes registers the websocket endpoint
func (h *SessionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", h.ServeWS).Methods("GET")
}

// session is one open websocket connection
type session struct {
	conn    *websocket.Conn
	coord   *coordinator.Coordinator
	latest  *coordinator.Latest
	logger  *logging.ContextLogger
	metrics *metrics.Collector

	out        chan ServerMessage
	writerDone chan struct{}
	exports    sync.WaitGroup
}

// ServeWS handles GET /ws
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.RecordAPIError("upgrade_failed", "/ws")
		h.logger.Warn(r.Context(), "[WS_UPGRADE_ERROR] Websocket upgrade failed", logging.Fields{
			"error": err.Error(),
		})
		return
	}

	sessionID := newID()
	ctx, cancel := context.WithCancel(logging.WithSessionID(r.Context(), sessionID))
	defer cancel()

	s := &session{
		conn:       conn,
		coord:      coordinator.New(h.computer, h.logger, h.metrics),
		latest:     coordinator.NewLatest(),
		logger:     h.logger.WithFields(logging.Fields{"remote_addr": r.RemoteAddr}),
		metrics:    h.metrics,
		out:        make(chan ServerMessage, sendBuffer),
		writerDone: make(chan struct{}),
	}

	h.metrics.ActiveSessions.Inc()
	defer h.metrics.ActiveSessions.Dec()
	h.metrics.RecordAPIRequest("/ws", "GET", "101")

	s.logger.Info(ctx, "[WS_SESSION_START] Dashboard session opened", logging.Fields{})
	start := time.Now()

	go s.writeLoop(ctx)

	s.sendUpdate(s.coord.Refresh(ctx))
	s.readLoop(ctx)

	cancel()
	s.exports.Wait()
	close(s.out)
	<-s.writerDone

	s.logger.Info(ctx, "[WS_SESSION_END] Dashboard session closed", logging.Fields{
		"duration_seconds": time.Since(start).Seconds(),
	})
}

// readLoop dispatches client actions until the connection closes
func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(ctx, "[WS_READ_ERROR] Unexpected close", logging.Fields{
					"error": err.Error(),
				})
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(codeBadRequest, "malformed message")
			continue
		}

		s.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Action {
	case actionSelectCountries:
		countries, err := decodeCountries(msg.Countries)
		if err != nil {
			s.sendError(codeBadRequest, err.Error())
			return
		}
		s.sendUpdate(s.coord.SelectCountries(ctx, countries...))

	case actionSelectMetric:
		update, err := s.coord.SelectMetric(ctx, msg.Metric)
		if err != nil {
			code, _ := classifyError(err)
			s.sendError(code, err.Error())
			return
		}
		s.sendUpdate(update)

	case actionExport:
		format, err := views.ParseFormat(msg.Format)
		if err != nil {
			s.sendError(codeUnsupportedFormat, err.Error())
			return
		}
		s.exports.Add(1)
		go s.export(ctx, format)

	case actionRefresh:
		s.sendUpdate(s.coord.Refresh(ctx))

	default:
		s.sendError(codeBadRequest, fmt.Sprintf("unknown action %q", msg.Action))
	}
}

// export runs off the read loop so a large file does not delay selection changes
func (s *session) export(ctx context.Context, format views.Format) {
	defer s.exports.Done()

	res, err := s.coord.Export(ctx, format)
	if err != nil {
		code, _ := classifyError(err)
		s.sendError(code, err.Error())
		return
	}

	s.enqueue(ServerMessage{
		Type:        msgExport,
		Seq:         res.Seq,
		Data:        res.Artifact.Data,
		Filename:    res.Artifact.Filename,
		ContentType: res.Artifact.ContentType,
	})
}

func (s *session) sendUpdate(u coordinator.Update) {
	if u.TimeSeries != nil {
		s.enqueue(ServerMessage{Type: msgTimeSeries, Seq: u.Seq, Data: u.TimeSeries})
	}
	if u.Map != nil {
		s.enqueue(ServerMessage{Type: msgMap, Seq: u.Seq, Data: u.Map})
	}
}

func (s *session) sendError(code, message string) {
	s.enqueue(ServerMessage{Type: msgError, Error: code, Message: message})
}

// enqueue hands msg to the writer, or drops it once the writer has stopped
func (s *session) enqueue(msg ServerMessage) {
	select {
	case s.out <- msg:
	case <-s.writerDone:
	}
}

// writeLoop is the only goroutine writing to the connection. It is also the
// presentation boundary where stale artifacts are discarded.
func (s *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case msg, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if view, ok := msg.view(); ok && !s.latest.Accept(view, msg.Seq) {
				s.metrics.RecordStaleUpdate(string(view))
				s.logger.Debug(ctx, "[WS_STALE_UPDATE] Dropped artifact from superseded selection", logging.Fields{
					"type": msg.Type,
					"seq":  msg.Seq,
				})
				continue
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error(ctx, "[WS_ENCODE_ERROR] Failed to encode message", logging.Fields{
					"type": msg.Type,
				}, err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Warn(ctx, "[WS_WRITE_ERROR] Write failed", logging.Fields{
						"error": err.Error(),
					})
				}
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
