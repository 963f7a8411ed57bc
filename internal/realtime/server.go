package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/bridge"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/control"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/gallery"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/hub"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/protocol"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/tabs"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is served from localhost.
	},
}

// Options wires the server to the dashboard components.
type Options struct {
	Hub       *hub.Hub
	Tabs      *tabs.Registry
	Gallery   *gallery.Store
	Bridge    *bridge.Bridge
	Control   *control.Facade
	Sessions  *session.Holder
	Task      *session.TaskContext
	StaticDir string
	Logger    *slog.Logger
}

// Server routes WebSocket traffic between dashboard tabs and the hub,
// the tab registry, the input bridge and the control facade, and serves
// the read endpoints.
type Server struct {
	hub       *hub.Hub
	tabs      *tabs.Registry
	gallery   *gallery.Store
	bridge    *bridge.Bridge
	control   *control.Facade
	sessions  *session.Holder
	task      *session.TaskContext
	staticDir string
	logger    *slog.Logger
}

type client struct {
	conn     *websocket.Conn
	observer *hub.Observer
	server   *Server
}

// New creates a new realtime server.
func New(opts Options) *Server {
	s := &Server{
		hub:       opts.Hub,
		tabs:      opts.Tabs,
		gallery:   opts.Gallery,
		bridge:    opts.Bridge,
		control:   opts.Control,
		sessions:  opts.Sessions,
		task:      opts.Task,
		staticDir: opts.StaticDir,
		logger:    opts.Logger,
	}
	if s.hub == nil {
		s.hub = hub.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.task == nil {
		s.task = &session.TaskContext{}
	}
	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Read endpoints.
	mux.HandleFunc("GET /get_url_task", s.handleGetURLTask)
	mux.HandleFunc("GET /get_screenshots", s.handleGetScreenshots)
	mux.HandleFunc("GET /screenshot/{index}", s.handleGetScreenshot)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)

	// Dashboard pages.
	if s.staticDir != "" {
		mux.HandleFunc("GET /{$}", s.servePage("index.html"))
		mux.HandleFunc("GET /screenshots", s.servePage("screenshots.html"))
		mux.HandleFunc("GET /screenshot-view/{index}", s.servePage("screenshot-view.html"))
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleWebSocket upgrades an HTTP connection to WebSocket and attaches it
// to the hub as an observer.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{
		conn:     conn,
		observer: s.hub.Connect(),
		server:   s,
	}

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.hub.Disconnect(c.observer.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read", "conn", c.observer.ID, "err", err)
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump drains the observer's queue onto the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.observer.Messages():
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeRegisterTab:
		var p protocol.TabPayload
		json.Unmarshal(msg.Payload, &p)
		if s.tabs != nil {
			s.tabs.Register(p.TabID, c.observer.ID)
		}

	case protocol.TypeDashboardPing, protocol.TypeDashboardShow:
		var p protocol.TabPayload
		json.Unmarshal(msg.Payload, &p)
		s.handleTabActivity(c, msg.Type, p.TabID)

	case protocol.TypeAgentControl:
		var p protocol.AgentControlPayload
		json.Unmarshal(msg.Payload, &p)
		s.handleAgentControl(c, p.Action)

	case protocol.TypeBrowserInput:
		var p protocol.BrowserInputPayload
		json.Unmarshal(msg.Payload, &p)
		s.handleBrowserInput(c, p)
	}
}

func (s *Server) handleTabActivity(c *client, msgType, tabID string) {
	if s.tabs == nil {
		return
	}

	var known bool
	if msgType == protocol.TypeDashboardShow {
		known = s.tabs.MarkVisible(tabID)
	} else {
		known = s.tabs.Heartbeat(tabID)
	}
	if !known {
		// Evicted or never registered; the tab re-registers on this error.
		s.sendError(c, protocol.ErrUnknownTab, "tab not registered: "+tabID)
	}
}

func (s *Server) handleAgentControl(c *client, action string) {
	if s.control == nil {
		s.sendError(c, protocol.ErrControlRejected, control.ErrNoActiveAgent.Error())
		return
	}
	if err := s.control.ApplyToken(action); err != nil {
		s.sendError(c, protocol.ErrControlRejected, err.Error())
	}
}

func (s *Server) handleBrowserInput(c *client, p protocol.BrowserInputPayload) {
	if s.bridge == nil {
		s.sendError(c, protocol.ErrNoActiveSession, bridge.ErrNoActiveSession.Error())
		return
	}

	err := s.bridge.ForwardInput(p.Type, p.Details)
	switch {
	case err == nil:
	case errors.Is(err, bridge.ErrNoActiveSession):
		s.sendError(c, protocol.ErrNoActiveSession, err.Error())
	default:
		s.sendError(c, protocol.ErrScheduleFailed, err.Error())
	}
}

func (s *Server) sendError(c *client, code, message string) {
	msg, err := protocol.NewErrorMessage(code, message)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	s.hub.SendTo(c.observer.ID, data)
}
