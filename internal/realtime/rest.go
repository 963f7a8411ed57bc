package realtime

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/bridge"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/control"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/hub"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/protocol"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

type statsResponse struct {
	Hub        hub.Stats     `json:"hub"`
	Bridge     bridge.Stats  `json:"bridge"`
	Dashboards int           `json:"dashboards"`
	Gallery    int           `json:"gallery"`
	Agent      control.State `json:"agent,omitempty"`
	Session    session.Info  `json:"session"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGetURLTask(w http.ResponseWriter, r *http.Request) {
	url, task := s.task.Get()
	writeJSON(w, protocol.URLTaskResponse{URL: url, Task: task})
}

func (s *Server) handleGetScreenshots(w http.ResponseWriter, r *http.Request) {
	shots := []string{}
	if s.gallery != nil {
		shots = s.gallery.List()
	}
	writeJSON(w, shots)
}

func (s *Server) handleGetScreenshot(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || s.gallery == nil {
		http.Error(w, `{"error":"Screenshot not found"}`, http.StatusNotFound)
		return
	}

	shot, err := s.gallery.Get(index)
	if err != nil {
		http.Error(w, `{"error":"Screenshot not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, protocol.ScreenshotResponse{Screenshot: shot})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Hub: s.hub.Stats()}
	if s.bridge != nil {
		resp.Bridge = s.bridge.Stats()
	}
	if s.tabs != nil {
		resp.Dashboards = s.tabs.ActiveCount()
	}
	if s.gallery != nil {
		resp.Gallery = s.gallery.Len()
	}
	if s.control != nil {
		resp.Agent = s.control.State()
	}
	if s.sessions != nil {
		resp.Session = s.sessions.Info()
	} else {
		resp.Session = session.Info{State: session.StateIdle}
	}
	writeJSON(w, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

// servePage serves one of the dashboard's HTML pages from the static
// directory.
func (s *Server) servePage(name string) http.HandlerFunc {
	path := filepath.Join(s.staticDir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
