package api

import (
	"io/fs"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
}

func NewServer(handlers *Handlers, staticFS fs.FS) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: handlers,
	}
	s.setupRoutes(staticFS)
	return s
}

func (s *Server) setupRoutes(staticFS fs.FS) {
	// Session API
	s.mux.HandleFunc("GET /api/session", s.handlers.GetSession)
	s.mux.HandleFunc("POST /api/session", s.handlers.Login)
	s.mux.HandleFunc("DELETE /api/session", s.handlers.Logout)

	// Devices API
	s.mux.HandleFunc("GET /api/devices", s.handlers.GetDevices)
	s.mux.HandleFunc("POST /api/devices", s.handlers.CreateDevice)
	s.mux.HandleFunc("PUT /api/devices/{id}", s.handlers.UpdateDevice)
	s.mux.HandleFunc("DELETE /api/devices/{id}", s.handlers.DeleteDevice)
	s.mux.HandleFunc("POST /api/devices/{id}/select", s.handlers.SelectDevice)
	s.mux.HandleFunc("GET /api/devices/{id}/realtime", s.handlers.WatchRealtime)
	s.mux.HandleFunc("DELETE /api/realtime", s.handlers.StopRealtime)
	s.mux.HandleFunc("GET /api/devices/{id}/issues.xlsx", s.handlers.ExportIssues)

	// Issues API
	s.mux.HandleFunc("GET /api/issues", s.handlers.GetIssues)
	s.mux.HandleFunc("POST /api/issues/navigate", s.handlers.NavigateIssues)
	s.mux.HandleFunc("POST /api/issues/{id}/select", s.handlers.SelectIssue)
	s.mux.HandleFunc("GET /api/issues/{id}/review", s.handlers.GetReview)
	s.mux.HandleFunc("POST /api/issues/{id}/review", s.handlers.ReviewIssue)
	s.mux.HandleFunc("DELETE /api/issues/{id}", s.handlers.DeleteIssue)
	s.mux.HandleFunc("GET /api/issues/{id}/chart", s.handlers.GetIssueChart)
	s.mux.HandleFunc("POST /api/issues/{id}/speak", s.handlers.SpeakIssue)

	// Panel control API
	s.mux.HandleFunc("GET /api/state", s.handlers.GetState)
	s.mux.HandleFunc("GET /api/window", s.handlers.GetWindow)
	s.mux.HandleFunc("PUT /api/window", s.handlers.SetWindow)
	s.mux.HandleFunc("POST /api/refresh", s.handlers.Refresh)
	s.mux.HandleFunc("POST /api/deeplink", s.handlers.SetDeepLink)
	s.mux.HandleFunc("GET /api/preferences", s.handlers.GetPreferences)
	s.mux.HandleFunc("PUT /api/preferences", s.handlers.SetPreferences)
	s.mux.HandleFunc("POST /api/speech/done", s.handlers.SpeechDone)
	s.mux.HandleFunc("POST /api/speech/cancel", s.handlers.CancelSpeech)

	// Push endpoints
	s.mux.HandleFunc("GET /api/events", s.handlers.HandleSSE)
	s.mux.HandleFunc("GET /api/ws", s.handlers.HandleWS)

	// Prometheus
	s.mux.Handle("GET /metrics", promhttp.Handler())

	if staticFS == nil {
		return
	}

	// Static files
	staticHandler := http.FileServer(http.FS(staticFS))
	s.mux.Handle("GET /static/", staticHandler)

	// Index page. Ссылка из оповещения открывает панель с ?deviceId=&issueId=
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if deviceID := r.URL.Query().Get("deviceId"); deviceID != "" {
			s.handlers.monitor.SetDeepLink(deviceID, r.URL.Query().Get("issueId"))
		}
		http.ServeFileFS(w, r, staticFS, "templates/index.html")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
