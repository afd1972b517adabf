package http

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"songseeker/internal/core"
)

const maxScanBodySize = 4 << 10

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeRaw(w, s.logger, `{"status":"ok","service":"songseeker"}`)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeRaw(w, s.logger, `{"status":"ready","service":"songseeker"}`)
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /callback", s.handleCallback)
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("POST /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/scan/start", s.handleScanStart)
	mux.HandleFunc("POST /api/scan/stop", s.handleScanStop)
	mux.HandleFunc("POST /api/playback/connect", s.handleConnect)
	mux.HandleFunc("POST /api/playback/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/playback/stop", s.handleStop)
	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("POST /api/preferences", s.handleSetPreferences)

	mux.Handle("GET /", s.staticHandler())

	return mux
}

func writeRaw(w http.ResponseWriter, logger *zap.Logger, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

// writeError posts the error as a notice and answers with its localized text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	message := s.localizer.T("error.generic")
	if key, args, ok := noticeFor(err, ""); ok {
		message = s.localizer.T(key, args...)
		s.notices.Post(NoticeError, message)
	}
	s.writeJSON(w, statusFor(err), map[string]string{"error": message})
}

// staticHandler serves the app page at the root and every other file from
// the static directory, including the lookup tables.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.Dir(s.config.Server.StaticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			s.serveIndex(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(s.config.Server.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		homeHandler(s.logger)(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

// homeHandler is the page shown when no static app is installed.
func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>SongSeeker</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>SongSeeker</h1>
    <p>Scan a song card and play it on Spotify.</p>

    <div class="endpoint"><a href="/login">Log in with Spotify</a></div>
    <div class="endpoint"><a href="/api/status">Status</a></div>
    <div class="endpoint"><a href="/metrics">Metrics</a></div>
    <div class="endpoint"><a href="/healthz">Health</a></div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.HandleCallback(r.Context(), r.URL.Query()); err != nil {
		s.metrics.RecordAuthCallback("error")
		s.postError(err, "")
		s.serveIndex(w, r)
		return
	}

	s.metrics.RecordAuthCallback("success")
	s.clearPendingLogin()
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	authorizeURL, err := s.auth.BeginAuthorization()
	if err != nil {
		s.logger.Error("Failed to begin authorization", zap.Error(err))
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.scans.Cancel()
	if err := s.auth.Logout(); err != nil {
		s.logger.Error("Failed to log out", zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.notices.Post(NoticeSuccess, s.localizer.T("success.logged_out"))
	http.Redirect(w, r, "/", http.StatusFound)
}

type trackPayload struct {
	TrackID     string `json:"track_id"`
	URI         string `json:"uri"`
	StartOffset int    `json:"start_offset"`
}

type statusPayload struct {
	State         string             `json:"state"`
	Status        string             `json:"status"`
	Authenticated bool               `json:"authenticated"`
	LoginURL      string             `json:"login_url,omitempty"`
	DeviceID      string             `json:"device_id,omitempty"`
	Track         *trackPayload      `json:"track"`
	Scanning      bool               `json:"scanning"`
	TimerArmed    bool               `json:"timer_armed"`
	StopAt        *time.Time         `json:"stop_at,omitempty"`
	Preferences   preferencesPayload `json:"preferences"`
	Notices       []Notice           `json:"notices"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.player.Snapshot()
	authenticated := s.auth.Authenticated()

	payload := statusPayload{
		State:         snapshot.State.String(),
		Status:        s.localizer.T(snapshot.State.MessageKey()),
		Authenticated: authenticated,
		DeviceID:      snapshot.DeviceID,
		Scanning:      s.scans.Running(),
		TimerArmed:    snapshot.TimerArmed,
		Preferences:   payloadFromPreferences(s.preferences(r)),
		Notices:       s.notices.Active(),
	}
	if !authenticated {
		payload.LoginURL = s.pendingLogin()
	}
	if snapshot.Track != nil {
		payload.Track = &trackPayload{
			TrackID:     snapshot.Track.TrackID,
			URI:         snapshot.Track.URI(),
			StartOffset: snapshot.Track.StartOffset,
		}
	}
	if snapshot.TimerArmed {
		stopAt := snapshot.StopAt
		payload.StopAt = &stopAt
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	diagnostics := s.scans.Diagnostics()
	if diagnostics == nil {
		diagnostics = []core.ScanDiagnostic{}
	}
	s.writeJSON(w, http.StatusOK, diagnostics)
}

type scanRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	key := clientKey(r, s.config.Server.TrustProxy)
	if !s.floodgate.Allow(key) {
		stats := s.floodgate.Stats()
		s.logger.Debug("Scan submission rate limited",
			zap.String("client", key),
			zap.Int("clients", stats.Clients),
			zap.Int("limit_per_minute", stats.LimitPerMinute))
		s.metrics.RecordRejectedScan()
		message := s.localizer.T("error.scan.rate_limited")
		s.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": message})
		return
	}

	var req scanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBodySize)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scan payload"})
		return
	}

	if err := s.submitter.Submit(req.Text); err != nil {
		s.logger.Debug("Scan submission not accepted", zap.Error(err))
		s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleScanStart(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Authenticated() {
		s.requireLogin(w)
		return
	}

	if err := s.player.Connect(r.Context()); err != nil {
		s.metrics.RecordPlaybackCommand("connect", err)
		s.writeError(w, err)
		return
	}

	s.scans.SetPreferences(s.preferences(r))
	if err := s.scans.Start(s.context()); err != nil {
		s.logger.Error("Failed to start scanner", zap.Error(err))
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"scanning": true})
}

func (s *Server) requireLogin(w http.ResponseWriter) {
	authorizeURL, err := s.auth.BeginAuthorization()
	if err != nil {
		s.logger.Error("Failed to begin authorization", zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusUnauthorized, map[string]string{"login_url": authorizeURL})
}

func (s *Server) handleScanStop(w http.ResponseWriter, _ *http.Request) {
	s.scans.Cancel()
	s.writeJSON(w, http.StatusOK, map[string]bool{"scanning": false})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !s.auth.Authenticated() {
		s.requireLogin(w)
		return
	}

	err := s.player.Connect(r.Context())
	s.metrics.RecordPlaybackCommand("connect", err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notices.Post(NoticeSuccess, s.localizer.T("success.device_ready"))
	s.writeJSON(w, http.StatusOK, map[string]string{"state": s.player.Snapshot().State.String()})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	err := s.player.Toggle(r.Context(), s.preferences(r))
	s.metrics.RecordPlaybackCommand("toggle", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": s.player.Snapshot().State.String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.player.Stop(r.Context())
	s.metrics.RecordPlaybackCommand("stop", err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"state": s.player.Snapshot().State.String()})
}

func (s *Server) preferences(r *http.Request) core.Preferences {
	return preferencesFromRequest(r, s.config.Playback.DefaultPreferences())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, payloadFromPreferences(s.preferences(r)))
}

func (s *Server) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	payload := payloadFromPreferences(s.preferences(r))
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScanBodySize)).Decode(&payload); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid preferences payload"})
		return
	}
	if payload.PlaybackSeconds <= 0 {
		payload.PlaybackSeconds = s.config.Playback.WindowSecs
	}

	prefs := core.Preferences{
		RandomPlayback: payload.RandomPlayback,
		Autoplay:       payload.Autoplay,
		Window:         time.Duration(payload.PlaybackSeconds) * time.Second,
	}
	writePreferenceCookies(w, prefs)
	s.scans.SetPreferences(prefs)

	s.writeJSON(w, http.StatusOK, payloadFromPreferences(prefs))
}

// clientKey identifies the submitting client for flood limiting. The
// X-Forwarded-For header is client controlled, so it is read only when the
// server runs behind a trusted reverse proxy.
func clientKey(r *http.Request, trustProxy bool) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); trustProxy && forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
