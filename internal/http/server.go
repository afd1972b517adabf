package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"songseeker/internal/core"
	"songseeker/internal/flood"
	"songseeker/internal/i18n"
)

// Authorizer is the authorization flow as seen by the web routes.
type Authorizer interface {
	Authenticated() bool
	BeginAuthorization() (string, error)
	HandleCallback(ctx context.Context, query url.Values) error
	Logout() error
}

// Player is the playback session as seen by the web routes.
type Player interface {
	Connect(ctx context.Context) error
	Toggle(ctx context.Context, prefs core.Preferences) error
	Stop(ctx context.Context) error
	Snapshot() core.SessionSnapshot
}

// ScanSession is the scan dispatcher as seen by the web routes.
type ScanSession interface {
	Start(ctx context.Context) error
	Cancel()
	Running() bool
	Preferences() core.Preferences
	SetPreferences(prefs core.Preferences)
	Diagnostics() []core.ScanDiagnostic
}

// Submitter accepts codes decoded by the browser.
type Submitter interface {
	Submit(text string) error
}

// Options are the collaborators the server routes requests to.
type Options struct {
	Auth      Authorizer
	Player    Player
	Scans     ScanSession
	Submitter Submitter
	Floodgate *flood.Floodgate
}

type Server struct {
	config    *core.Config
	logger    *zap.Logger
	server    *http.Server
	metrics   *Metrics
	localizer *i18n.Localizer
	notices   *NoticeBoard

	auth      Authorizer
	player    Player
	scans     ScanSession
	submitter Submitter
	floodgate *flood.Floodgate

	mutex    sync.Mutex
	baseCtx  context.Context
	loginURL string
}

func NewServer(config *core.Config, opts Options, metrics *Metrics, logger *zap.Logger) *Server {
	s := &Server{
		config:    config,
		logger:    logger,
		metrics:   metrics,
		localizer: i18n.NewLocalizer(config.App.Language),
		notices:   NewNoticeBoard(time.Duration(config.Server.NoticeTTLSecs) * time.Second),
		auth:      opts.Auth,
		player:    opts.Player,
		scans:     opts.Scans,
		submitter: opts.Submitter,
		floodgate: opts.Floodgate,
		baseCtx:   context.Background(),
	}

	s.server = createHTTPServer(&config.Server, s.setupRoutes())
	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

// Start serves until ctx is cancelled. Scan sessions started through the
// API live as long as ctx.
func (s *Server) Start(ctx context.Context) error {
	s.mutex.Lock()
	s.baseCtx = ctx
	s.mutex.Unlock()

	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) context() context.Context {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.baseCtx
}

// Navigate records the authorize URL so the web page can follow it.
func (s *Server) Navigate(_ context.Context, authorizeURL string) error {
	s.mutex.Lock()
	s.loginURL = authorizeURL
	s.mutex.Unlock()

	s.logger.Info("Spotify authorization required", zap.String("url", authorizeURL))
	return nil
}

func (s *Server) pendingLogin() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loginURL
}

func (s *Server) clearPendingLogin() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.loginURL = ""
}

// OnScan reports the outcome of a distinct scan to metrics and the notice board.
func (s *Server) OnScan(result core.ScanResult) {
	kind := scanKind(result.Text)

	switch {
	case result.Err != nil:
		s.metrics.RecordScan(kind, scanResultLabel(result.Err))
		s.postError(result.Err, result.Text)
	default:
		s.metrics.RecordScan(kind, "resolved")
		s.notices.Post(NoticeSuccess, s.localizer.T("success.track_loaded"))
	}

	if result.Autoplayed {
		s.metrics.RecordPlaybackCommand("autoplay", result.PlayErr)
	}
	if result.PlayErr != nil {
		s.postError(result.PlayErr, result.Text)
	}
}

func (s *Server) postError(err error, text string) {
	key, args, ok := noticeFor(err, text)
	if !ok {
		return
	}
	s.notices.Post(NoticeError, s.localizer.T(key, args...))
}
