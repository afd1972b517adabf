// Package main provides the SongSeeker CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"songseeker/internal/auth"
	"songseeker/internal/core"
	"songseeker/internal/flood"
	httpserver "songseeker/internal/http"
	"songseeker/internal/i18n"
	"songseeker/internal/playback"
	"songseeker/internal/scanner"
	"songseeker/internal/spotify"
	"songseeker/internal/store"
	"songseeker/pkg/musiclink"
)

const (
	envPrefix = "SONGSEEKER"
	version   = "1.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "songseeker",
	Short: "SongSeeker - Hitster card → Spotify player",
	Long: `SongSeeker turns scanned Hitster and Spotify QR codes into playback on a Spotify
Connect device. Decoded codes arrive on standard input or through the web API.`,
	RunE: runSongSeeker,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Notice language (%s)", supportedLangs))

	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-redirect-url", "", "OAuth redirect URL (default derived from server host and port)")
	flags.String("spotify-auth-url", "", "Override the Spotify authorize endpoint")
	flags.String("spotify-token-url", "", "Override the Spotify token endpoint")
	flags.String("spotify-api-base-url", "", "Override the Spotify Web API base URL")
	flags.String("spotify-device-name", core.DefaultDeviceName, "Spotify Connect device to play on")
	flags.Int("spotify-verifier-length", core.DefaultVerifierLength, "PKCE code verifier length (43-128)")
	flags.Bool("open-browser", false, "Open the system browser when authorization is required")

	flags.String("lookup-base-url", "", "Base URL serving hitster-<lang>.csv lookup tables (default is this server)")

	flags.String("storage-driver", core.DefaultStorageDriver, "Credential storage (memory, file, sqlite)")
	flags.String("storage-path", "", "Credential storage path for file and sqlite drivers")

	flags.Int("playback-window-secs", core.DefaultPlaybackWindowSecs, "Length of a randomized playback snippet in seconds")
	flags.Int("playback-settle-delay-ms", core.DefaultSettleDelayMs, "Delay between device transfer and play in milliseconds")
	flags.Int("device-poll-interval-secs", core.DefaultDevicePollIntervalSecs, "Device presence poll interval in seconds")
	flags.Bool("random-playback", false, "Start tracks at a random position by default")
	flags.Bool("autoplay", false, "Play resolved tracks immediately by default")

	flags.String("scanner-source", core.DefaultScannerSource, "Where decoded codes come from (stdin: one code per line, scanning stays on; http: browser scans, stopped after each card)")
	flags.Int("flood-limit-per-minute", core.DefaultScanFloodLimitPerMinute, "Maximum scan submissions per client per minute")
	flags.Int("diagnostics-size", core.DefaultDiagnosticsSize, "Number of unresolved scans kept for diagnostics")

	flags.String("server-host", core.DefaultServerHost, "HTTP server host")
	flags.Int("server-port", core.DefaultServerPort, "HTTP server port")
	flags.String("static-dir", "./static", "Directory with the web page and lookup tables")
	flags.Int("notice-ttl-secs", core.DefaultNoticeTTLSecs, "How long error notices stay visible in seconds")
	flags.Bool("trust-proxy", false, "Identify scan clients by X-Forwarded-For (only behind a trusted reverse proxy)")

	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureServer(cfg)
	configureSpotify(cfg)
	configureLookup(cfg)
	configureStorage(cfg)
	configurePlayback(cfg)
	configureScanner(cfg)
	configureApp(cfg)

	return cfg
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Server.StaticDir = viper.GetString("static-dir")
	cfg.Server.NoticeTTLSecs = viper.GetInt("notice-ttl-secs")
	cfg.Server.TrustProxy = viper.GetBool("trust-proxy")
	cfg.Log.Level = viper.GetString("log-level")
}

// localOrigin is the origin a browser on this machine reaches the server at.
func localOrigin(cfg *core.Config) string {
	host := cfg.Server.Host
	if host == core.DefaultServerHost {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.AuthURL = viper.GetString("spotify-auth-url")
	cfg.Spotify.TokenURL = viper.GetString("spotify-token-url")
	cfg.Spotify.APIBaseURL = viper.GetString("spotify-api-base-url")
	cfg.Spotify.DeviceName = viper.GetString("spotify-device-name")
	cfg.Spotify.VerifierLength = viper.GetInt("spotify-verifier-length")
	cfg.Spotify.OpenBrowser = viper.GetBool("open-browser")

	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")
	if cfg.Spotify.RedirectURL == "" {
		cfg.Spotify.RedirectURL = localOrigin(cfg) + "/callback"
	}
}

func configureLookup(cfg *core.Config) {
	cfg.Lookup.BaseURL = viper.GetString("lookup-base-url")
	if cfg.Lookup.BaseURL == "" {
		cfg.Lookup.BaseURL = localOrigin(cfg)
	}
}

func configureStorage(cfg *core.Config) {
	cfg.Storage.Driver = viper.GetString("storage-driver")
	cfg.Storage.Path = viper.GetString("storage-path")
	if cfg.Storage.Path == "" {
		switch cfg.Storage.Driver {
		case "file":
			cfg.Storage.Path = "./songseeker_credentials.json"
		case "sqlite":
			cfg.Storage.Path = "./songseeker.db"
		}
	}
}

func configurePlayback(cfg *core.Config) {
	cfg.Playback.WindowSecs = viper.GetInt("playback-window-secs")
	cfg.Playback.SettleDelayMs = viper.GetInt("playback-settle-delay-ms")
	cfg.Playback.DevicePollIntervalSecs = viper.GetInt("device-poll-interval-secs")
	cfg.Playback.RandomPlayback = viper.GetBool("random-playback")
	cfg.Playback.Autoplay = viper.GetBool("autoplay")
}

func configureScanner(cfg *core.Config) {
	cfg.Scanner.Source = viper.GetString("scanner-source")
	// Scanning from stdin stays on between cards.
	cfg.Scanner.Continuous = cfg.Scanner.Source == "stdin"
	cfg.Scanner.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")
	if cfg.Scanner.FloodLimitPerMinute <= 0 {
		cfg.Scanner.FloodLimitPerMinute = core.DefaultScanFloodLimitPerMinute
	}
	cfg.Scanner.DiagnosticsSize = viper.GetInt("diagnostics-size")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}

	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runSongSeeker(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting SongSeeker",
		zap.String("version", version),
		zap.String("device", config.Spotify.DeviceName),
		zap.String("scanner_source", config.Scanner.Source),
		zap.String("storage", config.Storage.Driver))

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices()
	if err != nil {
		return err
	}
	defer svcs.close()

	return runServices(ctx, svcs)
}

type services struct {
	kv         store.KV
	flow       *auth.Flow
	controller *playback.Controller
	dispatcher *core.Dispatcher
	httpServer *httpserver.Server
	floodgate  *flood.Floodgate
}

func initializeServices() (*services, error) {
	kv, err := store.Open(&config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential storage: %w", err)
	}
	credentials := store.NewCredentialStore(kv)

	metrics := httpserver.NewMetrics()

	manager := musiclink.NewManager(config.Lookup.BaseURL,
		musiclink.WithFetchObserver(metrics.RecordLookupFetch))
	resolver := core.NewMusicLinkManagerAdapter(manager)

	spotifyClient := spotify.NewClient(&config.Spotify, credentials, logger.Named("spotify"))
	device := spotify.NewConnectDevice(spotifyClient, config.Spotify.DeviceName,
		time.Duration(config.Playback.DevicePollIntervalSecs)*time.Second, logger.Named("device"))

	feed := createScanner()

	// The server is both the login URL sink and a consumer of the flow, so the
	// navigator resolves it lazily.
	var httpServer *httpserver.Server
	navigators := auth.MultiNavigator{
		auth.NavigatorFunc(func(ctx context.Context, authorizeURL string) error {
			return httpServer.Navigate(ctx, authorizeURL)
		}),
	}
	if config.Spotify.OpenBrowser {
		navigators = append(navigators, auth.NewBrowserNavigator(logger.Named("browser")))
	}
	flow := auth.NewFlow(&config.Spotify, credentials, navigators, logger.Named("auth"))

	controller := playback.NewController(device, spotifyClient, flow, credentials,
		&config.Playback, logger.Named("playback"))
	dispatcher := core.NewDispatcher(config, feed, resolver, controller, logger.Named("dispatcher"))
	floodgate := flood.New(config.Scanner.FloodLimitPerMinute)

	httpServer = httpserver.NewServer(config, httpserver.Options{
		Auth:      flow,
		Player:    controller,
		Scans:     dispatcher,
		Submitter: feed,
		Floodgate: floodgate,
	}, metrics, logger.Named("http"))
	dispatcher.SetListener(httpServer.OnScan)

	return &services{
		kv:         kv,
		flow:       flow,
		controller: controller,
		dispatcher: dispatcher,
		httpServer: httpServer,
		floodgate:  floodgate,
	}, nil
}

// feedScanner is a scanner that also accepts codes decoded by the browser.
type feedScanner interface {
	core.Scanner
	Submit(text string) error
}

func createScanner() feedScanner {
	if config.Scanner.Source == "stdin" {
		logger.Info("Reading decoded codes from standard input")
		return scanner.NewLineScanner(os.Stdin, logger.Named("scanner"))
	}
	return scanner.NewFeedScanner(scanner.DefaultBuffer, logger.Named("scanner"))
}

func (s *services) close() {
	s.dispatcher.Cancel()
	s.controller.Close()
	s.floodgate.Stop()
	if err := s.kv.Close(); err != nil {
		logger.Debug("Failed to close credential storage", zap.Error(err))
	}
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	if config.Scanner.Source == "stdin" {
		g.Go(func() error {
			return svcs.dispatcher.Start(gCtx)
		})
		g.Go(func() error {
			connectPlayer(gCtx, svcs)
			return nil
		})
	}

	logger.Info("SongSeeker started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)),
		zap.String("redirect_url", config.Spotify.RedirectURL))

	if err := g.Wait(); err != nil {
		logger.Error("SongSeeker stopped with error", zap.Error(err))
		return err
	}

	logger.Info("SongSeeker stopped gracefully")
	return nil
}

// connectPlayer brings the playback device up for terminal sessions, where
// nobody presses the connect button in the web page.
func connectPlayer(ctx context.Context, svcs *services) {
	if err := svcs.flow.EnsureAuthenticated(ctx); err != nil {
		logger.Warn("Spotify authorization pending", zap.Error(err))
		return
	}
	if !svcs.flow.Authenticated() {
		logger.Info("Open the login URL to authorize Spotify, then connect from the web page")
		return
	}
	if err := svcs.controller.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Failed to connect playback device", zap.Error(err))
	}
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

type envSection struct {
	title string
	flags []string
}

var envSections = []envSection{
	{"Spotify (required)", []string{
		"spotify-client-id", "spotify-redirect-url", "spotify-device-name",
		"spotify-verifier-length", "open-browser",
	}},
	{"Spotify endpoint overrides", []string{
		"spotify-auth-url", "spotify-token-url", "spotify-api-base-url",
	}},
	{"Hitster lookup tables", []string{"lookup-base-url"}},
	{"Credential storage", []string{"storage-driver", "storage-path"}},
	{"Playback", []string{
		"playback-window-secs", "playback-settle-delay-ms", "device-poll-interval-secs",
		"random-playback", "autoplay",
	}},
	{"Scanner", []string{"scanner-source", "flood-limit-per-minute", "diagnostics-size"}},
	{"HTTP server", []string{"server-host", "server-port", "static-dir", "notice-ttl-secs", "trust-proxy"}},
	{"Logging and localization", []string{"log-level", "language"}},
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# SongSeeker Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value, CLI equivalent: --<setting>\n", envPrefix)
	content.WriteString("#\n\n")

	for _, section := range envSections {
		content.WriteString("# -----------------------------------------------------------------------------\n")
		fmt.Fprintf(&content, "# %s\n", section.title)
		content.WriteString("# -----------------------------------------------------------------------------\n")
		for _, name := range section.flags {
			f := cmd.PersistentFlags().Lookup(name)
			if f == nil {
				continue
			}
			fmt.Fprintf(&content, "# %s\n", f.Usage)
			fmt.Fprintf(&content, "%s=%s\n", flagToEnvVar(name), f.DefValue)
		}
		content.WriteString("\n")
	}

	content.WriteString("# Register the redirect URL (default http://localhost:8000/callback) with your\n")
	content.WriteString("# app at https://developer.spotify.com/dashboard. Playback needs Spotify Premium.\n")

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
