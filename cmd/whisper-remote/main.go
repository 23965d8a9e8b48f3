package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-remote/internal/api"
	"github.com/snarg/whisper-remote/internal/config"
	"github.com/snarg/whisper-remote/internal/database"
	"github.com/snarg/whisper-remote/internal/live"
	"github.com/snarg/whisper-remote/internal/metrics"
	"github.com/snarg/whisper-remote/internal/mqttclient"
	"github.com/snarg/whisper-remote/internal/storage"
	"github.com/snarg/whisper-remote/internal/transcribe"
	"github.com/snarg/whisper-remote/internal/watch"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	startTime := time.Now()

	var (
		envFile     string
		remoteURL   string
		logLevel    string
		httpAddr    string
		language    string
		task        string
		watchDir    string
		verbose     bool
		liveMode    bool
		printColors bool
		jsonOut     bool
		serve       bool
		showVersion bool
	)
	flag.StringVar(&envFile, "env-file", "", "Path to .env file (default .env)")
	flag.StringVar(&remoteURL, "url", "", "Remote transcription server URL (or REMOTE_URL)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (or LOG_LEVEL)")
	flag.StringVar(&httpAddr, "listen", "", "Relay server listen address with -serve (or HTTP_ADDR)")
	flag.StringVar(&language, "language", "", "Language code to request; empty lets the server detect it")
	flag.StringVar(&task, "task", "", "transcribe|translate (or TASK)")
	flag.StringVar(&watchDir, "watch", "", "Watch a directory and transcribe new audio files (or WATCH_DIR)")
	flag.BoolVar(&verbose, "verbose", false, "Print every segment with timestamps")
	flag.BoolVar(&liveMode, "live", false, "Suppress per-segment output and the progress bar")
	flag.BoolVar(&printColors, "print-colors", false, "Color words by confidence (requests word timestamps)")
	flag.BoolVar(&jsonOut, "json", false, "Print each result as JSON")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP relay server")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: whisper-remote [flags] <audio|s3://bucket/key>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return 0
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	overrides := config.Overrides{
		EnvFile:   envFile,
		RemoteURL: remoteURL,
		LogLevel:  logLevel,
		HTTPAddr:  httpAddr,
		Language:  language,
		Task:      task,
		WatchDir:  watchDir,
	}
	if set["verbose"] {
		overrides.Verbose = &verbose
	}
	if set["live"] {
		overrides.Live = &liveMode
	}
	if set["print-colors"] {
		overrides.PrintColors = &printColors
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Error().Err(err).Msg("failed to load config")
		return 1
	}

	// Logger: stdout carries transcripts, so logs go to stderr.
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	log.Debug().Str("version", version).Str("remote", cfg.RemoteURL).Msg("whisper-remote starting")

	// Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: version,
		}); err != nil {
			log.Warn().Err(err).Msg("sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sanitize, err := transcribe.NewSanitizer(cfg.OutputEncoding)
	if err != nil {
		log.Error().Err(err).Msg("unsupported output encoding")
		return 1
	}

	sources, err := storage.New(cfg.S3, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize audio sources")
		return 1
	}

	var observers []transcribe.Observer

	// Database
	var db *database.DB
	var recorder *database.Recorder
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, database.Options{
			URL:         cfg.DatabaseURL,
			MaxConns:    cfg.DatabaseMaxConns,
			MinConns:    cfg.DatabaseMinConns,
			PingTimeout: cfg.DatabasePingTimeout,
			Log:         dbLog,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to database")
			sentry.CaptureException(err)
			return 1
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			log.Error().Err(err).Msg("failed to prepare schema")
			return 1
		}
		recorder = database.NewRecorder(db, cfg.RemoteURL, dbLog)
		observers = append(observers, recorder)
	}

	// MQTT
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to mqtt broker")
			return 1
		}
		defer mqtt.Close()
		observers = append(observers, mqttclient.NewPublisher(mqtt, cfg.MQTTTopicPrefix, mqttLog))
	}

	connector := transcribe.NewConnector(cfg.RemoteURL,
		transcribe.WithTimeout(cfg.RemoteTimeout),
		transcribe.WithFieldName(cfg.AudioField),
	)

	if !serve && cfg.WatchDir == "" {
		if flag.NArg() == 0 {
			flag.Usage()
			return 2
		}
		return transcribeFiles(ctx, cfg, connector, sources, recorder, observers, sanitize, jsonOut, flag.Args(), log)
	}

	return runDaemon(ctx, daemon{
		cfg:       cfg,
		connector: connector,
		sources:   sources,
		recorder:  recorder,
		observers: observers,
		db:        db,
		mqtt:      mqtt,
		serve:     serve,
		startTime: startTime,
		log:       log,
	})
}

// transcribeFiles handles the one-shot CLI mode. It returns 1 when any
// input yields no result.
func transcribeFiles(
	ctx context.Context,
	cfg *config.Config,
	connector *transcribe.Connector,
	sources *storage.Sources,
	recorder *database.Recorder,
	observers []transcribe.Observer,
	sanitize transcribe.Sanitizer,
	jsonOut bool,
	refs []string,
	log zerolog.Logger,
) int {
	// In JSON mode the human-readable lines move to stderr.
	var displayOut io.Writer = os.Stdout
	if jsonOut {
		displayOut = os.Stderr
	}

	var progress transcribe.ProgressSink = transcribe.NopProgress
	if !cfg.Verbose && !cfg.Live {
		progress = newBarProgress(os.Stderr, 40)
	}

	client := transcribe.NewClient(connector, transcribe.ClientOptions{
		Display:   transcribe.NewDisplay(displayOut, sanitize),
		Progress:  progress,
		Observers: observers,
		Log:       log,
	})

	failed := 0
	var present []string
	for _, ref := range refs {
		if !sources.Exists(ctx, ref) {
			log.Error().Str("input", ref).Msg("audio input not found")
			failed++
			continue
		}
		present = append(present, ref)
	}

	for _, ref := range present {
		if ctx.Err() != nil {
			failed++
			continue
		}
		res, err := transcribeRef(ctx, client, sources, recorder, ref, transcribe.Options{
			Verbose:     cfg.Verbose,
			Live:        cfg.Live,
			PrintColors: cfg.PrintColors,
			Request:     cfg.RequestOptions(),
		})
		if err != nil {
			failed++
			var connErr *transcribe.ConnectionError
			if errors.As(err, &connErr) {
				fmt.Fprintln(os.Stderr, sanitize(connErr.Error()))
			} else {
				log.Error().Err(err).Str("input", ref).Msg("transcription failed")
			}
			continue
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			if err := enc.Encode(res); err != nil {
				log.Error().Err(err).Msg("failed to write result")
				failed++
			}
		} else if !cfg.Verbose && !cfg.PrintColors {
			fmt.Fprintln(os.Stdout, sanitize(res.Text))
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

// transcribeRef opens one audio reference and runs it through the client.
func transcribeRef(
	ctx context.Context,
	client *transcribe.Client,
	sources *storage.Sources,
	recorder *database.Recorder,
	ref string,
	opts transcribe.Options,
) (*transcribe.Result, error) {
	rc, name, err := sources.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if opts.JobID == "" {
		opts.JobID = uuid.NewString()
	}
	if recorder != nil {
		recorder.Track(opts.JobID, ref)
	}
	return client.Transcribe(ctx, transcribe.Payload{Name: name, Body: rc}, opts)
}

type daemon struct {
	cfg       *config.Config
	connector *transcribe.Connector
	sources   *storage.Sources
	recorder  *database.Recorder
	observers []transcribe.Observer
	db        *database.DB
	mqtt      *mqttclient.Client
	serve     bool
	startTime time.Time
	log       zerolog.Logger
}

// runDaemon runs the relay server and/or the directory watcher until a
// shutdown signal arrives.
func runDaemon(ctx context.Context, d daemon) int {
	bus := live.NewEventBus(1024)
	observers := append([]transcribe.Observer{bus}, d.observers...)
	client := transcribe.NewClient(d.connector, transcribe.ClientOptions{
		Observers: observers,
		Log:       d.log.With().Str("component", "client").Logger(),
	})

	var pool *pgxpool.Pool
	if d.db != nil {
		pool = d.db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(pool, bus))

	// Watcher
	var watcher *watch.Watcher
	if d.cfg.WatchDir != "" {
		req := d.cfg.RequestOptions()
		watcher = watch.New(watch.Options{
			Dir:        d.cfg.WatchDir,
			Extensions: d.cfg.WatchExtensions,
			Backfill:   d.cfg.WatchBackfill,
			Log:        d.log,
		}, func(ctx context.Context, path string) error {
			_, err := transcribeRef(ctx, client, d.sources, d.recorder, path, transcribe.Options{
				Live:    true,
				Request: req,
			})
			if err != nil {
				sentry.CaptureException(err)
			}
			return err
		})
		if err := watcher.Start(ctx); err != nil {
			d.log.Error().Err(err).Str("dir", d.cfg.WatchDir).Msg("failed to start file watcher")
			return 1
		}
		defer watcher.Stop()
	}

	if !d.serve {
		<-ctx.Done()
		d.log.Info().Msg("shutdown signal received")
		return 0
	}

	// HTTP Server
	opts := api.ServerOptions{
		Config:      d.cfg,
		Transcriber: client,
		Live:        bus,
		Version:     version,
		StartTime:   d.startTime,
		Log:         d.log.With().Str("component", "http").Logger(),
	}
	if d.recorder != nil {
		opts.Tracker = d.recorder
	}
	if d.db != nil {
		opts.DB = d.db
	}
	if d.mqtt != nil {
		opts.MQTT = d.mqtt
	}
	if watcher != nil {
		opts.Watcher = watcher.Status
	}
	srv := api.NewServer(opts)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	code := 0
	select {
	case <-ctx.Done():
		d.log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			d.log.Error().Err(err).Msg("http server error")
			code = 1
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.log.Error().Err(err).Msg("http server shutdown error")
	}

	d.log.Info().Msg("whisper-remote stopped")
	return code
}
