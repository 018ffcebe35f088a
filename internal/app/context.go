package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/mic-spectrum/configs"
	"github.com/RyanBlaney/mic-spectrum/internal/metrics"
	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
	"github.com/RyanBlaney/mic-spectrum/pkg/capture"
	"github.com/RyanBlaney/mic-spectrum/pkg/sink"
)

// Context holds the application context and configuration
type Context struct {
	// CLI overrides; zero values leave the loaded configuration alone
	Backend     string
	SinkType    string
	Format      string
	Listen      string
	MetricsAddr string
	Duration    time.Duration
	Summary     bool

	// Runtime context
	Logger   logging.Logger
	Config   *configs.Config
	Registry *capture.Registry
	Out      io.Writer
}

// CaptureApp handles the capture pipeline lifecycle
type CaptureApp struct {
	ctx      *Context
	config   *configs.Config
	registry *capture.Registry
	out      io.Writer
	logger   logging.Logger

	// bound listener addresses, set once the servers are up
	wsAddr      chan net.Addr
	metricsAddr chan net.Addr
}

// NewCaptureApp creates a new capture application. When ctx.Config is nil
// the configuration is loaded from viper.
func NewCaptureApp(ctx *Context) (*CaptureApp, error) {
	logger := setupLogging(ctx)
	ctx.Logger = logger

	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	registry := ctx.Registry
	if registry == nil {
		registry = NewRegistry(config)
	}
	out := ctx.Out
	if out == nil {
		out = os.Stdout
	}

	logger.Debug("Capture application initialized", logging.Fields{
		"backend":  config.Capture.Backend,
		"sink":     config.Sink.Type,
		"format":   config.Sink.Format,
		"duration": config.Capture.Duration.String(),
		"metrics":  config.Metrics.Enabled,
	})

	return &CaptureApp{
		ctx:         ctx,
		config:      config,
		registry:    registry,
		out:         out,
		logger:      logger,
		wsAddr:      make(chan net.Addr, 1),
		metricsAddr: make(chan net.Addr, 1),
	}, nil
}

// NewRegistry returns a registry holding the backends that need no native
// libraries. Callers add hardware backends on top.
func NewRegistry(config *configs.Config) *capture.Registry {
	registry := capture.NewRegistry()

	tone := config.Capture.Tone
	_ = registry.Register("tone", func() (capture.Backend, error) {
		return capture.NewToneBackend(&capture.ToneConfig{
			Frequency:       tone.Frequency,
			Amplitude:       tone.Amplitude,
			SampleRate:      tone.SampleRate,
			Channels:        tone.Channels,
			FramesPerBuffer: config.Capture.FramesPerBuffer,
		}), nil
	})
	return registry
}

// Config returns the effective configuration
func (app *CaptureApp) Config() *configs.Config {
	return app.config
}

// WebSocketAddr blocks until the websocket server is listening and returns its address
func (app *CaptureApp) WebSocketAddr(ctx context.Context) (net.Addr, error) {
	return waitAddr(ctx, app.wsAddr)
}

// MetricsAddr blocks until the metrics server is listening and returns its address
func (app *CaptureApp) MetricsAddr(ctx context.Context) (net.Addr, error) {
	return waitAddr(ctx, app.metricsAddr)
}

func waitAddr(ctx context.Context, ch chan net.Addr) (net.Addr, error) {
	select {
	case addr := <-ch:
		ch <- addr
		return addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run captures until ctx is done or the configured duration elapses.
// Startup failures such as a missing input device are returned as is.
func (app *CaptureApp) Run(ctx context.Context) error {
	if app.config.Capture.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Capture.Duration)
		defer cancel()
	}

	backend, err := app.registry.Create(app.config.Capture.Backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			app.logger.Error(err, "Failed to release capture backend")
		}
	}()

	var recorder capture.Recorder
	var provider *metrics.Provider
	if app.config.Metrics.Enabled {
		provider, err = metrics.NewProvider()
		if err != nil {
			return err
		}
		defer provider.Shutdown(context.Background())

		pipeline, err := metrics.NewPipeline(provider)
		if err != nil {
			return fmt.Errorf("failed to create pipeline metrics: %w", err)
		}
		recorder = pipeline
	}

	transform, err := transformFactory(app.config.Capture.Transform)
	if err != nil {
		return err
	}

	handoff := sink.NewChannel(app.config.Sink.Buffer)
	driver, err := capture.NewDriver(backend, handoff,
		capture.WithLogger(app.logger.WithFields(logging.Fields{
			"component": "capture_driver",
			"backend":   backend.Name(),
		})),
		capture.WithRecorder(recorder),
		capture.WithFramesPerBuffer(app.config.Capture.FramesPerBuffer),
		capture.WithTransform(transform),
		capture.WithStallTimeout(app.config.Capture.StallTimeout),
	)
	if err != nil {
		return err
	}

	session, err := driver.Start(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	var servers []*http.Server

	downstream, err := app.downstream(session)
	if err != nil {
		_ = session.Stop()
		return err
	}

	if ws, ok := downstream.(*sink.WebSocket); ok {
		mux := http.NewServeMux()
		mux.Handle(app.config.Sink.WebSocket.Path, ws)
		srv, err := app.serve(gctx, g, "websocket", app.config.Sink.WebSocket.Listen, mux, app.wsAddr)
		if err != nil {
			_ = session.Stop()
			return err
		}
		servers = append(servers, srv)
	}

	if provider != nil {
		mux := http.NewServeMux()
		mux.Handle(app.config.Metrics.Path, provider.Handler())
		srv, err := app.serve(gctx, g, "metrics", app.config.Metrics.Listen, mux, app.metricsAddr)
		if err != nil {
			_ = session.Stop()
			app.shutdown(servers)
			_ = g.Wait()
			return err
		}
		servers = append(servers, srv)
	}

	g.Go(func() error {
		return handoff.Forward(gctx, downstream)
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-session.Done():
		}

		stopErr := session.Stop()
		_ = handoff.Close()

		app.shutdown(servers)
		return stopErr
	})

	err = g.Wait()
	if closer, ok := downstream.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			app.logger.Error(cerr, "Failed to flush spectrum output")
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	app.logger.Info("Capture finished", logging.Fields{
		"frames":        session.Frames(),
		"status_events": session.StatusEvents(),
		"queued":        handoff.Sent(),
		"dropped":       handoff.Dropped(),
	})
	if streamErr := session.Err(); streamErr != nil {
		app.logger.Warn("Input stream reported errors during capture", logging.Fields{
			"error": streamErr.Error(),
		})
	}

	return err
}

func (app *CaptureApp) shutdown(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			app.logger.Warn("Server shutdown failed", logging.Fields{
				"addr":  srv.Addr,
				"error": err.Error(),
			})
		}
	}
}

// downstream builds the sink that receives frames off the audio thread
func (app *CaptureApp) downstream(session *capture.Session) (sink.Sink, error) {
	switch app.config.Sink.Type {
	case "websocket":
		wsCfg := app.config.Sink.WebSocket
		return sink.NewWebSocket(&sink.WebSocketConfig{
			ClientBuffer:   wsCfg.ClientBuffer,
			WriteTimeout:   wsCfg.WriteTimeout,
			OriginPatterns: wsCfg.OriginPatterns,
		}), nil

	case "stdout", "":
		format, err := sink.ParseFormat(app.config.Sink.Format)
		if err != nil {
			return nil, err
		}
		var opts []sink.WriterOption
		if app.config.Sink.Summary {
			opts = append(opts, sink.WithSummary(session.SampleRate()))
		}
		return sink.NewWriter(app.out, format, opts...)

	default:
		return nil, fmt.Errorf("unsupported sink type: %s", app.config.Sink.Type)
	}
}

// serve starts an HTTP server in g. Request contexts derive from ctx so
// long-lived websocket handlers end with the group.
func (app *CaptureApp) serve(ctx context.Context, g *errgroup.Group, name, addr string, handler http.Handler, bound chan net.Addr) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for %s on %s: %w", name, addr, err)
	}
	bound <- ln.Addr()

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	app.logger.Info("Server listening", logging.Fields{
		"server": name,
		"addr":   srv.Addr,
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
	return srv, nil
}

func transformFactory(name string) (audio.TransformFactory, error) {
	switch name {
	case "plan", "":
		return audio.NewPlanTransform, nil
	case "radix":
		return audio.NewRadixTransform, nil
	default:
		return nil, fmt.Errorf("unsupported transform: %s", name)
	}
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	if ctx.Logger != nil {
		return ctx.Logger
	}
	return logging.NewDefaultLogger()
}

// loadAndMergeConfig loads configuration and applies CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config := ctx.Config
	if config == nil {
		loaded, err := configs.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load base configuration: %w", err)
		}
		config = loaded
	}

	if ctx.Backend != "" {
		config.Capture.Backend = ctx.Backend
	}
	if ctx.SinkType != "" {
		config.Sink.Type = ctx.SinkType
	}
	if ctx.Format != "" {
		config.Sink.Format = ctx.Format
	}
	if ctx.Listen != "" {
		config.Sink.WebSocket.Listen = ctx.Listen
	}
	if ctx.MetricsAddr != "" {
		config.Metrics.Enabled = true
		config.Metrics.Listen = ctx.MetricsAddr
	}
	if ctx.Duration > 0 {
		config.Capture.Duration = ctx.Duration
	}
	if ctx.Summary {
		config.Sink.Summary = true
	}

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
