package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/mic-spectrum/configs"
	"github.com/RyanBlaney/mic-spectrum/internal/app"
	"github.com/RyanBlaney/mic-spectrum/pkg/capture"
	"github.com/RyanBlaney/mic-spectrum/pkg/capture/portaudio"
)

var (
	// Capture command flags
	captureBackend     string
	captureSink        string
	captureFormat      string
	captureListen      string
	captureMetricsAddr string
	captureDuration    time.Duration
	captureSummary     bool
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the default input device and publish its spectrum",
	Long: `Open the system default input device with its default configuration and
publish one "audio-data" event per 1024 captured samples until interrupted.

Only the first channel of multi-channel input is analyzed.

Examples:
  # Print JSON lines to stdout
  mic-spectrum capture

  # Run without hardware using the synthetic tone
  mic-spectrum capture --backend tone --duration 5s

  # Broadcast to websocket clients and expose Prometheus metrics
  mic-spectrum capture --sink websocket --listen 127.0.0.1:8765 --metrics-addr 127.0.0.1:9464

  # Human-readable YAML with peak, centroid and rolloff per frame
  mic-spectrum capture --format yaml --summary`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVar(&captureBackend, "backend", "",
		"capture backend (portaudio, tone)")
	captureCmd.Flags().StringVar(&captureSink, "sink", "",
		"spectrum sink (stdout, websocket)")
	captureCmd.Flags().StringVarP(&captureFormat, "format", "f", "",
		"stdout format (json, yaml)")
	captureCmd.Flags().StringVar(&captureListen, "listen", "",
		"websocket listen address")
	captureCmd.Flags().StringVar(&captureMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address")
	captureCmd.Flags().DurationVarP(&captureDuration, "duration", "d", 0,
		"stop after this long (0 runs until interrupted)")
	captureCmd.Flags().BoolVar(&captureSummary, "summary", false,
		"add peak, centroid and rolloff to each stdout event")
}

func runCapture(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	registry := app.NewRegistry(config)
	if err := portaudio.Register(registry); err != nil {
		return err
	}

	captureApp, err := app.NewCaptureApp(&app.Context{
		Backend:     captureBackend,
		SinkType:    captureSink,
		Format:      captureFormat,
		Listen:      captureListen,
		MetricsAddr: captureMetricsAddr,
		Duration:    captureDuration,
		Summary:     captureSummary,
		Config:      config,
		Registry:    registry,
		Out:         os.Stdout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := captureApp.Run(ctx); err != nil {
		switch {
		case errors.Is(err, capture.ErrNoDeviceFound):
			return fmt.Errorf("no audio input device found: %w", err)
		case errors.Is(err, capture.ErrUnsupportedConfiguration):
			return fmt.Errorf("the default input device cannot be captured with its default configuration: %w", err)
		}
		return err
	}
	return nil
}
