package cmd

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/mic-spectrum/configs"
	"github.com/RyanBlaney/mic-spectrum/internal/app"
	"github.com/RyanBlaney/mic-spectrum/pkg/capture"
	"github.com/RyanBlaney/mic-spectrum/pkg/capture/portaudio"
)

var (
	devicesBackend string
	devicesOutput  string
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Long: `List the input devices a capture backend can see, together with the
configuration capture would use for the default device.

Examples:
  # List PortAudio input devices
  mic-spectrum devices

  # Inspect the synthetic tone device as JSON
  mic-spectrum devices --backend tone --output json`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVar(&devicesBackend, "backend", "",
		"capture backend (portaudio, tone)")
	devicesCmd.Flags().StringVarP(&devicesOutput, "output", "o", "table",
		"output format (json, yaml, csv, table)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	name := config.Capture.Backend
	if devicesBackend != "" {
		name = devicesBackend
	}

	registry := app.NewRegistry(config)
	if err := portaudio.Register(registry); err != nil {
		return err
	}

	backend, err := registry.Create(name)
	if err != nil {
		return err
	}
	defer backend.Close()

	report, err := describeDevices(backend)
	if err != nil {
		return err
	}

	data, err := formatterFor(devicesOutput).Format(report, true)
	if err != nil {
		return fmt.Errorf("failed to format device list: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// describeDevices lists the backend's devices and the default input configuration
func describeDevices(backend capture.Backend) (map[string]any, error) {
	devices, err := backend.Devices()
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(devices))
	for _, dev := range devices {
		rows = append(rows, map[string]any{
			"index":               dev.Index,
			"name":                dev.Name,
			"host_api":            dev.HostAPI,
			"max_input_channels":  dev.MaxInputChannels,
			"default_sample_rate": dev.DefaultSampleRate,
			"default_latency_ms":  float64(dev.DefaultLatency.Microseconds()) / 1000,
			"default":             dev.IsDefault,
		})
	}

	report := map[string]any{
		"backend": backend.Name(),
		"devices": rows,
	}

	dev, err := backend.DefaultInputDevice()
	if err != nil {
		report["default_error"] = err.Error()
		return report, nil
	}
	cfg, err := backend.DefaultInputConfig(dev)
	if err != nil {
		report["default_error"] = err.Error()
		return report, nil
	}

	channels, err := capture.NewChannelConfig(cfg.Channels)
	if err != nil {
		report["default_error"] = err.Error()
		return report, nil
	}
	report["default_input"] = map[string]any{
		"device":           dev.Name,
		"channels":         cfg.Channels,
		"analyzed_channel": channels.Channel,
		"sample_rate":      cfg.SampleRate,
	}
	return report, nil
}

func formatterFor(format string) output.Formatter {
	switch format {
	case "json":
		return &output.JSONFormatter{}
	case "yaml":
		return &output.YAMLFormatter{}
	case "csv":
		return &output.CSVFormatter{}
	case "table":
		return &output.TableFormatter{}
	default:
		return &output.JSONFormatter{}
	}
}
