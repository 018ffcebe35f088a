package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/mic-spectrum/configs"
)

var configTestYAML bool

// configTestCmd represents the config test command
var configTestCmd = &cobra.Command{
	Use:   "config-test",
	Short: "Test and display all configuration values",
	Long: `Test configuration loading and display all values to verify proper parsing.

This command loads the configuration, validates it and displays the effective
values so you can check how your YAML file and MIC_SPECTRUM_* environment
variables were applied.

Examples:
  # Test with default config file
  mic-spectrum config-test

  # Dump the effective configuration as YAML
  mic-spectrum config-test --yaml > mic-spectrum.yaml

  # Test with specific config file
  mic-spectrum --config /path/to/config.yaml config-test`,
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configTestCmd)

	configTestCmd.Flags().BoolVar(&configTestYAML, "yaml", false,
		"print the effective configuration as YAML")
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configTestYAML {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		return enc.Close()
	}

	fmt.Println("MIC SPECTRUM CONFIGURATION TEST")
	fmt.Println(strings.Repeat("=", 80))
	printKeyValue("Config File", getConfigFilePath())

	printSection("APPLICATION SETTINGS")
	printKeyValue("Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue("Log Level", config.LogLevel)

	printSection("CAPTURE CONFIGURATION")
	printKeyValue("Backend", config.Capture.Backend)
	printKeyValue("Frames Per Buffer", framesPerBuffer(config.Capture.FramesPerBuffer))
	printKeyValue("Transform", config.Capture.Transform)
	printKeyValue("Duration", durationOrForever(config.Capture))
	printKeyValue("Stall Timeout", stallTimeout(config.Capture.StallTimeout))

	printSubsection("Tone")
	printKeyValue("  Frequency", fmt.Sprintf("%.1f Hz", config.Capture.Tone.Frequency))
	printKeyValue("  Amplitude", fmt.Sprintf("%.3f", config.Capture.Tone.Amplitude))
	printKeyValue("  Sample Rate", fmt.Sprintf("%.0f Hz", config.Capture.Tone.SampleRate))
	printKeyValue("  Channels", fmt.Sprintf("%d", config.Capture.Tone.Channels))

	printSection("SINK CONFIGURATION")
	printKeyValue("Type", config.Sink.Type)
	printKeyValue("Format", config.Sink.Format)
	printKeyValue("Buffer", fmt.Sprintf("%d frames", config.Sink.Buffer))
	printKeyValue("Summary", fmt.Sprintf("%t", config.Sink.Summary))

	printSubsection("WebSocket")
	printKeyValue("  Listen", config.Sink.WebSocket.Listen)
	printKeyValue("  Path", config.Sink.WebSocket.Path)
	printKeyValue("  Client Buffer", fmt.Sprintf("%d frames", config.Sink.WebSocket.ClientBuffer))
	printKeyValue("  Write Timeout", config.Sink.WebSocket.WriteTimeout.String())
	printKeyValue("  Origin Patterns", fmt.Sprintf("(%d) %v", len(config.Sink.WebSocket.OriginPatterns), config.Sink.WebSocket.OriginPatterns))

	printSection("METRICS CONFIGURATION")
	printKeyValue("Enabled", fmt.Sprintf("%t", config.Metrics.Enabled))
	printKeyValue("Listen", config.Metrics.Listen)
	printKeyValue("Path", config.Metrics.Path)

	printSection("VALIDATION")
	if err := configs.ValidateConfig(config); err != nil {
		printKeyValue("Status", "INVALID")
		printKeyValue("Error", err.Error())
		return err
	}
	printKeyValue("Status", "OK")
	return nil
}

func framesPerBuffer(n int) string {
	if n == 0 {
		return "backend default"
	}
	return fmt.Sprintf("%d", n)
}

func stallTimeout(d time.Duration) string {
	switch {
	case d == 0:
		return "derived from buffer size"
	case d < 0:
		return "disabled"
	}
	return d.String()
}

func durationOrForever(c configs.CaptureConfig) string {
	if c.Duration == 0 {
		return "until interrupted"
	}
	return c.Duration.String()
}

func printSection(title string) {
	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", len(title)))
}

func printSubsection(title string) {
	fmt.Printf("\n  %s\n", title)
}

func printKeyValue(key, value string) {
	if value == "" {
		fmt.Printf("%-35s\n", key)
	} else {
		fmt.Printf("%-35s %s\n", key+":", value)
	}
}

func getConfigFilePath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return "(defaults only)"
}
