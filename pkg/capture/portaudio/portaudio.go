// Package portaudio binds the capture driver to the system audio subsystem
// through PortAudio.
package portaudio

import (
	"fmt"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/mic-spectrum/pkg/capture"
)

// Name is the registry name of this backend
const Name = "portaudio"

// Backend is a capture.Backend built on PortAudio. PortAudio is initialized
// in New and terminated in Close.
type Backend struct {
	logger logging.Logger
}

// New initializes PortAudio and returns the backend
func New() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "portaudio_backend",
	})
	logger.Debug("PortAudio initialized", logging.Fields{
		"version": portaudio.VersionText(),
	})

	return &Backend{logger: logger}, nil
}

// Factory adapts New to capture.BackendFactory
func Factory() (capture.Backend, error) {
	return New()
}

// Register adds the backend to registry under Name
func Register(registry *capture.Registry) error {
	return registry.Register(Name, Factory)
}

// Name returns "portaudio"
func (b *Backend) Name() string { return Name }

// Devices lists devices with at least one input channel
func (b *Backend) Devices() ([]*capture.Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	def, _ := portaudio.DefaultInputDevice()

	var devices []*capture.Device
	for i, info := range infos {
		if info.MaxInputChannels == 0 {
			continue
		}
		dev := toDevice(info, i)
		dev.IsDefault = sameDevice(def, info)
		devices = append(devices, dev)
	}
	return devices, nil
}

// DefaultInputDevice returns the system default input device
func (b *Backend) DefaultInputDevice() (*capture.Device, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil || info == nil {
		return nil, capture.NewCaptureError(capture.ErrCodeNoDevice, Name, "",
			"no input device available", err)
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	index := -1
	for i, candidate := range infos {
		if sameDevice(info, candidate) {
			index = i
			break
		}
	}

	dev := toDevice(info, index)
	dev.IsDefault = true
	return dev, nil
}

// DefaultInputConfig returns the device's native channel count, default
// sample rate and low input latency, provided PortAudio accepts it for
// float32 capture.
func (b *Backend) DefaultInputConfig(dev *capture.Device) (capture.StreamConfig, error) {
	info, err := b.lookup(dev)
	if err != nil {
		return capture.StreamConfig{}, err
	}

	cfg := capture.StreamConfig{
		Channels:   info.MaxInputChannels,
		SampleRate: info.DefaultSampleRate,
		Latency:    info.DefaultLowInputLatency,
	}

	params := parameters(info, cfg)
	if err := portaudio.IsFormatSupported(params, func([]float32) {}); err != nil {
		return capture.StreamConfig{}, fmt.Errorf("float32 input at %.0f Hz with %d channels is not supported: %w",
			cfg.SampleRate, cfg.Channels, err)
	}
	return cfg, nil
}

// OpenInput opens a callback stream delivering interleaved float32 samples
func (b *Backend) OpenInput(dev *capture.Device, cfg capture.StreamConfig, handler capture.StreamHandler) (capture.Stream, error) {
	if handler.OnData == nil {
		return nil, fmt.Errorf("input stream requires a data handler")
	}
	info, err := b.lookup(dev)
	if err != nil {
		return nil, err
	}

	onData := handler.OnData
	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		onData(in, statusFlags(flags))
	}

	stream, err := portaudio.OpenStream(parameters(info, cfg), callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	b.logger.Debug("Input stream opened", logging.Fields{
		"device":      info.Name,
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
		"latency":     cfg.Latency.String(),
	})
	return stream, nil
}

// Close terminates PortAudio
func (b *Backend) Close() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return nil
}

func (b *Backend) lookup(dev *capture.Device) (*portaudio.DeviceInfo, error) {
	if dev == nil {
		return nil, capture.ErrNoDeviceFound
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return findDevice(infos, dev)
}

// findDevice resolves dev against a device listing. The listing position
// must still hold a device with the same name and host API; otherwise the
// device is searched for by name and host API.
func findDevice(infos []*portaudio.DeviceInfo, dev *capture.Device) (*portaudio.DeviceInfo, error) {
	if dev.Index >= 0 && dev.Index < len(infos) && matches(infos[dev.Index], dev) {
		return infos[dev.Index], nil
	}
	for _, info := range infos {
		if matches(info, dev) {
			return info, nil
		}
	}
	return nil, capture.NewCaptureError(capture.ErrCodeNoDevice, Name, dev.Name,
		"input device disappeared", nil)
}

func hostAPIName(info *portaudio.DeviceInfo) string {
	if info.HostApi == nil {
		return ""
	}
	return info.HostApi.Name
}

func matches(info *portaudio.DeviceInfo, dev *capture.Device) bool {
	return info != nil && info.Name == dev.Name && hostAPIName(info) == dev.HostAPI
}

func sameDevice(a, b *portaudio.DeviceInfo) bool {
	return a != nil && b != nil && a.Name == b.Name && hostAPIName(a) == hostAPIName(b)
}

func parameters(info *portaudio.DeviceInfo, cfg capture.StreamConfig) portaudio.StreamParameters {
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = portaudio.FramesPerBufferUnspecified
	}
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: cfg.Channels,
			Latency:  cfg.Latency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: frames,
	}
}

// toDevice maps info to a capture.Device. index is the device's position in
// portaudio.Devices(), or -1 when unknown.
func toDevice(info *portaudio.DeviceInfo, index int) *capture.Device {
	return &capture.Device{
		Index:             index,
		Name:              info.Name,
		HostAPI:           hostAPIName(info),
		MaxInputChannels:  info.MaxInputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
		DefaultLatency:    info.DefaultLowInputLatency,
	}
}

func statusFlags(flags portaudio.StreamCallbackFlags) capture.StatusFlags {
	var status capture.StatusFlags
	if flags&portaudio.InputUnderflow != 0 {
		status |= capture.StatusInputUnderflow
	}
	if flags&portaudio.InputOverflow != 0 {
		status |= capture.StatusInputOverflow
	}
	return status
}
