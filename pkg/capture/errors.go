package capture

// CaptureError represents capture-related errors
type CaptureError struct {
	Code    string `json:"code"`
	Backend string `json:"backend,omitempty"`
	Device  string `json:"device,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *CaptureError) Error() string {
	msg := e.Message
	if e.Device != "" {
		msg += " (device " + e.Device + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Is matches any CaptureError carrying the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeNoDevice           = "NO_DEVICE"
	ErrCodeUnsupportedConfig  = "UNSUPPORTED_CONFIG"
	ErrCodeStreamFailed       = "STREAM_FAILED"
	ErrCodeUnsupportedBackend = "UNSUPPORTED_BACKEND"
	ErrCodeAlreadyStarted     = "ALREADY_STARTED"
)

var (
	// ErrNoDeviceFound matches startup failures caused by a missing input device
	ErrNoDeviceFound = &CaptureError{Code: ErrCodeNoDevice, Message: "no input device available"}

	// ErrUnsupportedConfiguration matches startup failures where no usable input configuration could be negotiated
	ErrUnsupportedConfiguration = &CaptureError{Code: ErrCodeUnsupportedConfig, Message: "no usable input configuration"}

	// ErrStreamFailed matches runtime stream failures
	ErrStreamFailed = &CaptureError{Code: ErrCodeStreamFailed, Message: "input stream failed"}

	// ErrUnsupportedBackend matches requests for an unregistered backend
	ErrUnsupportedBackend = &CaptureError{Code: ErrCodeUnsupportedBackend, Message: "unsupported capture backend"}

	// ErrAlreadyStarted is returned when a driver is started twice
	ErrAlreadyStarted = &CaptureError{Code: ErrCodeAlreadyStarted, Message: "capture already started"}
)

// NewCaptureError creates a new capture error
func NewCaptureError(code, backend, device, message string, cause error) *CaptureError {
	return &CaptureError{
		Code:    code,
		Backend: backend,
		Device:  device,
		Message: message,
		Cause:   cause,
	}
}
