package models

import "errors"

// Capture error taxonomy. Black frames are not failures; ErrBlackFrame only
// travels inside the page context to select the fallback path.
var (
	ErrNoVideo       = errors.New("no video found on this page")
	ErrNotReady      = errors.New("video is not ready yet")
	ErrBlackFrame    = errors.New("video frame is black")
	ErrNoBounds      = errors.New("video bounds unavailable")
	ErrCaptureDenied = errors.New("viewport capture denied")
	ErrEncodeFailed  = errors.New("image encoding failed")
)

// Error codes carried across the bridge
const (
	CodeNoVideo       = "no_video"
	CodeNotReady      = "not_ready"
	CodeBlackFrame    = "black_frame"
	CodeNoBounds      = "no_bounds"
	CodeCaptureDenied = "capture_denied"
	CodeEncodeFailed  = "encode_failed"
	CodeInternal      = "internal"
)

var codeErrors = map[string]error{
	CodeNoVideo:       ErrNoVideo,
	CodeNotReady:      ErrNotReady,
	CodeBlackFrame:    ErrBlackFrame,
	CodeNoBounds:      ErrNoBounds,
	CodeCaptureDenied: ErrCaptureDenied,
	CodeEncodeFailed:  ErrEncodeFailed,
}

// ErrorCode maps an error onto its wire code
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// ErrorFromCode rebuilds an error received from the other context, keeping
// errors.Is working against the sentinels.
func ErrorFromCode(code, message string) error {
	sentinel, ok := codeErrors[code]
	if !ok {
		if message == "" {
			message = "capture failed"
		}
		return errors.New(message)
	}
	if message == "" || message == sentinel.Error() {
		return sentinel
	}
	return &remoteError{sentinel: sentinel, message: message}
}

type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Unwrap() error { return e.sentinel }
