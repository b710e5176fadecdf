package domain

// Mode is the conversation mode of a session.
type Mode string

const (
	// ModeIdle means no request is in flight and free chat is allowed.
	ModeIdle Mode = "idle"
	// ModeStreaming means exactly one inference request is in flight.
	ModeStreaming Mode = "streaming"
	// ModeCaptureOffered means the assistant signaled contact capture; the
	// widget shows the capture form but chat remains allowed.
	ModeCaptureOffered Mode = "capture_offered"
	// ModeCaptureSubmitted is terminal: the conversation handed off to a
	// human channel and no further streaming requests are accepted.
	ModeCaptureSubmitted Mode = "capture_submitted"
)

// CanSend reports whether a new user message may start a stream in this mode.
func (m Mode) CanSend() bool {
	return m == ModeIdle || m == ModeCaptureOffered
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeStreaming, ModeCaptureOffered, ModeCaptureSubmitted:
		return true
	}
	return false
}
