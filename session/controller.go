package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/grupomeraki/leadchat/domain"
	"github.com/grupomeraki/leadchat/inference"
)

var (
	// ErrStreamInFlight is returned by Send while a stream is open.
	ErrStreamInFlight = errors.New("a stream is already in flight for this session")
	// ErrConversationClosed is returned by Send after capture was submitted.
	ErrConversationClosed = errors.New("conversation already handed off")
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrCaptureNotOffered is returned when capture is submitted outside
	// capture_offered mode.
	ErrCaptureNotOffered = errors.New("capture was not offered for this session")
	// ErrCaptureInFlight rejects a second capture submission racing the first.
	ErrCaptureInFlight = errors.New("capture submission already in progress")

	errStaleStream = errors.New("stale stream event")
)

// Streamer opens one streaming completion request.
type Streamer interface {
	StreamCompletion(ctx context.Context, messages []inference.ChatMessage, fn inference.EventHandler) error
}

// Observer is notified with a session snapshot after every mutation.
type Observer func(*domain.Session)

// Controller is the single entry point for mutating one session. It owns the
// at-most-one-in-flight-stream invariant and the conversation state machine.
type Controller struct {
	mu       sync.Mutex
	sess     *domain.Session
	store    *SessionStore
	streamer Streamer
	observer Observer
	now      func() time.Time

	// gen is the cancellation token: stream events carry the generation they
	// were issued under and are ignored once it moves on.
	gen         int
	cancel      context.CancelFunc
	captureBusy bool
}

// NewController creates a controller for an already rehydrated session.
func NewController(sess *domain.Session, store *SessionStore, streamer Streamer, observer Observer) *Controller {
	return &Controller{
		sess:     sess,
		store:    store,
		streamer: streamer,
		observer: observer,
		now:      time.Now,
	}
}

// SessionID returns the session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.SessionID
}

// Mode returns the current conversation mode.
func (c *Controller) Mode() domain.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Mode
}

// Snapshot returns a deep copy of the session.
func (c *Controller) Snapshot() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Send appends the user message, opens the stream and drives it to
// completion. It blocks until the stream ends, fails or is cancelled.
// onDelta, when non-nil, is called with the visible assistant text after
// every content fragment.
//
// Stream failures do not propagate: the session ends up Idle with a fixed
// apology as the assistant reply.
func (c *Controller) Send(ctx context.Context, text string, onDelta func(visible string)) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if !c.sess.Mode.CanSend() {
		mode := c.sess.Mode
		c.mu.Unlock()
		if mode == domain.ModeCaptureSubmitted {
			return ErrConversationClosed
		}
		return ErrStreamInFlight
	}
	// Supersede a lingering transport from a cancelled send.
	if c.cancel != nil {
		c.cancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.gen++
	gen := c.gen

	c.sess.Messages = append(c.sess.Messages,
		domain.Message{Role: domain.RoleUser, Content: text},
		domain.Message{Role: domain.RoleAssistant})
	c.sess.Mode = domain.ModeStreaming
	history := c.historyLocked()
	snap := c.persistLocked()
	c.mu.Unlock()
	c.notify(snap)

	asm := NewAssembler()
	err := c.streamer.StreamCompletion(streamCtx, history, func(ev inference.Event) error {
		snap, err := c.apply(gen, asm, ev)
		if err != nil {
			return err
		}
		if ev.Kind == inference.KindDelta && onDelta != nil {
			onDelta(asm.Visible())
		}
		c.notify(snap)
		return nil
	})
	cancel()

	switch {
	case err == nil, errors.Is(err, errStaleStream):
	case errors.Is(err, context.Canceled):
		// The widget went away mid-stream (disconnect, page reload). Same
		// outcome as a user cancel: keep the partial content and return to
		// Idle so the next message can open a stream. When Cancel already
		// ran, gen has moved on and settle is a no-op.
		if snap, settleErr := c.settle(gen); settleErr == nil {
			c.notify(snap)
		}
	default:
		log.Printf("ERROR: inference stream failed for session %s: %v", c.SessionID(), err)
		if snap, applyErr := c.apply(gen, asm, inference.Event{Kind: inference.KindError, Text: err.Error()}); applyErr == nil {
			c.notify(snap)
		}
	}
	return nil
}

// settle closes out an abandoned stream: partial content stays, the session
// returns to Idle. Guarded by gen like apply.
func (c *Controller) settle(gen int) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil, errStaleStream
	}
	c.cancel = nil
	c.sess.Mode = domain.ModeIdle
	return c.persistLocked(), nil
}

// apply folds one stream event into the session. Events from a superseded or
// cancelled stream are rejected before any mutation.
func (c *Controller) apply(gen int, asm *Assembler, ev inference.Event) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return nil, errStaleStream
	}
	last := c.sess.LastMessage()
	if last == nil || last.Role != domain.RoleAssistant {
		return nil, errStaleStream
	}

	switch ev.Kind {
	case inference.KindDelta:
		last.Content = asm.Append(ev.Text)
	case inference.KindEnd:
		c.cancel = nil
		if asm.MarkerSeen() {
			c.sess.Mode = domain.ModeCaptureOffered
			last.InCaptureMode = true
		} else {
			c.sess.Mode = domain.ModeIdle
		}
	case inference.KindError:
		c.cancel = nil
		last.Content = domain.StreamErrorReply
		c.sess.Mode = domain.ModeIdle
	}

	return c.persistLocked(), nil
}

// Cancel stops the current stream. Partial content stays visible; a cancel
// is a user-initiated stop, not an error. Events still in flight are ignored
// from here on.
func (c *Controller) Cancel() *domain.Session {
	c.mu.Lock()
	if c.sess.Mode != domain.ModeStreaming {
		snap := c.sess.Clone()
		c.mu.Unlock()
		return snap
	}
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.sess.Mode = domain.ModeIdle
	snap := c.persistLocked()
	c.mu.Unlock()
	c.notify(snap)
	return snap
}

// Reset starts a new conversation: persisted keys are cleared and the session
// returns to the greeting-only state, regardless of TTL.
func (c *Controller) Reset(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	fresh, err := c.store.Reset(ctx, c.sess.SessionID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.sess = fresh
	c.captureBusy = false
	snap := c.sess.Clone()
	c.mu.Unlock()
	c.notify(snap)
	return snap, nil
}

// TryBeginCapture claims the capture slot. It fails unless the session is in
// capture_offered mode with no submission already running, which keeps a
// double click from producing two lead records.
func (c *Controller) TryBeginCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Mode != domain.ModeCaptureOffered {
		return ErrCaptureNotOffered
	}
	if c.captureBusy {
		return ErrCaptureInFlight
	}
	c.captureBusy = true
	return nil
}

// FinishCapture releases the capture slot. On success the session moves to
// its terminal capture_submitted mode with the hand-off link set; on failure
// it stays capture_offered so the visitor may resubmit.
func (c *Controller) FinishCapture(handoffLink string, ok bool) *domain.Session {
	c.mu.Lock()
	c.captureBusy = false
	var snap *domain.Session
	if ok {
		c.sess.Mode = domain.ModeCaptureSubmitted
		c.sess.HandoffLink = handoffLink
		snap = c.persistLocked()
	} else {
		snap = c.sess.Clone()
	}
	c.mu.Unlock()
	c.notify(snap)
	return snap
}

// AppendNotice appends an assistant message outside of a stream, used to
// surface capture persistence failures in the conversation.
func (c *Controller) AppendNotice(text string) *domain.Session {
	c.mu.Lock()
	c.sess.Messages = append(c.sess.Messages, domain.Message{Role: domain.RoleAssistant, Content: text})
	snap := c.persistLocked()
	c.mu.Unlock()
	c.notify(snap)
	return snap
}

// historyLocked builds the upstream payload: role and content only, without
// the empty assistant placeholder of the request being opened.
func (c *Controller) historyLocked() []inference.ChatMessage {
	msgs := c.sess.Messages
	if n := len(msgs); n > 0 && msgs[n-1].Role == domain.RoleAssistant && msgs[n-1].Content == "" {
		msgs = msgs[:n-1]
	}
	out := make([]inference.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, inference.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// persistLocked touches the session, mirrors it to durable storage and
// returns a snapshot for observers. Persistence failures never block the
// conversation.
func (c *Controller) persistLocked() *domain.Session {
	c.sess.Touch(c.now())
	if err := c.store.Save(context.Background(), c.sess); err != nil {
		log.Printf("WARN: failed to persist session %s: %v", c.sess.SessionID, err)
	}
	return c.sess.Clone()
}

func (c *Controller) notify(snap *domain.Session) {
	if c.observer != nil && snap != nil {
		c.observer(snap)
	}
}
