// Package capture converts an offered conversation into a durable CRM lead,
// best-effort ad-conversion pings and a hand-off link.
package capture

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grupomeraki/leadchat/domain"
	"github.com/grupomeraki/leadchat/policy"
	"github.com/grupomeraki/leadchat/session"
)

// maxSummaryLen bounds the conversation summary so downstream payloads stay
// small.
const maxSummaryLen = 500

// FailureReply is appended to the conversation when lead persistence fails.
const FailureReply = "Não consegui registrar seus dados agora. Pode tentar novamente em instantes?"

// ConversionEvent is the event-name tag sent with every ad-conversion ping.
const ConversionEvent = "chat_lead_capture"

// Request is the capture form input.
type Request struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ValidationError reports a rejected form field. It carries no state change.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Options configures a Submitter.
type Options struct {
	Notifiers      []Notifier
	Policy         *policy.Engine
	WhatsAppNumber string
	SourceURL      string
	NotifyTimeout  time.Duration
}

// Submitter performs the one-shot capture submission.
type Submitter struct {
	leads          LeadStore
	notifiers      []Notifier
	policy         *policy.Engine
	whatsappNumber string
	sourceURL      string
	notifyTimeout  time.Duration
}

// NewSubmitter creates a submitter.
func NewSubmitter(leads LeadStore, opts Options) *Submitter {
	timeout := opts.NotifyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Submitter{
		leads:          leads,
		notifiers:      opts.Notifiers,
		policy:         opts.Policy,
		whatsappNumber: opts.WhatsAppNumber,
		sourceURL:      opts.SourceURL,
		notifyTimeout:  timeout,
	}
}

// Submit validates the form, persists the lead exactly once and moves the
// session to capture_submitted. Validation and policy rejections leave the
// session untouched; a CRM failure keeps capture_offered so the visitor may
// resubmit. Conversion pings are fire-and-forget.
func (s *Submitter) Submit(ctx context.Context, ctrl *session.Controller, req Request) (*domain.Session, *domain.CaptureRecord, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Phone)

	if name == "" {
		return nil, nil, &ValidationError{Field: "name", Message: "nome é obrigatório"}
	}
	if email == "" {
		return nil, nil, &ValidationError{Field: "email", Message: "email é obrigatório"}
	}

	if s.policy != nil {
		decision, err := s.policy.Evaluate(ctx, map[string]interface{}{
			"name":  name,
			"email": email,
		})
		if err != nil {
			// Policy trouble must not cost a lead.
			log.Printf("WARN: capture policy evaluation failed: %v", err)
		} else if decision == policy.DecisionBlock {
			return nil, nil, &ValidationError{Field: "email", Message: "endereço de email não aceito"}
		}
	}

	if err := ctrl.TryBeginCapture(); err != nil {
		return nil, nil, err
	}

	summary := Summarize(ctrl.Snapshot().UserContents(), maxSummaryLen)

	rec := &domain.CaptureRecord{
		LeadID:              "lead_" + uuid.New().String()[:8],
		Name:                name,
		Email:               email,
		Phone:               phone,
		ConversationSummary: summary,
		Source:              domain.LeadSource,
		Status:              domain.LeadStatus,
	}

	if err := s.leads.CreateLead(ctx, rec); err != nil {
		log.Printf("ERROR: failed to persist lead for session %s: %v", ctrl.SessionID(), err)
		ctrl.AppendNotice(FailureReply)
		snap := ctrl.FinishCapture("", false)
		return snap, nil, fmt.Errorf("failed to persist lead: %w", err)
	}

	conv := Conversion{
		Name:      name,
		Email:     email,
		Phone:     phone,
		SourceURL: s.sourceURL,
		EventName: ConversionEvent,
	}
	for _, n := range s.notifiers {
		go s.fireConversion(n, conv)
	}

	link := HandoffLink(s.whatsappNumber, name, summary)
	snap := ctrl.FinishCapture(link, true)
	return snap, rec, nil
}

// fireConversion runs one best-effort ping with its own deadline. Failures
// are logged and swallowed; the lead record is the source of truth.
func (s *Submitter) fireConversion(n Notifier, conv Conversion) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := n.NotifyConversion(ctx, conv); err != nil {
		log.Printf("WARN: %s conversion ping failed: %v", n.Name(), err)
	}
}

// Summarize concatenates user-role contents into a bounded hand-off summary.
func Summarize(userContents []string, max int) string {
	joined := strings.Join(userContents, " | ")
	runes := []rune(joined)
	if len(runes) > max {
		return string(runes[:max])
	}
	return joined
}

// HandoffLink derives the WhatsApp continuation link from the contact name
// and conversation summary.
func HandoffLink(number, name, summary string) string {
	text := fmt.Sprintf("Olá! Sou %s. Estava conversando com a assistente do site.", name)
	if summary != "" {
		text += " Assunto: " + summary
	}
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(text)
}
