package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grupomeraki/leadchat/domain"
	"github.com/grupomeraki/leadchat/inference"
	"github.com/grupomeraki/leadchat/policy"
	"github.com/grupomeraki/leadchat/session"
	"github.com/grupomeraki/leadchat/tests/helpers"
)

type markerStreamer struct{}

func (markerStreamer) StreamCompletion(ctx context.Context, _ []inference.ChatMessage, fn inference.EventHandler) error {
	if err := fn(inference.Event{Kind: inference.KindDelta, Text: "Posso te passar um orçamento!<CAPTURE_MODE>"}); err != nil {
		return err
	}
	return fn(inference.Event{Kind: inference.KindEnd})
}

// offeredController drives a session up to capture_offered mode.
func offeredController(t *testing.T) *session.Controller {
	t.Helper()
	ss := session.NewSessionStore(helpers.NewTestSQLiteStore(t), 24*time.Hour)
	ctrl := session.NewController(domain.NewSession("s1"), ss, markerStreamer{}, nil)
	if err := ctrl.Send(context.Background(), "Quero um orçamento de site", nil); err != nil {
		t.Fatalf("failed to reach capture_offered: %v", err)
	}
	if ctrl.Mode() != domain.ModeCaptureOffered {
		t.Fatalf("expected capture_offered, got %s", ctrl.Mode())
	}
	return ctrl
}

type fakeLeads struct {
	mu      sync.Mutex
	records []*domain.CaptureRecord
	err     error
}

func (f *fakeLeads) CreateLead(ctx context.Context, rec *domain.CaptureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLeads) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeNotifier struct {
	name string
	got  chan Conversion
}

func newFakeNotifier(name string) *fakeNotifier {
	return &fakeNotifier{name: name, got: make(chan Conversion, 1)}
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) NotifyConversion(ctx context.Context, conv Conversion) error {
	f.got <- conv
	return nil
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	ctrl := offeredController(t)
	leads := &fakeLeads{}
	s := NewSubmitter(leads, Options{WhatsAppNumber: "5511999999999"})

	for _, tc := range []struct {
		req   Request
		field string
	}{
		{Request{Name: "", Email: "ana@empresa.com.br"}, "name"},
		{Request{Name: "Ana", Email: "   "}, "email"},
	} {
		_, _, err := s.Submit(context.Background(), ctrl, tc.req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tc.field, verr.Field)
	}

	assert.Equal(t, 0, leads.count())
	assert.Equal(t, domain.ModeCaptureOffered, ctrl.Mode())
}

func TestSubmitPersistsLeadAndHandsOff(t *testing.T) {
	ctrl := offeredController(t)
	leads := &fakeLeads{}
	s := NewSubmitter(leads, Options{
		WhatsAppNumber: "5511999999999",
		SourceURL:      "https://grupomeraki.com.br",
	})

	snap, rec, err := s.Submit(context.Background(), ctrl, Request{
		Name:  "  Ana Souza  ",
		Email: "ana@empresa.com.br",
		Phone: "+55 11 98888-7777",
	})
	require.NoError(t, err)

	require.NotNil(t, rec)
	assert.True(t, strings.HasPrefix(rec.LeadID, "lead_"))
	assert.Equal(t, "Ana Souza", rec.Name)
	assert.Equal(t, "ana@empresa.com.br", rec.Email)
	assert.Equal(t, "+55 11 98888-7777", rec.Phone)
	assert.Equal(t, "Quero um orçamento de site", rec.ConversationSummary)
	assert.Equal(t, domain.LeadSource, rec.Source)
	assert.Equal(t, domain.LeadStatus, rec.Status)
	assert.Equal(t, 1, leads.count())

	assert.Equal(t, domain.ModeCaptureSubmitted, snap.Mode)
	assert.True(t, strings.HasPrefix(snap.HandoffLink, "https://wa.me/5511999999999?text="), snap.HandoffLink)
	assert.Contains(t, snap.HandoffLink, "Ana+Souza")
}

func TestSubmitIsOneShot(t *testing.T) {
	ctrl := offeredController(t)
	leads := &fakeLeads{}
	s := NewSubmitter(leads, Options{WhatsAppNumber: "5511999999999"})

	_, _, err := s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	require.NoError(t, err)

	_, _, err = s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	assert.ErrorIs(t, err, session.ErrCaptureNotOffered)
	assert.Equal(t, 1, leads.count())
}

func TestSubmitCRMFailureKeepsCaptureOpen(t *testing.T) {
	ctrl := offeredController(t)
	leads := &fakeLeads{err: errors.New("crm unavailable")}
	s := NewSubmitter(leads, Options{WhatsAppNumber: "5511999999999"})

	snap, rec, err := s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, domain.ModeCaptureOffered, snap.Mode)
	assert.Empty(t, snap.HandoffLink)
	assert.Equal(t, FailureReply, snap.LastMessage().Content)

	// The visitor may retry once the CRM is back.
	leads.err = nil
	snap, _, err = s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCaptureSubmitted, snap.Mode)
	assert.Equal(t, 1, leads.count())
}

func TestSubmitFiresAllConversionPings(t *testing.T) {
	ctrl := offeredController(t)
	ads := newFakeNotifier("google_ads")
	pixel := newFakeNotifier("meta_pixel")
	s := NewSubmitter(&fakeLeads{}, Options{
		Notifiers:      []Notifier{ads, pixel},
		WhatsAppNumber: "5511999999999",
		SourceURL:      "https://grupomeraki.com.br",
	})

	_, _, err := s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	require.NoError(t, err)

	for _, n := range []*fakeNotifier{ads, pixel} {
		select {
		case conv := <-n.got:
			assert.Equal(t, "Ana", conv.Name)
			assert.Equal(t, ConversionEvent, conv.EventName)
			assert.Equal(t, "https://grupomeraki.com.br", conv.SourceURL)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s conversion ping never fired", n.name)
		}
	}
}

func TestSubmitBlocksDisposableEmailDomains(t *testing.T) {
	ctrl := offeredController(t)
	leads := &fakeLeads{}
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	s := NewSubmitter(leads, Options{Policy: engine, WhatsAppNumber: "5511999999999"})

	_, _, err = s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@mailinator.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.Equal(t, 0, leads.count())
	assert.Equal(t, domain.ModeCaptureOffered, ctrl.Mode())

	_, _, err = s.Submit(context.Background(), ctrl, Request{Name: "Ana", Email: "ana@empresa.com.br"})
	require.NoError(t, err)
	assert.Equal(t, 1, leads.count())
}

func TestSummarizeJoinsAndCaps(t *testing.T) {
	got := Summarize([]string{"Quanto custa?", "Tem plano mensal?"}, 500)
	assert.Equal(t, "Quanto custa? | Tem plano mensal?", got)

	long := Summarize([]string{strings.Repeat("ã", 600)}, 500)
	assert.Equal(t, 500, len([]rune(long)))
}

func TestHandoffLinkEscapesText(t *testing.T) {
	link := HandoffLink("5511999999999", "Ana Souza", "Quanto custa?")
	assert.True(t, strings.HasPrefix(link, "https://wa.me/5511999999999?text="))
	assert.NotContains(t, link, " ")
	assert.Contains(t, link, "Ana+Souza")
	assert.Contains(t, link, "Assunto")
}
