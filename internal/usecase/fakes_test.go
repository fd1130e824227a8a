package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"smartshop/internal/domain/model"
	"smartshop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// =====================
// fakes
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type hookCall struct {
	kind  string
	order usecase.OrderOutput
}

type hooksRecorder struct {
	mu    sync.Mutex
	calls []hookCall
}

func (h *hooksRecorder) record(kind string, o usecase.OrderOutput) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hookCall{kind: kind, order: o})
}

func (h *hooksRecorder) OrderPlaced(ctx context.Context, o usecase.OrderOutput) {
	h.record("placed", o)
}

func (h *hooksRecorder) OrderPaid(ctx context.Context, o usecase.OrderOutput) {
	h.record("paid", o)
}

func (h *hooksRecorder) OrderCancelled(ctx context.Context, o usecase.OrderOutput) {
	h.record("cancelled", o)
}

func (h *hooksRecorder) count(kind string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (h *hooksRecorder) last() hookCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[len(h.calls)-1]
}

type fakeGateway struct {
	mu          sync.Mutex
	intents     map[string]usecase.PaymentIntent
	created     []usecase.CreateIntentParams
	createErr   error
	retrieveErr error
	retrieved   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]usecase.PaymentIntent{}}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, in usecase.CreateIntentParams) (usecase.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, in)
	if g.createErr != nil {
		return usecase.PaymentIntent{}, g.createErr
	}
	return usecase.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret"}, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, id string) (usecase.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieved++
	if g.retrieveErr != nil {
		return usecase.PaymentIntent{}, g.retrieveErr
	}
	pi, ok := g.intents[id]
	if !ok {
		return usecase.PaymentIntent{}, errors.New("No such payment_intent: " + id)
	}
	return pi, nil
}

func (g *fakeGateway) retrieveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.retrieved
}

type fakeVerifier struct {
	ev  usecase.PaymentEvent
	err error
}

func (v fakeVerifier) ParseEvent(payload []byte, signature string) (usecase.PaymentEvent, error) {
	return v.ev, v.err
}

type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: map[string]bool{}}
}

func (d *fakeDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seenErr != nil {
		return false, d.seenErr
	}
	return d.seen[eventID], nil
}

func (d *fakeDeduper) Mark(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}

// =====================
// helpers
// =====================

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func phone() model.Product {
	return model.Product{ID: 1, Name: "Phone", Price: dec("999.99"), IsActive: true}
}

func cable() model.Product {
	return model.Product{ID: 2, Name: "Cable", Price: dec("15.50"), IsActive: true}
}

func delivery() usecase.DeliveryInput {
	return usecase.DeliveryInput{
		Name:    "Ana Pop",
		Email:   "ana@example.com",
		Phone:   "0700000000",
		Address: "Str. Lunga 1",
		City:    "Cluj",
		Country: "RO",
	}
}

// エラーメッセージの部分一致（HTTPErrorの実装詳細に依存しない）
func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
	}
}
