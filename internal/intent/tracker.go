package intent

import (
	"errors"
	"sync"

	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/metrics"
)

// ErrUnknownIntent is returned when resolving an ID that is not pending.
var ErrUnknownIntent = errors.New("unknown intent")

// Outcome is the wallet adapter's report for one intent.
type Outcome struct {
	Success bool   `json:"success"`
	Digest  string `json:"digest,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Resolution is what the form should do after an outcome. Form is nil when
// the form was cleared and holds the retained form state otherwise.
type Resolution struct {
	IntentID string `json:"intent_id"`
	Kind     Kind   `json:"kind"`
	Success  bool   `json:"success"`
	Digest   string `json:"digest,omitempty"`
	Message  string `json:"message"`
	Form     any    `json:"form,omitempty"`
}

type pending struct {
	intent *Intent
	form   any
}

// Tracker holds intents handed to the wallet adapter until their outcome arrives.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]pending
	metrics *metrics.Metrics

	// OnSuccess is called once per successful outcome, outside the lock.
	OnSuccess func(kind Kind)
}

func NewTracker(m *metrics.Metrics) *Tracker {
	return &Tracker{pending: make(map[string]pending), metrics: m}
}

// Track registers in together with the form state that produced it.
func (t *Tracker) Track(in *Intent, form any) {
	t.mu.Lock()
	t.pending[in.ID] = pending{intent: in, form: form}
	t.mu.Unlock()
	t.metrics.RecordIntent(string(in.Kind), "built")
}

// Get returns a pending intent and its form state.
func (t *Tracker) Get(id string) (*Intent, any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	return p.intent, p.form, ok
}

// Len returns the number of pending intents.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Resolve applies an adapter outcome. On success the intent and its form are
// dropped and OnSuccess fires; on failure both are kept so the user can retry.
func (t *Tracker) Resolve(id string, o Outcome) (Resolution, error) {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok && o.Success {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return Resolution{}, ErrUnknownIntent
	}

	res := Resolution{IntentID: id, Kind: p.intent.Kind, Success: o.Success, Digest: o.Digest}
	if o.Success {
		res.Message = successMessage(p.intent.Kind)
		logger.Info("Intent %s (%s) confirmed in %s", id, p.intent.Kind, o.Digest)
		t.metrics.RecordIntent(string(p.intent.Kind), "success")
		if t.OnSuccess != nil {
			t.OnSuccess(p.intent.Kind)
		}
		return res, nil
	}

	res.Message = failureMessage(p.intent.Kind, o.Error)
	res.Form = p.form
	logger.Warn("Intent %s (%s) failed: %s", id, p.intent.Kind, o.Error)
	t.metrics.RecordIntent(string(p.intent.Kind), "failure")
	return res, nil
}

func successMessage(k Kind) string {
	switch k {
	case KindMint:
		return "Your car was successfully created!"
	case KindList:
		return "Car listed on marketplace!"
	case KindBuy:
		return "Car successfully purchased!"
	}
	return "Transaction confirmed"
}

func failureMessage(k Kind, reason string) string {
	if reason == "" {
		reason = "unknown error"
	}
	switch k {
	case KindMint:
		return "Mint failed: " + reason
	case KindList:
		return "Listing failed: " + reason
	case KindBuy:
		return "Purchase failed: " + reason
	}
	return "Transaction error: " + reason
}
