package transaction_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	txmodel "github.com/frahmantamala/payment-reconciliation/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/core/events"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
)

// mockRepository mimics the store: unique ref codes, content unique among
// reconcilable rows, the conditional update and the gateway delivery ledger.
type mockRepository struct {
	mu         sync.Mutex
	rows       []*txmodel.PaymentTransaction
	deliveries map[string]int64
	nextID     int64
	inserts    int

	createErr error
	getErr    error
	updateErr error
	// createHook may veto an insert before the uniqueness checks run.
	createHook func(t *txmodel.PaymentTransaction) error
	// updateHook runs against the target row before the conditional update is checked.
	updateHook func(row *txmodel.PaymentTransaction)
	updates    int
}

func newMockRepository() *mockRepository {
	return &mockRepository{deliveries: make(map[string]int64)}
}

func (m *mockRepository) Create(_ context.Context, t *txmodel.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	if m.createErr != nil {
		return m.createErr
	}
	if m.createHook != nil {
		if err := m.createHook(t); err != nil {
			return err
		}
	}
	for _, row := range m.rows {
		if row.RefCode == t.RefCode {
			return transaction.ErrReferenceCodeConflict
		}
		if row.Content == t.Content && transaction.IsReconcilable(row.Status) {
			return transaction.ErrContentCodeConflict
		}
	}
	m.nextID++
	t.ID = m.nextID
	stored := *t
	m.rows = append(m.rows, &stored)
	return nil
}

func (m *mockRepository) GetByContent(_ context.Context, content string) (*txmodel.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	var found *txmodel.PaymentTransaction
	for _, row := range m.rows {
		if row.Content != content {
			continue
		}
		if found == nil || (transaction.IsReconcilable(row.Status) && !transaction.IsReconcilable(found.Status)) {
			found = row
		}
	}
	if found == nil {
		return nil, transaction.ErrNotFound
	}
	copied := *found
	return &copied, nil
}

func (m *mockRepository) GetByRefCode(_ context.Context, refCode string) (*txmodel.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, row := range m.rows {
		if row.RefCode == refCode {
			copied := *row
			return &copied, nil
		}
	}
	return nil, transaction.ErrNotFound
}

func (m *mockRepository) GetByGatewayTxnID(_ context.Context, gatewayTxnID string) (*txmodel.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	id, ok := m.deliveries[gatewayTxnID]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	for _, row := range m.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, transaction.ErrNotFound
}

func (m *mockRepository) UpdateReconciled(_ context.Context, id int64, update transaction.ReconcileUpdate, fromStatuses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	for _, row := range m.rows {
		if row.ID != id {
			continue
		}
		if m.updateHook != nil {
			m.updateHook(row)
		}
		allowed := false
		for _, s := range fromStatuses {
			if row.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return transaction.ErrNotApplied
		}
		if _, applied := m.deliveries[update.GatewayTxnID]; applied && update.GatewayTxnID != "" {
			return transaction.ErrNotApplied
		}
		m.updates++
		paidAt := update.PaidAt
		row.Status = update.Status
		row.ReceivedAmount = decimal.NewNullDecimal(update.ReceivedAmount)
		row.GatewayTxnID = nil
		if update.GatewayTxnID != "" {
			gatewayTxnID := update.GatewayTxnID
			row.GatewayTxnID = &gatewayTxnID
			m.deliveries[gatewayTxnID] = row.ID
		}
		row.GatewayResponse = datatypes.JSON(update.GatewayResponse)
		row.PaidAt = &paidAt
		row.UpdatedAt = paidAt
		return nil
	}
	return transaction.ErrNotApplied
}

func (m *mockRepository) seed(t *txmodel.PaymentTransaction) *txmodel.PaymentTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.rows = append(m.rows, t)
	return t
}

func (m *mockRepository) snapshot(refCode string) txmodel.PaymentTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.RefCode == refCode {
			return *row
		}
	}
	return txmodel.PaymentTransaction{}
}

// sequenceGenerator hands out codes in order and repeats the last one.
type sequenceGenerator struct {
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() string {
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i]
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type mockLock struct {
	held     map[string]bool
	err      error
	released []string
}

func newMockLock() *mockLock {
	return &mockLock{held: make(map[string]bool)}
}

func (l *mockLock) Acquire(_ context.Context, id string) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[id] {
		return func() {}, false, nil
	}
	l.held[id] = true
	return func() {
		delete(l.held, id)
		l.released = append(l.released, id)
	}, true, nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	created    []int
	failures   []string
	outcomes   []string
	classified []string
	observed   int
}

func (r *recordingMetrics) Created(attempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, attempts)
}

func (r *recordingMetrics) CreateFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
}

func (r *recordingMetrics) Webhook(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) Classified(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classified = append(r.classified, status)
}

func (r *recordingMetrics) ObserveDuration(string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed++
}
