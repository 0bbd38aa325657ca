package transaction

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/contentcode"
	txmodel "github.com/frahmantamala/payment-reconciliation/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/core/events"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
	"github.com/frahmantamala/payment-reconciliation/pkg/metric"
)

type RepositoryAPI interface {
	Create(ctx context.Context, t *txmodel.PaymentTransaction) error
	GetByContent(ctx context.Context, content string) (*txmodel.PaymentTransaction, error)
	GetByRefCode(ctx context.Context, refCode string) (*txmodel.PaymentTransaction, error)
	// GetByGatewayTxnID returns the intent the gateway transaction was applied to.
	GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*txmodel.PaymentTransaction, error)
	// UpdateReconciled applies the update only while the row is in one of fromStatuses
	// and the gateway transaction has not been applied anywhere yet. It returns
	// ErrNotApplied otherwise.
	UpdateReconciled(ctx context.Context, id int64, update ReconcileUpdate, fromStatuses []string) error
}

type CodeGenerator interface {
	Generate() string
}

type CodeGeneratorFunc func() string

func (f CodeGeneratorFunc) Generate() string { return f() }

// DeliveryLock serializes concurrent deliveries of the same gateway transaction.
type DeliveryLock interface {
	Acquire(ctx context.Context, gatewayTxnID string) (release func(), acquired bool, err error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ServiceAPI interface {
	Create(ctx context.Context, req InitRequest) (*InitResponse, error)
	Reconcile(ctx context.Context, payload *WebhookPayload) (*ReconcileResult, error)
	GetByReferenceCode(ctx context.Context, refCode string) (*TransactionView, error)
}

var _ ServiceAPI = (*Service)(nil)

type Service struct {
	repo        RepositoryAPI
	links       *PaymentLinkBuilder
	codes       CodeGenerator
	now         func() time.Time
	expiry      time.Duration
	maxAttempts int
	publisher   EventPublisher
	metrics     metric.Reconciliation
	lock        DeliveryLock
	logger      *slog.Logger
}

type Option func(*Service)

func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m metric.Reconciliation) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDeliveryLock(l DeliveryLock) Option {
	return func(s *Service) { s.lock = l }
}

func NewService(repo RepositoryAPI, links *PaymentLinkBuilder, cfg errors.PaymentConfig, lg *slog.Logger, opts ...Option) *Service {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Service{
		repo:        repo,
		links:       links,
		codes:       CodeGeneratorFunc(contentcode.Generate),
		now:         time.Now,
		expiry:      cfg.ExpiryWindow,
		maxAttempts: cfg.MaxCodeAttempts,
		metrics:     metric.NewNoop().Reconciliation(),
		logger:      lg,
	}
	if s.expiry <= 0 {
		s.expiry = errors.DefaultExpiryWindow
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = errors.DefaultMaxCodeAttempts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new payment intent under a fresh content code. Content code
// collisions are retried with a new code up to maxAttempts times.
func (s *Service) Create(ctx context.Context, req InitRequest) (*InitResponse, error) {
	lg := logger.FromOr(ctx, s.logger)

	if err := req.Validate(); err != nil {
		lg.Warn("payment init validation failed", "error", err, "ref_code", req.RefCode)
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		now := s.now()
		txn := &txmodel.PaymentTransaction{
			RefCode:        req.RefCode,
			Content:        s.codes.Generate(),
			ExpectedAmount: req.Amount,
			Status:         StatusPending,
			ExpiresAt:      now.Add(s.expiry),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err := s.repo.Create(ctx, txn)
		switch {
		case err == nil:
			s.metrics.Created(attempt)
			lg.Info("payment intent created",
				"ref_code", txn.RefCode,
				"content", txn.Content,
				"amount", txn.ExpectedAmount.String(),
				"expires_at", txn.ExpiresAt,
				"attempts", attempt)
			return &InitResponse{
				Success:   true,
				Content:   txn.Content,
				QRURL:     s.links.Build(txn.ExpectedAmount, txn.Content),
				ExpiresAt: txn.ExpiresAt,
			}, nil
		case stdErrors.Is(err, ErrContentCodeConflict):
			lg.Warn("content code collision, retrying",
				"content", txn.Content,
				"attempt", attempt,
				"max_attempts", s.maxAttempts)
		case stdErrors.Is(err, ErrReferenceCodeConflict):
			s.metrics.CreateFailed("reference_code_exists")
			lg.Warn("payment intent reference code already exists", "ref_code", req.RefCode)
			return nil, errors.ErrReferenceCodeExists
		default:
			s.metrics.CreateFailed("store_error")
			lg.Error("failed to insert payment intent", "error", err, "ref_code", req.RefCode)
			return nil, errors.ErrTransactionCreate.WithCause(err)
		}
	}

	s.metrics.CreateFailed("code_exhausted")
	lg.Error("could not allocate a unique content code",
		"ref_code", req.RefCode,
		"attempts", s.maxAttempts)
	return nil, errors.ErrTransactionCreate.WithCause(
		fmt.Errorf("no unique content code after %d attempts", s.maxAttempts))
}

// Reconcile matches a gateway transfer notification to its payment intent. Every
// non-match is an outcome, not an error; errors are reserved for failures the
// gateway should retry.
func (s *Service) Reconcile(ctx context.Context, payload *WebhookPayload) (*ReconcileResult, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveDuration("reconcile", s.now().Sub(start))
	}()

	gatewayTxnID := payload.GatewayTxnID()
	lg := logger.FromOr(ctx, s.logger).With("gateway_txn_id", gatewayTxnID)

	if payload.IsOutgoing() {
		lg.Info("webhook ignored: outgoing transfer", "content", payload.Content)
		return s.outcome(&ReconcileResult{Outcome: OutcomeIgnored}), nil
	}

	code, ok := contentcode.Extract(payload.Content)
	if !ok {
		lg.Warn("webhook content carries no content code", "content", payload.Content)
		return s.outcome(&ReconcileResult{Outcome: OutcomeMalformedContent}), nil
	}
	lg = lg.With("content", code)

	if s.lock != nil && gatewayTxnID != "" {
		release, acquired, err := s.lock.Acquire(ctx, gatewayTxnID)
		switch {
		case err != nil:
			lg.Warn("delivery lock unavailable, continuing without it", "error", err)
		case !acquired:
			lg.Warn("webhook delivery already in progress")
			return nil, errors.ErrDeliveryInProgress
		default:
			defer release()
		}
	}

	if gatewayTxnID != "" {
		applied, err := s.repo.GetByGatewayTxnID(ctx, gatewayTxnID)
		switch {
		case err == nil:
			lg.Info("webhook redelivery already applied", "ref_code", applied.RefCode, "status", applied.Status)
			return s.outcome(&ReconcileResult{
				Outcome:     OutcomeAlreadyProcessed,
				Status:      applied.Status,
				ContentCode: code,
				RefCode:     applied.RefCode,
			}), nil
		case !stdErrors.Is(err, ErrNotFound):
			lg.Error("failed to look up gateway delivery", "error", err)
			return nil, errors.NewInternalError("Failed to look up transaction", err)
		}
	}

	txn, err := s.repo.GetByContent(ctx, code)
	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			lg.Warn("webhook references unknown content code")
			return s.outcome(&ReconcileResult{Outcome: OutcomeUnknownTransaction, ContentCode: code}), nil
		}
		lg.Error("failed to look up payment intent", "error", err)
		return nil, errors.NewInternalError("Failed to look up transaction", err)
	}

	already := &ReconcileResult{
		Outcome:     OutcomeAlreadyProcessed,
		Status:      txn.Status,
		ContentCode: code,
		RefCode:     txn.RefCode,
	}
	if !IsReconcilable(txn.Status) {
		lg.Info("webhook for settled payment intent", "ref_code", txn.RefCode, "status", txn.Status)
		return s.outcome(already), nil
	}

	now := s.now()
	status := Classify(now, txn.ExpiresAt, txn.ExpectedAmount, payload.TransferAmount)

	raw := []byte(payload.Raw)
	if len(raw) == 0 {
		if raw, err = json.Marshal(payload); err != nil {
			return nil, errors.NewInternalError("Failed to encode gateway payload", err)
		}
	}

	update := ReconcileUpdate{
		Status:          status,
		ReceivedAmount:  payload.TransferAmount,
		GatewayTxnID:    gatewayTxnID,
		GatewayResponse: raw,
		PaidAt:          now,
	}
	if err := s.repo.UpdateReconciled(ctx, txn.ID, update, ReconcilableStatuses); err != nil {
		if stdErrors.Is(err, ErrNotApplied) {
			lg.Info("payment intent settled by a concurrent delivery", "ref_code", txn.RefCode)
			if current, err := s.repo.GetByRefCode(ctx, txn.RefCode); err == nil {
				already.Status = current.Status
			} else {
				lg.Warn("failed to re-read payment intent, reporting last seen status", "error", err)
			}
			return s.outcome(already), nil
		}
		lg.Error("failed to persist reconciliation", "error", err, "ref_code", txn.RefCode)
		return nil, errors.ErrStoreWrite.WithCause(err)
	}

	if status == StatusLatePayment {
		lg.Warn("payment arrived after expiry", "ref_code", txn.RefCode)
	}
	lg.Info("payment intent reconciled",
		"ref_code", txn.RefCode,
		"previous_status", txn.Status,
		"status", status,
		"expected_amount", txn.ExpectedAmount.String(),
		"received_amount", payload.TransferAmount.String())

	if s.publisher != nil {
		event := events.NewTransactionReconciledEvent(txn.ID, txn.RefCode, code, txn.Status, status,
			txn.ExpectedAmount, payload.TransferAmount, gatewayTxnID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			lg.Error("failed to publish reconciled event", "error", err)
		}
	}

	return s.outcome(&ReconcileResult{
		Outcome:     OutcomeReconciled,
		Status:      status,
		ContentCode: code,
		RefCode:     txn.RefCode,
	}), nil
}

func (s *Service) outcome(r *ReconcileResult) *ReconcileResult {
	s.metrics.Webhook(string(r.Outcome))
	return r
}

func (s *Service) GetByReferenceCode(ctx context.Context, refCode string) (*TransactionView, error) {
	txn, err := s.repo.GetByRefCode(ctx, refCode)
	if err != nil {
		if stdErrors.Is(err, ErrNotFound) {
			return nil, errors.ErrTransactionNotFound
		}
		logger.FromOr(ctx, s.logger).Error("failed to get payment intent", "error", err, "ref_code", refCode)
		return nil, errors.NewInternalError("Failed to get transaction", err)
	}
	return ToView(txn, s.now()), nil
}
