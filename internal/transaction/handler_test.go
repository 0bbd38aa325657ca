package transaction_test

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/transport"
)

type stubService struct {
	createResp *transaction.InitResponse
	createErr  error
	createReq  transaction.InitRequest

	reconcileResult  *transaction.ReconcileResult
	reconcileErr     error
	reconcilePayload *transaction.WebhookPayload

	view    *transaction.TransactionView
	viewErr error
	viewRef string
}

func (s *stubService) Create(_ context.Context, req transaction.InitRequest) (*transaction.InitResponse, error) {
	s.createReq = req
	return s.createResp, s.createErr
}

func (s *stubService) Reconcile(_ context.Context, payload *transaction.WebhookPayload) (*transaction.ReconcileResult, error) {
	s.reconcilePayload = payload
	return s.reconcileResult, s.reconcileErr
}

func (s *stubService) GetByReferenceCode(_ context.Context, refCode string) (*transaction.TransactionView, error) {
	s.viewRef = refCode
	return s.view, s.viewErr
}

func decodeBody(rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body
}

var _ = Describe("Handlers", func() {
	var (
		svc     *stubService
		router  *chi.Mux
		handler *transaction.Handler
		webhook *transaction.WebhookHandler
	)

	BeforeEach(func() {
		svc = &stubService{}
		base := transport.NewBaseHandler(silentLogger)
		handler = transaction.NewHandler(base, svc)
		webhook = transaction.NewWebhookHandler(base, svc)

		router = chi.NewRouter()
		router.Post("/payments/init", handler.Init)
		router.Post("/payments/webhook", webhook.HandleSePayWebhook)
		router.Get("/payments/{ref_code}", handler.GetByReferenceCode)
	})

	serve := func(method, path string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	Describe("Init", func() {
		It("should return the content code and QR link", func() {
			expiresAt := time.Date(2026, 1, 15, 9, 10, 0, 0, time.UTC)
			svc.createResp = &transaction.InitResponse{
				Success:   true,
				Content:   "CKAB23CD",
				QRURL:     "https://qr.sepay.vn/img?des=CKAB23CD",
				ExpiresAt: expiresAt,
			}

			rec := serve(http.MethodPost, "/payments/init", []byte(`{"amount":150000,"refCode":"ORDER-1"}`))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.createReq.RefCode).To(Equal("ORDER-1"))
			Expect(svc.createReq.Amount.Equal(decimal.NewFromInt(150000))).To(BeTrue())

			body := decodeBody(rec)
			Expect(body["success"]).To(BeTrue())
			Expect(body["content"]).To(Equal("CKAB23CD"))
			Expect(body["qrUrl"]).To(Equal("https://qr.sepay.vn/img?des=CKAB23CD"))
			Expect(body["expiresAt"]).To(Equal("2026-01-15T09:10:00Z"))
		})

		It("should reject a body that is not JSON", func() {
			rec := serve(http.MethodPost, "/payments/init", []byte(`amount=1`))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should map service errors to their status", func() {
			svc.createErr = errors.ErrReferenceCodeExists

			rec := serve(http.MethodPost, "/payments/init", []byte(`{"amount":1,"refCode":"ORDER-1"}`))
			Expect(rec.Code).To(Equal(http.StatusConflict))
			body := decodeBody(rec)
			Expect(body["error"]).To(HaveKeyWithValue("code", "REFERENCE_CODE_EXISTS"))
		})

		It("should hide unexpected errors behind a 500", func() {
			svc.createErr = stdErrors.New("boom")

			rec := serve(http.MethodPost, "/payments/init", []byte(`{"amount":1,"refCode":"ORDER-1"}`))
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
		})
	})

	Describe("GetByReferenceCode", func() {
		It("should wrap the view in a success envelope", func() {
			svc.view = &transaction.TransactionView{
				RefCode:        "ORDER-1",
				Content:        "CKAB23CD",
				ExpectedAmount: decimal.NewFromInt(150000),
				Status:         transaction.StatusPending,
			}

			rec := serve(http.MethodGet, "/payments/ORDER-1", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.viewRef).To(Equal("ORDER-1"))

			body := decodeBody(rec)
			Expect(body["success"]).To(BeTrue())
			Expect(body["data"]).To(HaveKeyWithValue("refCode", "ORDER-1"))
			Expect(body["data"]).To(HaveKeyWithValue("expectedAmount", BeNumerically("==", 150000)))
			Expect(body["data"]).To(HaveKeyWithValue("receivedAmount", BeNil()))
		})

		It("should answer 404 for an unknown reference", func() {
			svc.viewErr = errors.ErrTransactionNotFound

			rec := serve(http.MethodGet, "/payments/missing", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			body := decodeBody(rec)
			Expect(body["error"]).To(HaveKeyWithValue("code", "TRANSACTION_NOT_FOUND"))
		})
	})

	Describe("HandleSePayWebhook", func() {
		payload := []byte(`{
			"id": 92704,
			"gateway": "MBBank",
			"transactionDate": "2026-01-15 09:05:00",
			"accountNumber": "0123456789",
			"code": null,
			"content": "chuyen tien CKAB23CD",
			"transferType": "in",
			"transferAmount": 150000,
			"accumulated": 19077000,
			"subAccount": null,
			"referenceCode": "MBVCB.3278907687",
			"description": ""
		}`)

		It("should decode the SePay payload and keep the raw bytes", func() {
			svc.reconcileResult = &transaction.ReconcileResult{
				Outcome: transaction.OutcomeReconciled,
				Status:  transaction.StatusSuccess,
			}

			rec := serve(http.MethodPost, "/payments/webhook", payload)
			Expect(rec.Code).To(Equal(http.StatusOK))

			got := svc.reconcilePayload
			Expect(got.GatewayTxnID()).To(Equal("92704"))
			Expect(got.Content).To(Equal("chuyen tien CKAB23CD"))
			Expect(got.TransferAmount.Equal(decimal.NewFromInt(150000))).To(BeTrue())
			Expect(got.Code).To(BeNil())
			Expect(got.IsOutgoing()).To(BeFalse())
			Expect(string(got.Raw)).To(Equal(string(payload)))

			body := decodeBody(rec)
			Expect(body["success"]).To(BeTrue())
			Expect(body["status"]).To(Equal("SUCCESS"))
		})

		It("should acknowledge non-matching deliveries with 200", func() {
			svc.reconcileResult = &transaction.ReconcileResult{Outcome: transaction.OutcomeUnknownTransaction}

			rec := serve(http.MethodPost, "/payments/webhook", payload)
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decodeBody(rec)
			Expect(body["success"]).To(BeTrue())
			Expect(body).NotTo(HaveKey("status"))
		})

		It("should answer 500 when the store write fails so the gateway retries", func() {
			svc.reconcileErr = errors.ErrStoreWrite.WithCause(stdErrors.New("disk full"))

			rec := serve(http.MethodPost, "/payments/webhook", payload)
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})

		It("should answer 409 while the same delivery is in flight", func() {
			svc.reconcileErr = errors.ErrDeliveryInProgress

			rec := serve(http.MethodPost, "/payments/webhook", payload)
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("should reject a body that is not JSON", func() {
			rec := serve(http.MethodPost, "/payments/webhook", []byte(`{`))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(svc.reconcilePayload).To(BeNil())
		})
	})
})
