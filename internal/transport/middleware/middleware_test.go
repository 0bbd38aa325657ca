package middleware_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/auth"
	"github.com/frahmantamala/payment-reconciliation/internal/transport/middleware"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
)

type httpRequest struct {
	method, path string
	status       int
}

type recordingHTTP struct {
	requests []httpRequest
}

func (r *recordingHTTP) Request(method, path string, status int, _ time.Duration) {
	r.requests = append(r.requests, httpRequest{method: method, path: path, status: status})
}

var _ = Describe("Middleware", func() {
	var (
		logs      *bytes.Buffer
		lg        *slog.Logger
		guard     *auth.Guard
		reached   bool
		caller    internal.Caller
		protected http.Handler
	)

	BeforeEach(func() {
		logs = &bytes.Buffer{}
		lg = slog.New(slog.NewJSONHandler(logs, nil))
		guard = auth.NewGuard(internal.SecurityConfig{
			InternalAPIKey: "internal-secret",
			GatewayAPIKey:  "sepay-secret",
		})
		reached = false
		caller = ""
		protected = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			caller = internal.CallerFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})
	})

	Describe("RequireInternalKey", func() {
		It("should pass a request carrying the internal key", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments/ORDER-1", nil)
			req.Header.Set("x-api-key", "internal-secret")
			rec := httptest.NewRecorder()

			middleware.RequireInternalKey(guard, lg)(protected).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(reached).To(BeTrue())
			Expect(caller).To(Equal(internal.CallerInternal))
		})

		It("should stop a request without the key before the handler", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments/ORDER-1", nil)
			rec := httptest.NewRecorder()

			middleware.RequireInternalKey(guard, lg)(protected).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(reached).To(BeFalse())

			var body map[string]map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("MISSING_API_KEY"))
		})

		It("should not accept the gateway token in place of the key", func() {
			req := httptest.NewRequest(http.MethodGet, "/payments/ORDER-1", nil)
			req.Header.Set("Authorization", "Bearer sepay-secret")
			rec := httptest.NewRecorder()

			middleware.RequireInternalKey(guard, lg)(protected).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(reached).To(BeFalse())
		})
	})

	Describe("RequireGatewayToken", func() {
		It("should pass the gateway bearer token", func() {
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", nil)
			req.Header.Set("Authorization", "Bearer sepay-secret")
			rec := httptest.NewRecorder()

			middleware.RequireGatewayToken(guard, lg)(protected).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(caller).To(Equal(internal.CallerGateway))
		})

		It("should stop a wrong token before the handler", func() {
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", nil)
			req.Header.Set("Authorization", "Bearer guess")
			rec := httptest.NewRecorder()

			middleware.RequireGatewayToken(guard, lg)(protected).ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(reached).To(BeFalse())
		})
	})

	Describe("LoggingMiddleware", func() {
		It("should mask secrets and record the route pattern", func() {
			metrics := &recordingHTTP{}
			router := chi.NewRouter()
			router.Use(middleware.LoggingMiddleware(lg, metrics))
			router.Get("/payments/{ref_code}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			req := httptest.NewRequest(http.MethodGet, "/payments/ORDER-1", nil)
			req.Header.Set("x-api-key", "internal-secret")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(logs.String()).NotTo(ContainSubstring("internal-secret"))
			Expect(logs.String()).To(ContainSubstring("[FILTERED]"))
			Expect(metrics.requests).To(Equal([]httpRequest{
				{method: http.MethodGet, path: "/payments/{ref_code}", status: http.StatusNotFound},
			}))
		})

		It("should leave the request body readable for the handler", func() {
			var seen string
			handler := middleware.LoggingMiddleware(lg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				seen = string(b)
			}))

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{"content":"CKAB23CD","token":"t"}`))
			handler.ServeHTTP(httptest.NewRecorder(), req)

			Expect(seen).To(Equal(`{"content":"CKAB23CD","token":"t"}`))
			Expect(logs.String()).To(ContainSubstring("CKAB23CD"))
			Expect(logs.String()).NotTo(ContainSubstring(`\"token\":\"t\"`))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("should turn a panic into a 500 error body", func() {
			handler := middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
			Expect(logs.String()).To(ContainSubstring("panic recovered"))
		})
	})

	Describe("RequestID", func() {
		It("should reuse the caller's trace id", func() {
			var traceID string
			handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				traceID = logger.TraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Trace-ID", "trace-123")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			Expect(traceID).To(Equal("trace-123"))
			Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-123"))
		})

		It("should mint a trace id when none is given", func() {
			rec := httptest.NewRecorder()
			middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Header().Get("X-Trace-ID")).NotTo(BeEmpty())
		})
	})
})
