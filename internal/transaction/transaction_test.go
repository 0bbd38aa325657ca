package transaction_test

import (
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
)

var _ = Describe("Classify", func() {
	expiresAt := time.Date(2026, 1, 15, 9, 10, 0, 0, time.UTC)
	expected := decimal.RequireFromString("150000.50")

	DescribeTable("truth table",
		func(now time.Time, transferred string, status string) {
			Expect(transaction.Classify(now, expiresAt, expected, decimal.RequireFromString(transferred))).To(Equal(status))
		},
		Entry("enough, before expiry", expiresAt.Add(-time.Second), "150000.50", transaction.StatusSuccess),
		Entry("enough, at expiry", expiresAt, "150000.50", transaction.StatusSuccess),
		Entry("enough, after expiry", expiresAt.Add(time.Nanosecond), "150000.50", transaction.StatusLatePayment),
		Entry("short by a cent, before expiry", expiresAt.Add(-time.Second), "150000.49", transaction.StatusPartialPaid),
		Entry("short, after expiry", expiresAt.Add(time.Hour), "1", transaction.StatusPartialPaid),
		Entry("zero transfer", expiresAt, "0", transaction.StatusPartialPaid),
	)
})

var _ = Describe("IsReconcilable", func() {
	It("should only admit pending and partially paid intents", func() {
		Expect(transaction.IsReconcilable(transaction.StatusPending)).To(BeTrue())
		Expect(transaction.IsReconcilable(transaction.StatusPartialPaid)).To(BeTrue())
		Expect(transaction.IsReconcilable(transaction.StatusSuccess)).To(BeFalse())
		Expect(transaction.IsReconcilable(transaction.StatusLatePayment)).To(BeFalse())
		Expect(transaction.IsReconcilable("EXPIRED")).To(BeFalse())
	})
})

var _ = Describe("PaymentLinkBuilder", func() {
	It("should fill the gateway QR template", func() {
		builder := transaction.NewPaymentLinkBuilder(errors.BankConfig{
			Account: "0123456789",
			Name:    "MB Bank",
		})

		link, err := url.Parse(builder.Build(decimal.RequireFromString("150000.50"), "CKAB23CD"))
		Expect(err).NotTo(HaveOccurred())
		Expect(link.Scheme + "://" + link.Host + link.Path).To(Equal(errors.DefaultQRBaseURL))

		q := link.Query()
		Expect(q.Get("acc")).To(Equal("0123456789"))
		Expect(q.Get("bank")).To(Equal("MB Bank"))
		Expect(q.Get("amount")).To(Equal("150000.5"))
		Expect(q.Get("des")).To(Equal("CKAB23CD"))
	})
})

var _ = Describe("WebhookPayload", func() {
	It("should recognise outgoing transfers regardless of case", func() {
		Expect((&transaction.WebhookPayload{TransferType: "OUT"}).IsOutgoing()).To(BeTrue())
		Expect((&transaction.WebhookPayload{TransferType: "in"}).IsOutgoing()).To(BeFalse())
	})
})
