package transaction

import (
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-reconciliation/internal"
)

// PaymentLinkBuilder fills the QR image URL template of the payment gateway.
type PaymentLinkBuilder struct {
	baseURL  string
	account  string
	bankName string
}

func NewPaymentLinkBuilder(cfg internal.BankConfig) *PaymentLinkBuilder {
	baseURL := cfg.QRBaseURL
	if baseURL == "" {
		baseURL = internal.DefaultQRBaseURL
	}
	return &PaymentLinkBuilder{
		baseURL:  baseURL,
		account:  cfg.Account,
		bankName: cfg.Name,
	}
}

func (b *PaymentLinkBuilder) Build(amount decimal.Decimal, content string) string {
	q := url.Values{}
	q.Set("acc", b.account)
	q.Set("bank", b.bankName)
	q.Set("amount", amount.String())
	q.Set("des", content)
	return b.baseURL + "?" + q.Encode()
}
