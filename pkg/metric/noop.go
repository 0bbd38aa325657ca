package metric

import (
	"net/http"
	"time"
)

var _ Factory = (*noopFactory)(nil)

type noopFactory struct{}

// NewNoop returns a Factory that records nothing, used when metrics are disabled.
func NewNoop() Factory {
	return noopFactory{}
}

func (noopFactory) HTTP() HTTP                     { return noopHTTP{} }
func (noopFactory) Reconciliation() Reconciliation { return noopReconciliation{} }
func (noopFactory) Handler() http.Handler          { return http.NotFoundHandler() }

type noopHTTP struct{}

func (noopHTTP) Request(string, string, int, time.Duration) {}

type noopReconciliation struct{}

func (noopReconciliation) Created(int)                             {}
func (noopReconciliation) CreateFailed(string)                     {}
func (noopReconciliation) Webhook(string)                          {}
func (noopReconciliation) Classified(string)                       {}
func (noopReconciliation) ObserveDuration(string, time.Duration) {}
