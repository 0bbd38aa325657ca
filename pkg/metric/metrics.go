package metric

import (
	"net/http"
	"time"
)

type (
	Factory interface {
		HTTP() HTTP
		Reconciliation() Reconciliation
		Handler() http.Handler
	}

	HTTP interface {
		Request(method, path string, status int, duration time.Duration)
	}

	Reconciliation interface {
		Created(attempts int)
		CreateFailed(reason string)
		Webhook(outcome string)
		Classified(status string)
		ObserveDuration(operation string, duration time.Duration)
	}
)
