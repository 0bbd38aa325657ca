package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
)

// Client plays the part of SePay: it posts bank transfer notifications to the
// reconciliation webhook the way the real gateway does, including concurrent
// duplicate deliveries.
type Client struct {
	webhookURL string
	apiKey     string
	maxWorkers int
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	WebhookURL string
	APIKey     string
	Timeout    time.Duration
	MaxWorkers int
}

// Result is the gateway's view of one delivery.
type Result struct {
	Delivery   int
	StatusCode int
	Body       string
	Err        error
}

func (r Result) Acknowledged() bool {
	return r.Err == nil && r.StatusCode == http.StatusOK
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Client{
		webhookURL: cfg.WebhookURL,
		apiKey:     cfg.APIKey,
		maxWorkers: maxWorkers,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewTransfer builds an incoming transfer notification.
func NewTransfer(id int64, content string, amount decimal.Decimal, accountNumber string) *transaction.WebhookPayload {
	return &transaction.WebhookPayload{
		ID:              json.Number(strconv.FormatInt(id, 10)),
		Gateway:         "SePay",
		TransactionDate: time.Now().Format("2006-01-02 15:04:05"),
		AccountNumber:   accountNumber,
		Content:         content,
		TransferType:    "in",
		TransferAmount:  amount,
		Accumulated:     amount,
		ReferenceCode:   fmt.Sprintf("FT%d", id),
	}
}

func (c *Client) Send(ctx context.Context, payload *transaction.WebhookPayload) Result {
	return c.deliver(ctx, 1, payload)
}

// SendConcurrent delivers the same notification copies times through a worker pool,
// the way a gateway retrying on timeout can overlap deliveries.
func (c *Client) SendConcurrent(ctx context.Context, payload *transaction.WebhookPayload, copies int) []Result {
	jobs := make(chan int)
	results := make([]Result, copies)

	var wg sync.WaitGroup
	workers := c.maxWorkers
	if copies < workers {
		workers = copies
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for delivery := range jobs {
				c.logger.Debug("worker sending delivery", "worker_id", workerID, "delivery", delivery)
				results[delivery-1] = c.deliver(ctx, delivery, payload)
			}
		}(w)
	}

	for i := 1; i <= copies; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i-1] = Result{Delivery: i, Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (c *Client) deliver(ctx context.Context, delivery int, payload *transaction.WebhookPayload) Result {
	result := Result{Delivery: delivery}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Err = fmt.Errorf("marshal webhook payload: %w", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		result.Err = fmt.Errorf("create webhook request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("webhook request failed: %w", err)
		c.logger.Error("webhook delivery failed", "delivery", delivery, "error", err)
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	result.StatusCode = resp.StatusCode
	result.Body = string(respBody)

	c.logger.Info("webhook delivered",
		"delivery", delivery,
		"gateway_txn_id", payload.GatewayTxnID(),
		"status_code", resp.StatusCode,
		"response", result.Body)

	return result
}
