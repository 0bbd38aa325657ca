package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-reconciliation/internal/paymentgateway"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook <content> <amount>",
	Short: "Send a test gateway webhook",
	Long:  `Post a SePay shaped transfer notification to a running server, optionally as several concurrent duplicate deliveries.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runWebhook,
}

var (
	webhookURL     string
	webhookAPIKey  string
	webhookTxnID   int64
	webhookCopies  int
	webhookOutward bool
)

func init() {
	webhookCmd.Flags().StringVar(&webhookURL, "url", "", "webhook URL (defaults to the local server)")
	webhookCmd.Flags().StringVar(&webhookAPIKey, "api-key", "", "gateway bearer token (defaults to security.gateway_api_key)")
	webhookCmd.Flags().Int64Var(&webhookTxnID, "id", 0, "gateway transaction id (defaults to the current unix time)")
	webhookCmd.Flags().IntVar(&webhookCopies, "copies", 1, "number of concurrent identical deliveries")
	webhookCmd.Flags().BoolVar(&webhookOutward, "out", false, "send an outgoing transfer instead of an incoming one")
}

func runWebhook(_ *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}

	url, apiKey, account := webhookURL, webhookAPIKey, ""
	if cfg, err := loadConfig("."); err == nil {
		if url == "" {
			url = fmt.Sprintf("http://localhost:%d/api/v1/payments/webhook", cfg.Server.Port)
		}
		if apiKey == "" {
			apiKey = cfg.Security.GatewayAPIKey
		}
		account = cfg.Bank.Account
	}
	if url == "" || apiKey == "" {
		return fmt.Errorf("no config found: pass --url and --api-key")
	}

	id := webhookTxnID
	if id == 0 {
		id = time.Now().Unix()
	}

	payload := paymentgateway.NewTransfer(id, args[0], amount, account)
	if webhookOutward {
		payload.TransferType = "out"
	}

	client := paymentgateway.NewClient(paymentgateway.Config{
		WebhookURL: url,
		APIKey:     apiKey,
	}, logger.LoggerWrapper())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, result := range client.SendConcurrent(ctx, payload, webhookCopies) {
		if result.Err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "delivery %d: %v\n", result.Delivery, result.Err)
			continue
		}
		fmt.Printf("delivery %d: %d %s\n", result.Delivery, result.StatusCode, result.Body)
	}
	if failed {
		return fmt.Errorf("some deliveries failed")
	}
	return nil
}
