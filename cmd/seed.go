package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	txmodel "github.com/frahmantamala/payment-reconciliation/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-reconciliation/internal/transaction"
	txPostgres "github.com/frahmantamala/payment-reconciliation/internal/transaction/postgres"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
)

const demoRefPrefix = "DEMO-"

var (
	clearData  bool
	seedCount  int
	seedAmount string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo payment intents",
	Long:  `Create pending demo payment intents for development, printing their content codes and QR links.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		if clearData {
			result := db.Where("ref_code LIKE ?", demoRefPrefix+"%").Delete(&txmodel.PaymentTransaction{})
			if result.Error != nil {
				log.Fatalf("failed to clear demo intents: %v", result.Error)
			}
			fmt.Printf("Removed %d demo intents\n", result.RowsAffected)
		}

		amount, err := decimal.NewFromString(seedAmount)
		if err != nil {
			log.Fatalf("invalid amount %q: %v", seedAmount, err)
		}

		service := transaction.NewService(
			txPostgres.NewTransactionRepository(db),
			transaction.NewPaymentLinkBuilder(cfg.Bank),
			cfg.Payment,
			logger.LoggerWrapper(),
		)

		batch := time.Now().Unix()
		for i := 1; i <= seedCount; i++ {
			refCode := fmt.Sprintf("%s%d-%d", demoRefPrefix, batch, i)
			resp, err := service.Create(context.Background(), transaction.InitRequest{
				Amount:  amount,
				RefCode: refCode,
			})
			if err != nil {
				log.Fatalf("failed to seed %s: %v", refCode, err)
			}
			fmt.Printf("Seeded %s content=%s expires=%s\n  %s\n",
				refCode, resp.Content, resp.ExpiresAt.Format(time.RFC3339), resp.QRURL)
		}
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing demo intents before seeding")
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 3, "number of demo intents to create")
	seedCmd.Flags().StringVar(&seedAmount, "amount", "150000", "expected amount of each demo intent")
}
