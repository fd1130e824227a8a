package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"smartshop/internal/config"
	"smartshop/internal/infra/db"
	"smartshop/internal/infra/kafka"
	"smartshop/internal/infra/payment"
	infraRepo "smartshop/internal/infra/repository"
	"smartshop/internal/logger"
	"smartshop/internal/notify"
	"smartshop/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "ctl",
		Short:        "smartshop operator commands",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(replayPaymentCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			gormDB, err := db.Connect(dbCfg)
			if err != nil {
				return err
			}
			if err := db.Migrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

// webhookを取りこぼしたときに手動で結果を反映する
func replayPaymentCmd() *cobra.Command {
	var outcome string

	cmd := &cobra.Command{
		Use:   "replay-payment [payment-intent-id]",
		Short: "Apply a payment outcome to its order",
		Long: `Apply a payment outcome to the order referenced by the payment intent.

The command goes through the same path as the payment endpoints: the intent is
retrieved from the gateway and the order moves only if it is still PENDING.

Examples:
  ctl replay-payment pi_3Nq... --outcome success
  ctl replay-payment pi_3Nq... --outcome failure`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outcome != "success" && outcome != "failure" {
				return fmt.Errorf("--outcome must be success or failure")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel, cfg.GoEnv)

			gormDB, err := db.Connect(cfg.DB)
			if err != nil {
				return err
			}

			var notifier notify.Notifier = notify.NewLogNotifier(log)
			if cfg.SMTPHost != "" {
				notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
					Host:       cfg.SMTPHost,
					Port:       cfg.SMTPPort,
					Username:   cfg.SMTPUsername,
					Password:   cfg.SMTPPassword,
					From:       cfg.MailFrom,
					AdminEmail: cfg.AdminEmail,
				})
			}
			dispatcher := notify.NewDispatcher(1, 10, cfg.NotifyTimeout, log)

			events, producer := newOrderEvents(cfg, log)
			hooks := notify.NewOrderHooks(dispatcher, notifier, events)

			gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
			uc := usecase.NewPaymentUsecase(
				infraRepo.NewTxManagerGorm(gormDB),
				gateway,
				gateway,
				nil,
				hooks,
				&realClock{},
				log,
				cfg.DefaultCurrency,
			)

			ctx := cmd.Context()
			res, err := uc.ReplayPayment(ctx, args[0], outcome == "success")

			//確認メールを送り切ってから終わる
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.NotifyTimeout+5*time.Second)
			defer cancel()
			if cerr := dispatcher.Close(closeCtx); cerr != nil {
				log.Warn().Err(cerr).Msg("notification dispatcher did not drain")
			}
			if producer != nil {
				if cerr := producer.Close(closeCtx); cerr != nil {
					log.Warn().Err(cerr).Msg("kafka producer close failed")
				}
			}

			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "success", "payment outcome (success, failure)")

	return cmd
}

// APIと同じく注文イベントも流す。Kafka未設定なら両方nil
func newOrderEvents(cfg config.Config, log zerolog.Logger) (notify.EventPublisher, *kafka.Producer) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 16, log)
	producer.Start()
	return kafka.NewOrderEventPublisher(producer, "smartshop-ctl"), producer
}
