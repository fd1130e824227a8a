package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartshop/internal/config"
	"smartshop/internal/handler"
	"smartshop/internal/infra/db"
	"smartshop/internal/infra/kafka"
	"smartshop/internal/infra/payment"
	"smartshop/internal/infra/redisx"
	infraRepo "smartshop/internal/infra/repository"
	"smartshop/internal/logger"
	"smartshop/internal/notify"
	"smartshop/internal/server"
	"smartshop/internal/usecase"
	"smartshop/internal/validator"

	"github.com/joho/godotenv"
)

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.GoEnv)

	//DB接続
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("db handle failed")
	}

	//Repository（GORM実装）
	txm := infraRepo.NewTxManagerGorm(gormDB)
	clock := &realClock{}

	//通知。SMTP未設定ならログだけ
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
	dispatcher := notify.NewDispatcher(cfg.NotifyWorkers, 100, cfg.NotifyTimeout, log)

	//注文イベント（任意）
	var events notify.EventPublisher
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 256, log)
		producer.Start()
		events = kafka.NewOrderEventPublisher(producer, "smartshop-api")
	}
	hooks := notify.NewOrderHooks(dispatcher, notifier, events)

	//webhookの重複排除（任意）
	var dedup usecase.EventDeduper
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		dedup = redisx.NewWebhookDeduper(rdb)
	}

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txm, validator.NewOrderValidator(), hooks, clock, log, usecase.OrderOptions{
		Location:    cfg.OrderCodeLocation,
		PriceSource: usecase.PriceSource(cfg.OrderPriceSource),
	})
	paymentUC := usecase.NewPaymentUsecase(txm, gateway, gateway, dedup, hooks, clock, log, cfg.DefaultCurrency)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, hooks, clock, log)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Health:      handler.NewHealthHandler(sqlDB.PingContext),
		Orders:      handler.NewOrderHandler(orderUC),
		Payments:    handler.NewPaymentHandler(paymentUC),
		AdminOrders: handler.NewAdminOrderHandler(adminOrderUC),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Start(ctx, e, addr, log); err != nil {
		log.Error().Err(err).Msg("http server stopped")
	}

	//残っている通知・イベントを流し切る
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("notification dispatcher did not drain")
	}
	if producer != nil {
		if err := producer.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("kafka producer close failed")
		}
	}
	_ = sqlDB.Close()
}
