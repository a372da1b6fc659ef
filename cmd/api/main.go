package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	"app/internal/infra/event"
	"app/internal/infra/geo"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	// .envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusHistory{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.PromoCode{},
		&model.PromoCodeUsage{},
		&model.LoyaltyTransaction{},
		&model.DeliveryPartner{},
		&model.Restaurant{},
		&model.RestaurantSubscription{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//イベント発行（broker未設定ならno-op）
	var events usecase.EventPublisher = usecase.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "marketplace-api", 1024)
		kp.Start(ctx)
		defer kp.WaitClosed()
		events = kp
	}

	//パートナー現在地キャッシュ（redis未設定なら無効）
	var locator usecase.PartnerLocator
	if cfg.RedisAddr != "" {
		locator = geo.NewLocationCache(geo.NewClient(cfg.RedisAddr))
	}

	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	ledgerUC := usecase.NewLedgerUsecase(txm, events, usecase.LedgerConfig{
		CommissionBps: cfg.CommissionBps,
		PartnerBonus:  cfg.PartnerBonus,
	})
	promoUC := usecase.NewPromoUsecase(txm, usecase.PromoConfig{
		PointsPerRupee:      cfg.PointsPerRupee,
		RedeemPaisePerPoint: cfg.RedeemPaisePerPoint,
		ExpiryDays:          cfg.LoyaltyExpiryDays,
	})
	dispatchCfg := usecase.DefaultDispatchConfig()
	dispatchCfg.RadiusKm = cfg.DispatchRadiusKm
	dispatchCfg.TopN = cfg.DispatchTopN
	dispatchCfg.MaxAttempts = cfg.DispatchMaxAttempts
	dispatchUC := usecase.NewDispatchUsecase(txm, locator, events, dispatchCfg)
	orderUC := usecase.NewOrderUsecase(txm, ledgerUC, promoUC, dispatchUC, events, usecase.OrderConfig{
		DeliveryFee: cfg.DeliveryFeePaise,
		PlatformFee: cfg.PlatformFeePaise,
		TaxBps:      cfg.TaxBps,
	})
	billingUC := usecase.NewBillingUsecase(txm)

	//プラットフォームウォレットは起動時に用意しておく
	if _, err := ledgerUC.Onboard(ctx, model.WalletOwnerPlatform, 1); err != nil {
		log.Fatalf("platform wallet: %v", err)
	}

	//READY_FOR_PICKUP滞留の再配車
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := dispatchUC.AllocatePending(ctx, 50); err != nil {
					log.Printf("dispatch repoll: %v", err)
				} else if n > 0 {
					log.Printf("dispatch repoll assigned %d orders", n)
				}
			}
		}
	}()

	e := server.New(cfg, server.Handlers{
		Order:   handler.NewOrderHandler(orderUC),
		Partner: handler.NewPartnerHandler(dispatchUC),
		Wallet:  handler.NewWalletHandler(ledgerUC),
		Billing: handler.NewBillingHandler(billingUC),
		Promo:   handler.NewPromoHandler(promoUC),
	})

	go func() {
		if err := server.Start(e, cfg.Port); err != nil {
			log.Printf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
