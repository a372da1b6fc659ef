package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）

	JWTSecret string // JWT署名シークレット

	RedisAddr    string   // パートナー現在地キャッシュ（空なら無効）
	KafkaBrokers []string // イベント発行先（空なら無効）
	KafkaTopic   string

	CommissionBps    int64 // プラットフォーム手数料（basis points）
	PartnerBonus     int64 // 配達1件あたりのボーナス（パイサ）
	DeliveryFeePaise int64 // 固定配達料
	PlatformFeePaise int64 // 固定プラットフォーム料
	TaxBps           int64 // 税率（basis points）

	PointsPerRupee      int64 // ポイント獲得レート
	RedeemPaisePerPoint int64 // 1ポイントの償還価値
	LoyaltyExpiryDays   int   // ポイント有効日数

	DispatchRadiusKm    float64 // 配車検索半径
	DispatchTopN        int     // スコア比較する候補数
	DispatchMaxAttempts int     // 確保リトライ回数

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:  os.Getenv("REDIS_ADDR"),
		KafkaTopic: getenv("KAFKA_TOPIC", "marketplace.events"),

		GoEnv: getenv("GO_ENV", "dev"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	// 金銭まわり（パイサ/bps）
	if cfg.CommissionBps, err = i64Default("COMMISSION_BPS", 2000); err != nil {
		return Config{}, err
	}
	if cfg.PartnerBonus, err = i64Default("PARTNER_BONUS_PAISE", 0); err != nil {
		return Config{}, err
	}
	if cfg.DeliveryFeePaise, err = i64Default("DELIVERY_FEE_PAISE", 4000); err != nil {
		return Config{}, err
	}
	if cfg.PlatformFeePaise, err = i64Default("PLATFORM_FEE_PAISE", 500); err != nil {
		return Config{}, err
	}
	if cfg.TaxBps, err = i64Default("TAX_BPS", 500); err != nil {
		return Config{}, err
	}

	if cfg.PointsPerRupee, err = i64Default("POINTS_PER_RUPEE", 1); err != nil {
		return Config{}, err
	}
	if cfg.RedeemPaisePerPoint, err = i64Default("REDEEM_PAISE_PER_POINT", 25); err != nil {
		return Config{}, err
	}
	if cfg.LoyaltyExpiryDays, err = atoiDefault("LOYALTY_EXPIRY_DAYS", 365); err != nil {
		return Config{}, err
	}

	if cfg.DispatchRadiusKm, err = f64Default("DISPATCH_RADIUS_KM", 10); err != nil {
		return Config{}, err
	}
	if cfg.DispatchTopN, err = atoiDefault("DISPATCH_TOP_N", 5); err != nil {
		return Config{}, err
	}
	if cfg.DispatchMaxAttempts, err = atoiDefault("DISPATCH_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func i64Default(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func f64Default(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}
