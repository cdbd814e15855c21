package params

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Exchange holds the economic parameters of the AMM.
type Exchange struct {
	// FeeRate is charged on every trade: added on top of cost for buys,
	// taken out of the proceeds for sells.
	FeeRate decimal.Decimal

	// LiquidityDefault is the LMSR b parameter assigned to markets that do
	// not specify one. LiquidityMin is the lowest b an admin may set; below
	// that prices swing too hard per share traded.
	LiquidityDefault decimal.Decimal
	LiquidityMin     decimal.Decimal
}

// Admin describes the bootstrap administrator seeded on first start.
type Admin struct {
	Email    string
	Username string
	Password string
	// BootstrapCredit, when positive, is deposited into the admin wallet at
	// seed time so the platform can be exercised immediately.
	BootstrapCredit decimal.Decimal
}

type Server struct {
	APIAddr      string
	DBPath       string
	PriceLogPath string
	LogFile      string
}

type Config struct {
	Exchange Exchange
	Admin    Admin
	Server   Server
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			FeeRate:          decimal.NewFromFloat(0.02),
			LiquidityDefault: decimal.NewFromInt(1000),
			LiquidityMin:     decimal.NewFromInt(100),
		},
		Admin: Admin{
			Email:           "admin@localhost",
			Username:        "admin",
			Password:        "change-me",
			BootstrapCredit: decimal.Zero,
		},
		Server: Server{
			APIAddr:      ":8080",
			DBPath:       "data/exchange.db",
			PriceLogPath: "data/pricelog",
			LogFile:      "data/predictd.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("FEE_RATE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.Exchange.FeeRate = d
		}
	}
	if v := os.Getenv("LIQUIDITY_DEFAULT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.GreaterThanOrEqual(cfg.Exchange.LiquidityMin) {
			cfg.Exchange.LiquidityDefault = d
		}
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Admin.Email = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("ADMIN_BOOTSTRAP_CREDIT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.Admin.BootstrapCredit = d
		}
	}

	cfg.Server.APIAddr = getEnv("API_ADDR", cfg.Server.APIAddr)
	cfg.Server.DBPath = getEnv("DB_PATH", cfg.Server.DBPath)
	cfg.Server.PriceLogPath = getEnv("PRICELOG_PATH", cfg.Server.PriceLogPath)
	cfg.Server.LogFile = getEnv("LOG_FILE", cfg.Server.LogFile)

	return cfg
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
