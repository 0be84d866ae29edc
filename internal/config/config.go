package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/qtosh1/cats-farmer/internal/ton"
)

// DefaultStartParam is sent as the referral code when REF_ID is empty.
const DefaultStartParam = "eVMDZF6Fxdb8eNnjocoOP"

// Config holds farmer configuration.
type Config struct {
	APIID           int    `env:"API_ID,required,notEmpty"`
	APIHash         string `env:"API_HASH,required,notEmpty"`
	DoChannelsTasks bool   `env:"DO_CHANNELS_TASKS" envDefault:"false"`
	RefID           string `env:"REF_ID"`
	UseProxyFile    bool   `env:"USE_PROXY_FROM_FILE" envDefault:"false"`

	SessionsDir    string `env:"SESSIONS_DIR" envDefault:"sessions"`
	UserAgentsFile string `env:"USER_AGENTS_FILE" envDefault:"user_agents.json"`
	ProxiesFile    string `env:"PROXIES_FILE" envDefault:"bot/config/proxies.txt"`

	BackendURL    string `env:"BACKEND_URL" envDefault:"https://cats-backend-cxblew-prod.up.railway.app"`
	BotUsername   string `env:"BOT_USERNAME" envDefault:"catsgang_bot"`
	AppShortName  string `env:"APP_SHORT_NAME" envDefault:"join"`
	TaskGroup     string `env:"TASK_GROUP" envDefault:"cats"`
	ProxyCheckURL string `env:"PROXY_CHECK_URL" envDefault:"https://httpbin.org/ip"`

	CycleSleep    time.Duration `env:"CYCLE_SLEEP" envDefault:"10h"`
	ErrorSleep    time.Duration `env:"ERROR_SLEEP" envDefault:"3s"`
	StartDelayMax time.Duration `env:"START_DELAY_MAX" envDefault:"30s"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	StatusAddr  string `env:"STATUS_ADDR"`
	DatabaseURL string `env:"DATABASE_URL"`

	NotifyBotToken string `env:"NOTIFY_BOT_TOKEN"`
	NotifyChatID   int64  `env:"NOTIFY_CHAT_ID"`

	WalletAddress     string `env:"WALLET_ADDRESS"`
	ToncenterEndpoint string `env:"TONCENTER_ENDPOINT" envDefault:"https://toncenter.com/api/v2/jsonRPC"`
	ToncenterAPIKey   string `env:"TONCENTER_API_KEY"`
}

// Load reads an optional .env file, then parses environment variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.RefID = strings.TrimSpace(cfg.RefID)
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.BotUsername = strings.TrimPrefix(strings.TrimSpace(cfg.BotUsername), "@")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if c.APIID <= 0 {
		return errors.New("API_ID must be positive")
	}
	if strings.TrimSpace(c.APIHash) == "" {
		return errors.New("API_HASH must be set")
	}
	if c.BotUsername == "" || c.AppShortName == "" {
		return errors.New("BOT_USERNAME and APP_SHORT_NAME must be set")
	}
	for name, d := range map[string]time.Duration{
		"CYCLE_SLEEP":  c.CycleSleep,
		"ERROR_SLEEP":  c.ErrorSleep,
		"HTTP_TIMEOUT": c.HTTPTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.StartDelayMax < 0 {
		return errors.New("START_DELAY_MAX must not be negative")
	}
	if (c.NotifyBotToken == "") != (c.NotifyChatID == 0) {
		return errors.New("NOTIFY_BOT_TOKEN and NOTIFY_CHAT_ID must be set together")
	}
	if c.WalletAddress != "" {
		if _, err := ton.ParseAddress(c.WalletAddress); err != nil {
			return fmt.Errorf("WALLET_ADDRESS: %w", err)
		}
	}
	return nil
}

// StartParam is the referral code passed to the mini-app.
func (c Config) StartParam() string {
	if c.RefID == "" {
		return DefaultStartParam
	}
	return c.RefID
}

// NotifyEnabled reports whether Bot API run reports are configured.
func (c Config) NotifyEnabled() bool {
	return c.NotifyBotToken != "" && c.NotifyChatID != 0
}
