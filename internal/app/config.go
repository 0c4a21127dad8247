package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	LoginPath string `default:"/login?next=/pending-orders" usage:"Where unauthenticated shoppers are sent" flag:"login-path"`

	Storefront   StorefrontConfig
	Payment      PaymentConfig
	Discount     DiscountConfig
	Session      SessionConfig
	BankTransfer BankTransferConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorefrontConfig points at the storefront API.
type StorefrontConfig struct {
	BaseURL string        `env:"BASE_URL" usage:"Storefront API base URL (CHECKOUT_STOREFRONT_BASE_URL or STOREFRONT_URL)" flag:"storefront-url"`
	Timeout time.Duration `default:"15s" usage:"Per-request storefront timeout"`
}

// PaymentConfig configures the payment widget.
type PaymentConfig struct {
	PublicKey   string `usage:"Payment provider public key" flag:"payment-public-key"`
	TxRefPrefix string `default:"BES" usage:"Transaction reference prefix"`
	Options     string `default:"card,mobilemoney,ussd" usage:"Payment options offered by the widget"`
	Title       string `default:"beta-eshopping" usage:"Widget title"`
	Logo        string `default:"" usage:"Widget logo URL"`
}

// DiscountConfig controls the discount claim workflow.
type DiscountConfig struct {
	ReloadDelay time.Duration `default:"3s" usage:"Delay between a successful claim and the order reload"`
}

// SessionConfig controls the checkout session registry.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle lifetime of a checkout session"`
	SweepInterval time.Duration `default:"1m" usage:"How often idle sessions are expired"`
	MaxSessions   int           `default:"10000" usage:"Readiness fails above this many live sessions"`
}

// BankTransferConfig is the offline payment information shown on the page.
type BankTransferConfig struct {
	Bank          string `default:"Guaranty Trust Bank Ltd"`
	Address       string `default:"31 Mobolaji Bank Anthony Way, Ikeja, Lagos, Nigeria."`
	SortCode      string `default:"058-152023"`
	SwiftCode     string `default:"GTBINGLA"`
	NUBAN         string `default:"0679125931"`
	AccountName   string `default:"Beta Courier Services Ltd"`
	DollarAccount string `default:"0679125931"`
	NairaAccount  string `default:"0002887073"`
	ProofEmail    string `default:"info@beta-eshopping.com"`
}

func (c BankTransferConfig) details() checkout.BankTransfer {
	return checkout.BankTransfer{
		Bank:          c.Bank,
		Address:       c.Address,
		SortCode:      c.SortCode,
		SwiftCode:     c.SwiftCode,
		NUBAN:         c.NUBAN,
		AccountName:   c.AccountName,
		DollarAccount: c.DollarAccount,
		NairaAccount:  c.NairaAccount,
		ProofEmail:    c.ProofEmail,
	}
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Rate  float64 `default:"5" usage:"Sustained requests per second per client"`
	Burst int     `default:"20" usage:"Burst size per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		Args:      args,
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the platform-provided PORT and STOREFRONT_URL
// variables onto the CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storefront.BaseURL == "" {
		c.Storefront.BaseURL = os.Getenv("STOREFRONT_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.Storefront.BaseURL == "" {
		return errors.New("storefront URL is required: set CHECKOUT_STOREFRONT_BASE_URL or STOREFRONT_URL")
	}
	if c.Payment.PublicKey == "" {
		return errors.New("payment public key is required: set CHECKOUT_PAYMENT_PUBLIC_KEY")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.Errorf("session sweep interval must be positive, got %s", c.Session.SweepInterval)
	}
	return nil
}
