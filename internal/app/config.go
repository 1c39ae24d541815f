package app

import (
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/google"
	"github.com/xenking/furniture-store/internal/payment/razorpay"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

const envProduction = "production"

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Env  string `usage:"Deployment environment: development or production (GO_ENV)"`

	Storage   StorageConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	Mail      MailConfig
	Assets    AssetsConfig
	Orders    OrdersConfig
	Google    GoogleConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and locates the persistent store.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Storage driver: postgres or mongo"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (STORE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI (STORE_STORAGE_MONGO_URI or MONGODB_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"furniture" usage:"MongoDB database name"`
}

// AuthConfig controls sessions and the bootstrap admin.
type AuthConfig struct {
	Secret        string `usage:"Session signing secret (STORE_AUTH_SECRET or JWT_SECRET)"`
	AdminEmail    string `usage:"Fallback admin email, accepted only while no admin exists"`
	AdminPassword string `usage:"Fallback admin password"`
	// OTPSecret keys stored one-time code hashes. Defaults to Secret.
	OTPSecret     string        `usage:"HMAC key for one-time code hashes"`
	OTPTTL        time.Duration `default:"10m" usage:"One-time code lifetime"`
	SecureCookies bool          `default:"false" usage:"Mark session cookies Secure (always on in production)"`
}

// PaymentConfig configures the Razorpay gateway.
type PaymentConfig struct {
	KeyID     string `usage:"Razorpay key id (RAZORPAY_KEY_ID)"`
	KeySecret string `usage:"Razorpay key secret (RAZORPAY_KEY_SECRET)"`
	Currency  string `default:"INR" usage:"Default payment currency"`
	APIURL    string `usage:"Razorpay API base URL"`
}

// MailConfig configures the transactional mail transport and queue.
type MailConfig struct {
	APIKey           string        `usage:"SendGrid API key (SENDGRID_API_KEY); empty disables mail"`
	Host             string        `usage:"SendGrid API host override"`
	From             string        `default:"orders@nilamburfurniture.com" usage:"Sender address"`
	FromName         string        `default:"Nilambur Interiors & Furniture" usage:"Sender name"`
	OperatorEmail    string        `usage:"Address notified of every order (ADMIN_ORDER_EMAIL)"`
	PlaceholderEmail string        `default:"customer@example.com" usage:"Customer address that never receives mail"`
	QueueSize        int           `default:"256" usage:"Outgoing mail queue size"`
	Workers          int           `default:"2" usage:"Mail delivery workers"`
	MaxAttempts      int           `default:"3" usage:"Delivery attempts per message"`
	Backoff          time.Duration `default:"1s" usage:"Base delay between delivery attempts"`
}

// AssetsConfig configures the image bucket. An empty bucket disables uploads.
type AssetsConfig struct {
	Bucket          string `usage:"S3 bucket for product images"`
	Region          string `default:"ap-south-1" usage:"Bucket region"`
	Endpoint        string `usage:"S3-compatible endpoint override"`
	AccessKeyID     string `usage:"Static access key id; empty uses the default credential chain"`
	SecretAccessKey string `usage:"Static secret access key"`
	PublicBaseURL   string `usage:"Public URL prefix for stored objects"`
	Prefix          string `default:"products" usage:"Object key prefix"`
	UsePathStyle    bool   `default:"false" usage:"Use path-style bucket addressing"`
	MaxFileBytes    int64  `default:"10485760" usage:"Largest accepted image"`
	MaxUploadBytes  int64  `default:"83886080" usage:"Largest accepted upload request"`
}

// OrdersConfig tunes order placement and status changes.
type OrdersConfig struct {
	IDPrefix         string `default:"NIL" usage:"Order reference prefix"`
	IDDigits         int    `default:"6" usage:"Digits in the order reference"`
	PermissiveStatus bool   `default:"false" usage:"Allow any order status change"`
	PriceTolerance   string `default:"1" usage:"Accepted difference between the shown and computed total"`
}

// Tolerance returns the parsed price tolerance. It is only valid on a
// validated Config.
func (c OrdersConfig) Tolerance() decimal.Decimal {
	return decimal.RequireFromString(c.PriceTolerance)
}

// GoogleConfig configures Google sign-in.
type GoogleConfig struct {
	UserInfoURL string `usage:"Google userinfo endpoint"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// AuthMax bounds admin login, one-time code and Google sign-in attempts.
	AuthMax int `default:"10" usage:"Max sign-in requests per window"`
	// CheckoutMax bounds order, coupon and payment requests.
	CheckoutMax int `default:"30" usage:"Max checkout requests per window"`
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

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, envProduction)
}

// SecureCookies reports whether session cookies must be marked Secure.
func (c *Config) SecureCookies() bool {
	return c.Auth.SecureCookies || c.Production()
}

// LoadConfig loads .env files, then configuration from environment
// variables, YAML config files and flags, and validates the result.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(os.Getenv("GO_ENV")); err != nil {
		return nil, err
	}
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/store/config.yaml"},
	})
}

// LoadToolConfig loads configuration for command-line tools that parse their
// own flags. Only files and the environment are consulted.
func LoadToolConfig() (*Config, error) {
	if err := loadDotEnv(os.Getenv("GO_ENV")); err != nil {
		return nil, err
	}
	return loadConfig(aconfig.Config{
		SkipFlags: true,
		Files:     []string{"config.yaml", "/etc/store/config.yaml"},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "STORE"
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env.<env> and then .env. Variables already set in the
// environment win, and so does the more specific file.
func loadDotEnv(env string) error {
	files := []string{".env"}
	if env != "" {
		files = []string{".env." + env, ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) and the storefront's historical variable names to the
// STORE_-prefixed configuration when the prefixed form is unset.
func (c *Config) applyPlatformDefaults() {
	fallback := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}
	fallback(&c.Storage.DatabaseURL, "DATABASE_URL")
	fallback(&c.Storage.MongoURI, "MONGODB_URI", "MONGO_URI")
	fallback(&c.Auth.Secret, "JWT_SECRET")
	fallback(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	fallback(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	fallback(&c.Mail.OperatorEmail, "ADMIN_ORDER_EMAIL")
	fallback(&c.Mail.APIKey, "SENDGRID_API_KEY")
	fallback(&c.Payment.KeyID, "RAZORPAY_KEY_ID", "NEXT_PUBLIC_RAZORPAY_KEY_ID")
	fallback(&c.Payment.KeySecret, "RAZORPAY_KEY_SECRET")
	fallback(&c.Env, "GO_ENV")
	if c.Env == "" {
		c.Env = "development"
	}

	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Auth.OTPSecret == "" {
		c.Auth.OTPSecret = c.Auth.Secret
	}
	if c.Payment.APIURL == "" {
		c.Payment.APIURL = razorpay.DefaultBaseURL
	}
	if c.Google.UserInfoURL == "" {
		c.Google.UserInfoURL = google.UserInfoURL
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set STORE_STORAGE_MONGO_URI or MONGODB_URI")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Auth.Secret == "" {
		if c.Production() {
			return errors.New("session secret is required in production: set STORE_AUTH_SECRET or JWT_SECRET")
		}
		c.Auth.Secret = "development-secret"
		if c.Auth.OTPSecret == "" {
			c.Auth.OTPSecret = c.Auth.Secret
		}
	}

	for _, origin := range c.CORS.Origins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return errors.Errorf("invalid CORS origin %q: want *, http:// or https://", origin)
		}
	}

	tol, err := decimal.NewFromString(c.Orders.PriceTolerance)
	if err != nil || tol.IsNegative() {
		return errors.Errorf("invalid price tolerance %q", c.Orders.PriceTolerance)
	}
	return nil
}
