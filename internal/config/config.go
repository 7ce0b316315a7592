// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Environment variables override the .env file, which overrides defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	UseSupabase        bool

	// MemorySeedPassword seeds demo users into the in-memory store when
	// Supabase is disabled. Empty leaves the store empty.
	MemorySeedPassword string

	// Sessions
	RedisURL   string
	SessionTTL time.Duration

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Payments
	Currency                string
	MpesaBaseURL            string
	MpesaConsumerKey        string
	MpesaConsumerSecret     string
	MpesaShortCode          string
	MpesaPassKey            string
	MpesaCallbackURL        string
	MpesaInitiatorName      string
	MpesaSecurityCredential string
	MpesaConfirmationURL    string
	MpesaValidationURL      string
	MpesaResultURL          string
	MpesaTimeoutURL         string
	IpayBaseURL             string
	IpayVendorID            string
	IpaySecret              string
	IpayLive                bool
	IpayCallbackURL         string
	StripeBaseURL           string
	StripeSecretKey         string
	StripeCurrency          string
	PaypalBaseURL           string
	PaypalClientID          string
	PaypalClientSecret      string
	PaypalCurrency          string
}

var defaults = map[string]any{
	"PORT":      8080,
	"LOG_LEVEL": "info",

	"HTTP_TIMEOUT": "10s",

	"MAX_RETRIES":     3,
	"INITIAL_BACKOFF": "100ms",
	"MAX_CONCURRENCY": 50,

	"CACHE_TTL": "55m",

	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",

	"USE_SUPABASE": true,

	"SESSION_TTL": "0s",

	"JWT_SECRET":     "dukaverse-default-dev-secret-change-me",
	"JWT_ACCESS_TTL": "15m",

	"CURRENCY":        "KES",
	"MPESA_BASE_URL":  "https://sandbox.safaricom.co.ke",
	"IPAY_BASE_URL":   "https://apis.ipayafrica.com",
	"STRIPE_BASE_URL": "https://api.stripe.com",
	"STRIPE_CURRENCY": "kes",
	"PAYPAL_BASE_URL": "https://api-m.sandbox.paypal.com",
	"PAYPAL_CURRENCY": "USD",
}

// Load reads configuration. A missing .env file is not an error.
func Load() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),

		CacheTTL: v.GetDuration("CACHE_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		SupabaseURL:        v.GetString("SUPABASE_URL"),
		SupabaseAnonKey:    v.GetString("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		UseSupabase:        v.GetBool("USE_SUPABASE"),
		MemorySeedPassword: v.GetString("MEMORY_SEED_PASSWORD"),

		RedisURL:   v.GetString("REDIS_URL"),
		SessionTTL: v.GetDuration("SESSION_TTL"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTAccessTTL: v.GetDuration("JWT_ACCESS_TTL"),

		Currency:                v.GetString("CURRENCY"),
		MpesaBaseURL:            v.GetString("MPESA_BASE_URL"),
		MpesaConsumerKey:        v.GetString("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret:     v.GetString("MPESA_CONSUMER_SECRET"),
		MpesaShortCode:          v.GetString("MPESA_SHORT_CODE"),
		MpesaPassKey:            v.GetString("MPESA_PASS_KEY"),
		MpesaCallbackURL:        v.GetString("MPESA_CALLBACK_URL"),
		MpesaInitiatorName:      v.GetString("MPESA_INITIATOR_NAME"),
		MpesaSecurityCredential: v.GetString("MPESA_SECURITY_CREDENTIAL"),
		MpesaConfirmationURL:    v.GetString("MPESA_CONFIRMATION_URL"),
		MpesaValidationURL:      v.GetString("MPESA_VALIDATION_URL"),
		MpesaResultURL:          v.GetString("MPESA_RESULT_URL"),
		MpesaTimeoutURL:         v.GetString("MPESA_TIMEOUT_URL"),
		IpayBaseURL:             v.GetString("IPAY_BASE_URL"),
		IpayVendorID:            v.GetString("IPAY_VENDOR_ID"),
		IpaySecret:              v.GetString("IPAY_SECRET"),
		IpayLive:                v.GetBool("IPAY_LIVE"),
		IpayCallbackURL:         v.GetString("IPAY_CALLBACK_URL"),
		StripeBaseURL:           v.GetString("STRIPE_BASE_URL"),
		StripeSecretKey:         v.GetString("STRIPE_SECRET_KEY"),
		StripeCurrency:          v.GetString("STRIPE_CURRENCY"),
		PaypalBaseURL:           v.GetString("PAYPAL_BASE_URL"),
		PaypalClientID:          v.GetString("PAYPAL_CLIENT_ID"),
		PaypalClientSecret:      v.GetString("PAYPAL_CLIENT_SECRET"),
		PaypalCurrency:          v.GetString("PAYPAL_CURRENCY"),
	}
}

// Validate reports settings that make the service unable to start.
func (c *Config) Validate() error {
	var errs []error
	if c.UseSupabase && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		errs = append(errs, errors.New("USE_SUPABASE=true needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.UseSupabase && c.MemorySeedPassword != "" {
		errs = append(errs, errors.New("MEMORY_SEED_PASSWORD only applies with USE_SUPABASE=false"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// MpesaEnabled reports whether M-PESA credentials are present.
func (c *Config) MpesaEnabled() bool {
	return c.MpesaConsumerKey != "" && c.MpesaConsumerSecret != "" && c.MpesaShortCode != ""
}

// IpayEnabled reports whether iPay credentials are present.
func (c *Config) IpayEnabled() bool { return c.IpayVendorID != "" && c.IpaySecret != "" }

// StripeEnabled reports whether a Stripe key is present.
func (c *Config) StripeEnabled() bool { return c.StripeSecretKey != "" }

// PaypalEnabled reports whether PayPal credentials are present.
func (c *Config) PaypalEnabled() bool { return c.PaypalClientID != "" && c.PaypalClientSecret != "" }
