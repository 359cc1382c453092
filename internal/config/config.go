package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env               string
	Port              string
	DatabaseURL       string
	RedisURL          string
	SupabaseURL       string // e.g. https://<project>.supabase.co; storage signing and public photo URLs
	SupabaseSecretKey string // service_role key, not the anon key
	SupabaseJWTSecret string // verifies access tokens issued by Supabase Auth
	PhotoBucket       string
	FrontendOrigins   []string
	HealthAdminKey    string
	LogLevel          string
	LogFormat         string

	Ebay       EbayConfig
	OpenAI     OpenAIConfig
	Generation GenerationConfig

	SendinblueAPIKey string // SENDINBLUE_API_KEY (Brevo) for subscriber welcome emails
	MailFrom         string
}

type EbayConfig struct {
	ClientID           string
	ClientSecret       string
	RedirectURI        string // eBay RuName or the callback URL registered for it
	Sandbox            bool
	MarketplaceID      string
	FlowTimeout        time.Duration
	TokenEncryptionKey string // 64 hex chars
}

// Configured reports whether the OAuth client credentials are complete.
func (e EbayConfig) Configured() bool {
	return e.ClientID != "" && e.ClientSecret != "" && e.RedirectURI != ""
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GenerationConfig struct {
	JobTimeout time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PHOTO_BUCKET", "item-photos")
	viper.SetDefault("EBAY_MARKETPLACE_ID", "EBAY_US")
	viper.SetDefault("OAUTH_FLOW_TIMEOUT", "2m")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	viper.SetDefault("GENERATION_JOB_TIMEOUT", "15m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	flowTimeout, err := time.ParseDuration(viper.GetString("OAUTH_FLOW_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("OAUTH_FLOW_TIMEOUT: %w", err)
	}
	jobTimeout, err := time.ParseDuration(viper.GetString("GENERATION_JOB_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("GENERATION_JOB_TIMEOUT: %w", err)
	}

	return &Config{
		Env:               viper.GetString("APP_ENV"),
		Port:              viper.GetString("PORT"),
		DatabaseURL:       viper.GetString("DATABASE_URL"),
		RedisURL:          viper.GetString("REDIS_URL"),
		SupabaseURL:       viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey: viper.GetString("SUPABASE_SECRET_KEY"),
		SupabaseJWTSecret: viper.GetString("SUPABASE_JWT_SECRET"),
		PhotoBucket:       viper.GetString("PHOTO_BUCKET"),
		FrontendOrigins:   splitList(viper.GetString("FRONTEND_ORIGINS")),
		HealthAdminKey:    viper.GetString("HEALTH_ADMIN_KEY"),
		LogLevel:          viper.GetString("LOG_LEVEL"),
		LogFormat:         viper.GetString("LOG_FORMAT"),
		Ebay: EbayConfig{
			ClientID:           viper.GetString("EBAY_CLIENT_ID"),
			ClientSecret:       viper.GetString("EBAY_CLIENT_SECRET"),
			RedirectURI:        viper.GetString("EBAY_REDIRECT_URI"),
			Sandbox:            strings.EqualFold(viper.GetString("EBAY_SANDBOX"), "true"),
			MarketplaceID:      viper.GetString("EBAY_MARKETPLACE_ID"),
			FlowTimeout:        flowTimeout,
			TokenEncryptionKey: viper.GetString("TOKEN_ENCRYPTION_KEY"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("OPENAI_API_KEY"),
			Model:   viper.GetString("OPENAI_MODEL"),
			BaseURL: viper.GetString("OPENAI_BASE_URL"),
		},
		Generation:       GenerationConfig{JobTimeout: jobTimeout},
		SendinblueAPIKey: viper.GetString("SENDINBLUE_API_KEY"),
		MailFrom:         viper.GetString("MAIL_FROM"),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
