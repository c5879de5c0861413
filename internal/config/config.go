package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Port        string
	Environment string

	// TAPTAP bot API
	APIBaseURL string
	BotToken   string
	APITimeout time.Duration

	// Twilio WhatsApp
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioWhatsAppFrom       string
	DisableWebhookValidation bool

	// Sessions
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration

	LogFile string
}

// LoadEnvFiles loads .env files for local development. Production (Cloud Run)
// gets its environment from the platform.
func LoadEnvFiles() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}
}

// Load reads the configuration from the environment
func Load() *Config {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		APIBaseURL:               strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000/api/bot"), "/"),
		BotToken:                 os.Getenv("BOT_TOKEN"),
		APITimeout:               getDuration("API_TIMEOUT", 30*time.Second),
		TwilioAccountSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:          os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),
		DisableWebhookValidation: getBool("DISABLE_WEBHOOK_VALIDATION", false),
		SessionStore:             strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getInt("REDIS_DB", 0),
		SessionTTL:               getDuration("SESSION_TTL", 0),
		LogFile:                  getEnv("LOG_FILE", "logs/taptap-bot.log"),
	}

	// Keep USE_MEMORY_STORE working for existing deployments
	if getBool("USE_MEMORY_STORE", false) {
		cfg.SessionStore = StoreMemory
	}

	return cfg
}

// IsDevelopment reports whether webhook validation may be skipped
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// TwilioConfigured reports whether outbound WhatsApp is possible
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// getDuration accepts Go durations ("30s") or plain seconds ("30")
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("⚠️  Invalid %s=%q, using %v", key, v, fallback)
	return fallback
}
