package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Environment Environment

	AppPort  string
	MongoURI string
	MongoDB  string

	// Batch orchestrator (§4.7, §6.4)
	Workers               int
	PerDomainConcurrency  int
	DomainMinIntervalSecs int // loaded but not passed on: the batch runner's per-domain limiter uses a fixed 3s interval
	GlobalTimeoutSecs     int // per-machine deadline, §5

	// Per-tier timeouts, §5
	FetchTimeoutSecs   int
	DynamicTimeoutSecs int
	LLMTimeoutSecs     int

	// Outbound HTTP, §6.2
	UserAgent string

	// Site rule table, §4.2 / §6.4
	SiteRulesPath string

	LLM LLMConfig

	// Browser pool, §5
	BrowserPoolSize int
}

// LLMConfig configures the vendor LLM extractor (C5, §4.5).
type LLMConfig struct {
	VendorID            string
	Model               string
	APIKeyRef           string
	CostPer1MPrompt     float64
	CostPer1MCompletion float64
	MaxPayloadChars     int
}

// Load reads configuration from environment variables with sensible defaults.
// It loads the appropriate .env file based on APP_ENV:
//   - APP_ENV=local      -> .env.local (fallback: .env)
//   - APP_ENV=staging    -> .env.staging
//   - APP_ENV=production -> .env.production
func Load() *Config {
	env := LoadEnvFile()

	baseDBName := getEnv("MONGO_DB_NAME", "pricewatch")
	mongoDB := GetMongoDBName(env, baseDBName)

	cfg := &Config{
		Environment: env,

		AppPort:  getEnv("APP_PORT", "8080"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  mongoDB,

		Workers:               getEnvInt("WORKERS", 5),
		PerDomainConcurrency:  getEnvInt("PER_DOMAIN_CONCURRENCY", 2),
		DomainMinIntervalSecs: getEnvInt("DOMAIN_MIN_INTERVAL_SECS", 3),
		GlobalTimeoutSecs:     getEnvInt("GLOBAL_TIMEOUT_SECS", 180),

		FetchTimeoutSecs:   getEnvInt("FETCH_TIMEOUT_SECS", 30),
		DynamicTimeoutSecs: getEnvInt("DYNAMIC_TIMEOUT_SECS", 60),
		LLMTimeoutSecs:     getEnvInt("LLM_TIMEOUT_SECS", 30),

		UserAgent: getEnv("USER_AGENT", "PriceWatchBot/1.0 (+https://example.com/bot)"),

		SiteRulesPath: getEnv("SITE_RULES_PATH", "config/site_rules.json"),

		BrowserPoolSize: getEnvInt("BROWSER_POOL_SIZE", 4),

		LLM: LLMConfig{
			VendorID:            getEnv("LLM_VENDOR_ID", "openai"),
			Model:               getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKeyRef:           getEnv("LLM_API_KEY", ""),
			CostPer1MPrompt:     getEnvFloat("LLM_COST_PER_1M_PROMPT", 0.15),
			CostPer1MCompletion: getEnvFloat("LLM_COST_PER_1M_COMPLETION", 0.60),
			MaxPayloadChars:     getEnvInt("LLM_MAX_PAYLOAD_CHARS", 12000),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, mongo_db=%s, workers=%d, per_domain_concurrency=%d, llm_enabled=%v",
		env, cfg.AppPort, cfg.MongoDB, cfg.Workers, cfg.PerDomainConcurrency, cfg.LLM.APIKeyRef != "")

	return cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid int, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid float, using default %f", key, v, fallback)
		return fallback
	}
	return f
}
