package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	// Stage-three load controls. Fanout bounds concurrent enumeration and
	// assessment per job; AssessHostCap limits how many live hosts get the
	// deeper (and most expensive) risk assessment.
	ProbeFanout   int
	AssessHostCap int
	ProbeTimeout  time.Duration

	DNSResolver string

	OpenAIAPIKey string
	OpenAIModel  string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:           getenv("APP_ENV", "development"),
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "console"),
		ProbeFanout:   getenvInt("PROBE_FANOUT", 5),
		AssessHostCap: getenvInt("ASSESS_HOST_CAP", 3),
		ProbeTimeout:  time.Duration(getenvInt("PROBE_TIMEOUT_SECONDS", 10)) * time.Second,
		DNSResolver:   getenv("DNS_RESOLVER", "1.1.1.1:53"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4o-mini"),
	}
	if cfg.ProbeFanout < 1 {
		cfg.ProbeFanout = 1
	}
	if cfg.AssessHostCap < 0 {
		cfg.AssessHostCap = 0
	}
	if cfg.DatabaseURL == "" {
		// Not fatal: the service falls back to the in-memory store. Warn via
		// error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set; using in-memory store")
	}
	return cfg, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}
