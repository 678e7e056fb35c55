package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the harvester service.
type Config struct {
	Env         string
	HTTPPort    string
	MetricsAddr string

	SparqlQueryEndpoint  string
	SparqlUpdateEndpoint string
	SparqlTimeout        time.Duration

	// OrganizationGraphTemplate holds the tenant graph pattern; the
	// organization id replaces the ~ORGANIZATION_ID~ marker.
	OrganizationGraphTemplate string
	AccountGraph              string

	ShareFolder string

	GateQueueDepth int
	GateMaxWait    time.Duration

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitCapacity int
	RateLimitRefill   float64
	RateLimitTTL      time.Duration

	// AuditDSN enables the Postgres audit trail when non-empty.
	AuditDSN string

	LogLevel  string
	LogFormat string
}

const organizationMarker = "~ORGANIZATION_ID~"

// Load reads configuration from environment variables with sane defaults for
// local development against a mu.semte.ch stack.
func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		SparqlQueryEndpoint:  getEnv("SPARQL_QUERY_ENDPOINT", "http://database:8890/sparql"),
		SparqlUpdateEndpoint: getEnv("SPARQL_UPDATE_ENDPOINT", ""),
		SparqlTimeout:        getEnvDuration("SPARQL_TIMEOUT", 30*time.Second),

		OrganizationGraphTemplate: getEnv("ORGANISATION_GRAPH_TEMPLATE",
			"http://mu.semte.ch/graphs/organizations/~ORGANIZATION_ID~/LoketLB-berichtenGebruiker"),
		AccountGraph: getEnv("ACCOUNT_GRAPH", "http://mu.semte.ch/graphs/account"),

		ShareFolder: getEnv("SHARE_FOLDER", "/share"),

		GateQueueDepth: getEnvInt("GATE_QUEUE_DEPTH", 32),
		GateMaxWait:    getEnvDuration("GATE_MAX_WAIT", 25*time.Second),

		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 50),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 20),
		RateLimitTTL:      getEnvDuration("RATE_LIMIT_TTL", time.Hour),

		AuditDSN: getEnv("AUDIT_POSTGRES_DSN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// OrganizationGraph expands the tenant graph template for one organization.
func (c Config) OrganizationGraph(organizationID string) string {
	return strings.ReplaceAll(c.OrganizationGraphTemplate, organizationMarker, organizationID)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
