package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/pkg/logging"
)

const Production = "production"

const (
	AssistantModeProxy  = "proxy"
	AssistantModeOpenAI = "openai"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist, falling back to the go.mod root
// when none is found in the working directory.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existing(envFiles)
	if len(existingFiles) == 0 {
		if root, ok := findGoModRoot(); ok {
			rooted := make([]string, 0, len(envFiles))
			for _, file := range envFiles {
				rooted = append(rooted, filepath.Join(root, file))
			}
			existingFiles = existing(rooted)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existing(files []string) []string {
	out := make([]string, 0, len(files))
	for _, file := range files {
		if fs.FileExists(file) {
			out = append(out, file)
		}
	}
	return out
}

func findGoModRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type BackendOptions struct {
	URL     string        `env:"BACKEND_URL" envDefault:"http://localhost:8080/services/apexrest/provisioning"`
	Token   string        `env:"BACKEND_TOKEN"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
	// With AuthURL set, tokens come from the client credentials grant and
	// BACKEND_TOKEN is ignored.
	AuthURL      string `env:"BACKEND_AUTH_URL"`
	ClientID     string `env:"BACKEND_CLIENT_ID"`
	ClientSecret string `env:"BACKEND_CLIENT_SECRET"`
}

type AssistantOptions struct {
	Mode         string        `env:"ASSISTANT_MODE" envDefault:"proxy"` // proxy or openai
	OpenAIKey    string        `env:"OPENAI_KEY"`
	BaseURL      string        `env:"OPENAI_BASE_URL"`
	Model        string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt string        `env:"ASSISTANT_SYSTEM_PROMPT"`
	Temperature  float64       `env:"ASSISTANT_TEMPERATURE" envDefault:"0.7"`
	MaxTokens    int64         `env:"ASSISTANT_MAX_TOKENS" envDefault:"1024"`
	CacheEnabled bool          `env:"ASSISTANT_CACHE_ENABLED" envDefault:"false"`
	CachePrefix  string        `env:"ASSISTANT_CACHE_PREFIX" envDefault:"assistant:replies"`
	CacheTTL     time.Duration `env:"ASSISTANT_CACHE_TTL" envDefault:"1h"`
	Store        string        `env:"ASSISTANT_STORE" envDefault:"memory"` // memory or redis
}

func (a *AssistantOptions) Validate() error {
	switch a.Mode {
	case AssistantModeProxy:
	case AssistantModeOpenAI:
		if strings.TrimSpace(a.OpenAIKey) == "" {
			return fmt.Errorf("ASSISTANT_MODE=openai requires OPENAI_KEY")
		}
	default:
		return fmt.Errorf("invalid ASSISTANT_MODE=%q (expected proxy|openai)", a.Mode)
	}
	if a.Store != "memory" && a.Store != "redis" {
		return fmt.Errorf("invalid ASSISTANT_STORE=%q (expected memory|redis)", a.Store)
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		return fmt.Errorf("ASSISTANT_TEMPERATURE must be within [0, 2], got %v", a.Temperature)
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("ASSISTANT_MAX_TOKENS must be positive, got %d", a.MaxTokens)
	}
	return nil
}

type ProvisioningOptions struct {
	GroupsEnabled bool          `env:"PROVISIONING_GROUPS_ENABLED" envDefault:"true"`
	SessionTTL    time.Duration `env:"PROVISIONING_SESSION_TTL" envDefault:"2h"`
	SweepInterval time.Duration `env:"PROVISIONING_SWEEP_INTERVAL" envDefault:"5m"`
}

type LokiOptions struct {
	AppName string `env:"LOKI_APP_NAME" envDefault:"provisioning"`
	LogPath string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"provisioning"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

// Validate checks the rate limit configuration for errors
func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.GlobalRPS > 1000000 {
		return fmt.Errorf("rate limit GlobalRPS too high, maximum is 1,000,000, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type CORSOptions struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type Configuration struct {
	Backend       BackendOptions
	Assistant     AssistantOptions
	Provisioning  ProvisioningOptions
	Loki          LokiOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	CORS          CORSOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Domain           string `env:"DOMAIN" envDefault:"localhost"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// Incoming requests without this header get a random uuidv4.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Falls back to request.RemoteAddr when absent.
	RealIPHeader string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) Scheme() string {
	if c.GoAppEnvironment == Production { // assume 'https' on production mode
		return "https"
	}
	return "http"
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := c.parse(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Loki.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

// parse reads the environment into c, validates it and derives computed fields.
func (c *Configuration) parse() error {
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant configuration error: %w", err)
	}
	if strings.TrimSpace(c.Backend.URL) == "" {
		return fmt.Errorf("BACKEND_URL must not be empty")
	}

	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	if os.Getenv("ORIGIN") == "" {
		// Only development keeps the port in Origin; production sits behind 80/443.
		if c.GoAppEnvironment == "development" {
			c.Origin = fmt.Sprintf("%s://%s:%d", c.Scheme(), c.Domain, c.ServerPort)
		} else {
			c.Origin = fmt.Sprintf("%s://%s", c.Scheme(), c.Domain)
		}
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
