// Package runner holds the process configuration and the run modes the
// binary can start in.
package runner

import (
	"context"
	"errors"
	"flag"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt/gonoop"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tlmt/goposthog"
)

// Run modes.
const (
	// RunModeWeb serves HTTP and schedules syncs in-process.
	RunModeWeb = iota + 1
	// RunModePoll runs the queue poller on a schedule, or once.
	RunModePoll
	// RunModeWorker consumes the Redis task queue.
	RunModeWorker
	// RunModeAwsLambda runs one poll pass per scheduled invocation.
	RunModeAwsLambda
)

var ErrInvalidRunMode = errors.New("invalid run mode")

// Runner is one process personality.
type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

// Config is the parsed process configuration shared by all run modes.
type Config struct {
	Addr       string
	DataFolder string
	Dsn        string
	Debug      bool

	APIKey string

	AvitoClientID     string
	AvitoClientSecret string
	AvitoBaseURL      string
	OAuthRedirectURL  string

	PollRunner      bool
	PollOnce        bool
	PollInterval    time.Duration
	WorkerRunner    bool
	AwsLambdaRunner bool

	DisableTelemetry bool
	RunMode          int
}

// ParseConfig reads flags with environment fallbacks and resolves the run
// mode. Misconfigurations that can never work panic immediately.
func ParseConfig() *Config {
	cfg := Config{}

	flag.StringVar(&cfg.Addr, "addr", ":8080", "address to listen on for the web server")
	flag.StringVar(&cfg.DataFolder, "data-folder", "webdata", "data folder for the embedded database")
	flag.StringVar(&cfg.Dsn, "dsn", "", "postgres connection string [default: embedded sqlite]")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	flag.StringVar(&cfg.APIKey, "api-key", "", "bearer token protecting the /api routes [default: open]")
	flag.StringVar(&cfg.AvitoBaseURL, "avito-base-url", "", "override the marketplace API host")
	flag.BoolVar(&cfg.PollRunner, "poll", false, "run the queue poller on a schedule instead of the web server")
	flag.BoolVar(&cfg.PollOnce, "poll-once", false, "run one poller pass and exit")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", 10*time.Second, "delay between poller passes")
	flag.BoolVar(&cfg.WorkerRunner, "worker", false, "consume the Redis task queue")
	flag.BoolVar(&cfg.AwsLambdaRunner, "aws-lambda", false, "run as an AWS Lambda scheduled function")
	flag.BoolVar(&cfg.DisableTelemetry, "disable-telemetry", false, "disable anonymous usage telemetry")

	flag.Parse()

	if cfg.Dsn == "" {
		cfg.Dsn = os.Getenv("DATABASE_URL")
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_KEY")
	}

	if cfg.AvitoBaseURL == "" {
		cfg.AvitoBaseURL = os.Getenv("AVITO_BASE_URL")
	}

	cfg.AvitoClientID = os.Getenv("AVITO_CLIENT_ID")
	cfg.AvitoClientSecret = os.Getenv("AVITO_CLIENT_SECRET")
	cfg.OAuthRedirectURL = os.Getenv("OAUTH_REDIRECT_URL")

	if os.Getenv("DISABLE_TELEMETRY") == "1" {
		cfg.DisableTelemetry = true
	}

	if cfg.PollInterval <= 0 {
		panic("poll interval must be positive")
	}

	if cfg.AwsLambdaRunner && cfg.Dsn == "" {
		panic("Dsn must be provided when running on AWS Lambda")
	}

	if cfg.WorkerRunner && cfg.Dsn == "" {
		panic("Dsn must be provided when running as a worker")
	}

	cfg.RunMode = resolveRunMode(&cfg)

	return &cfg
}

func resolveRunMode(cfg *Config) int {
	switch {
	case cfg.AwsLambdaRunner:
		return RunModeAwsLambda
	case cfg.WorkerRunner:
		return RunModeWorker
	case cfg.PollRunner || cfg.PollOnce:
		return RunModePoll
	default:
		return RunModeWeb
	}
}

// NewLogger builds the process logger for a run mode.
func NewLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return zap.NewNop()
	}

	return logger
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

// Telemetry returns the process-wide usage telemetry sink. Without a
// PostHog key, or when disabled, events are dropped.
func Telemetry() tlmt.Telemetry {
	telemetryOnce.Do(func() {
		if os.Getenv("DISABLE_TELEMETRY") == "1" {
			telemetry = gonoop.New()

			return
		}

		key := os.Getenv("POSTHOG_API_KEY")
		if key == "" {
			telemetry = gonoop.New()

			return
		}

		endpoint := os.Getenv("POSTHOG_ENDPOINT")
		if endpoint == "" {
			endpoint = "https://eu.i.posthog.com"
		}

		val, err := goposthog.New(key, endpoint)
		if err != nil || val == nil {
			telemetry = gonoop.New()

			return
		}

		telemetry = val
	})

	return telemetry
}
