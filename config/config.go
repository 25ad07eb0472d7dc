// Package config holds the settings of both binaries, parsed with conf
// from flags and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ClientPrefix = "LMS"
	ServerPrefix = "LMSAPI"
)

type Log struct {
	Level string `conf:"default:info,help:panic fatal error warn info debug trace"`
}

// Client configures lmsctl.
type Client struct {
	conf.Version
	Args     conf.Args
	API      API
	Storage  Storage
	Upload   Upload
	Checkout Checkout
	Progress Progress
	Log      Log
}

type API struct {
	BaseURL string        `conf:"default:http://localhost:5000/api"`
	Timeout time.Duration `conf:"default:30s"`
}

type Storage struct {
	// Dir holds the persistent token file.
	Dir string `conf:"default:.lms"`
}

type Upload struct {
	MaxSize     int64         `conf:"default:104857600"`
	Concurrency int           `conf:"default:1"`
	Interval    time.Duration `conf:"default:500ms"`
	FFProbe     string        `conf:"default:ffprobe"`
}

type Checkout struct {
	Currency string        `conf:"default:USD"`
	Delay    time.Duration `conf:"default:2s"`
}

type Progress struct {
	Threshold float64 `conf:"default:0.9"`
}

// Server configures the stand-in backend.
type Server struct {
	conf.Version
	Web       Web
	Cors      Cors
	Auth      Auth
	RateLimit RateLimit
	Media     Media
	Seed      Seed
	Log       Log
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:5000"`
	Prefix          string        `conf:"default:/api"`
	ReadTimeout     time.Duration `conf:"default:10s"`
	WriteTimeout    time.Duration `conf:"default:120s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string `conf:"default:http://localhost:3000"`
}

type Auth struct {
	Secret          string        `conf:"default:dev-secret-change-me,mask"`
	TokenTTL        time.Duration `conf:"default:24h"`
	SessionLifetime time.Duration `conf:"default:24h"`
}

type RateLimit struct {
	RPS    float64       `conf:"default:20"`
	Burst  int           `conf:"default:40"`
	Expiry time.Duration `conf:"default:10m"`
}

type Media struct {
	URL       string `conf:"default:http://localhost:5000/media"`
	MaxUpload int64  `conf:"default:104857600"`
}

type Seed struct {
	AdminEmail         string `conf:"default:admin@lms.local"`
	AdminPassword      string `conf:"default:admin-password,mask"`
	InstructorEmail    string `conf:"default:instructor@lms.local"`
	InstructorPassword string `conf:"default:instructor-password,mask"`
	StudentEmail       string `conf:"default:student@lms.local"`
	StudentPassword    string `conf:"default:student-password,mask"`
}

// Parse loads .env when present, then parses cfg under prefix. The help
// text is returned with conf.ErrHelpWanted when it was asked for.
func Parse(prefix string, cfg interface{}) (string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("loading .env: %w", err)
	}

	help, err := conf.Parse(prefix, cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return help, err
		}
		return "", fmt.Errorf("parsing config: %w", err)
	}
	return "", nil
}

// Logger builds the stdout logger of the binaries.
func Logger(c Log) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	return log, nil
}
