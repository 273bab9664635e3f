package config

import (
	game_constants "Quizrace/constants/game"
	"Quizrace/services/fraud"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresDatabase string `env:"POSTGRES_DATABASE" envDefault:"quizrace"`
	MigratePostgres  bool   `env:"MIGRATE_POSTGRES"`
	VerbosePostgres  bool   `env:"VERBOSE_POSTGRES"`

	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"round_events"`

	Port string `env:"PORT" envDefault:"8080"`
	Prod bool   `env:"PROD"`
	// Session cookie secret
	Key                  string `env:"KEY,required,notEmpty"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET,required,notEmpty"`
	// bcrypt hash of the key operators present to cancel rounds
	AdminKeyHash string `env:"ADMIN_KEY_HASH"`

	FraudThreshold  float64            `env:"FRAUD_THRESHOLD" envDefault:"0.8"`
	FraudMinLatency time.Duration      `env:"FRAUD_MIN_LATENCY" envDefault:"500ms"`
	FraudWeights    map[string]float64 `env:"FRAUD_WEIGHTS" envSeparator:"," envKeyValSeparator:":"`

	SweepSpec    string        `env:"SWEEP_SPEC" envDefault:"@every 10s"`
	SweepTimeout time.Duration `env:"SWEEP_TIMEOUT" envDefault:"30s"`
}

// Load reads .env when present and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if cfg.FraudThreshold <= 0 || cfg.FraudThreshold > game_constants.MAX_FRAUD_SCORE {
		return nil, fmt.Errorf("FRAUD_THRESHOLD must be in (0, %v]", game_constants.MAX_FRAUD_SCORE)
	}
	return cfg, nil
}

// NOTE: https://stackoverflow.com/questions/57205060/how-to-connect-postgresql-database-using-gorm
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDatabase)
}

// FraudPolicy overlays the configured weights on the default policy.
func (c *Config) FraudPolicy() fraud.Policy {
	p := fraud.DefaultPolicy()
	p.Threshold = c.FraudThreshold
	p.MinLatency = c.FraudMinLatency
	for signal, w := range c.FraudWeights {
		p.Weights[fraud.SignalType(signal)] = w
	}
	return p
}
