package config

import (
	"fmt"
	"os"
	"time"

	"FinSelect/internal/domain/models"
	"FinSelect/internal/services/elasticnet"
	"FinSelect/internal/services/features"
	"FinSelect/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. FINSELECT_KAFKA_BROKERS.
const EnvPrefix = "FINSELECT"

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development staging production"`
	Logger      logger.Config `yaml:"logger"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"5m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		// Requests per second per client IP on the API; 0 disables limiting.
		RateLimit   float64 `yaml:"rate_limit" default:"5" validate:"gte=0"`
		RateBurst   int     `yaml:"rate_burst" default:"10" validate:"gte=1"`
		DisableCORS bool    `yaml:"disable_cors"`
		// Browser origins allowed by CORS; empty allows any.
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Prices struct {
		Source string `yaml:"source" default:"file" validate:"oneof=file clickhouse"`
		Dir    string `yaml:"dir" default:"data"`
		Watch  bool   `yaml:"watch"`
	} `yaml:"prices"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"market"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		InitSchema       bool          `yaml:"init_schema"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"finselect"`

		PoolSize    int           `yaml:"pool_size" default:"10" validate:"gte=1"`
		MinIdle     int           `yaml:"min_idle" default:"2" validate:"gte=0"`
		PoolTimeout time.Duration `yaml:"pool_timeout" default:"4s"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		ReportTopic  string        `yaml:"report_topic" default:"finselect.models"`
		LogTopic     string        `yaml:"log_topic" default:"finselect.logs"`
		RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		LogFlush     time.Duration `yaml:"log_flush" default:"30s"`
		BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"10ms"`
		AutoCreate   bool          `yaml:"auto_create_topics"`
		// Train requests published to TrainTopic are queued like POST /api/models.
		ConsumeTrain bool   `yaml:"consume_train"`
		TrainTopic   string `yaml:"train_topic" default:"finselect.train"`
		GroupID      string `yaml:"group_id" default:"finselect"`
		DLQTopic     string `yaml:"dlq_topic" default:"finselect.train.dlq"`
		Consumers    int    `yaml:"consumers" default:"1" validate:"gte=1,lte=32"`
	} `yaml:"kafka"`

	Reports struct {
		Backend   string        `yaml:"backend" default:"memory" validate:"oneof=memory redis badger"`
		BadgerDir string        `yaml:"badger_dir" default:"var/reports"`
		TTL       time.Duration `yaml:"ttl" default:"168h"`
		LockTTL   time.Duration `yaml:"lock_ttl" default:"30m"`
	} `yaml:"reports"`

	Queue struct {
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		QueueSize  int           `yaml:"queue_size" default:"64" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`

	Model ModelConfig `yaml:"model"`
}

// ModelConfig is the build used by the train command and the request defaults.
type ModelConfig struct {
	Symbol       string               `yaml:"symbol"`
	Timeframe    string               `yaml:"timeframe" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	N            int                  `yaml:"n" default:"2000" validate:"gte=50"`
	NTest        int                  `yaml:"n_test" validate:"gte=0"`
	Buffer       int                  `yaml:"buffer" validate:"gte=0"`
	MinTrainRows int                  `yaml:"min_train_rows" default:"40" validate:"gte=1"`
	Timeout      time.Duration        `yaml:"timeout" default:"10m"`
	Selector     elasticnet.Config    `yaml:"selector"`
	Grid         models.IndicatorGrid `yaml:"grid"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.Model.Selector = elasticnet.DefaultConfig()
	c.Model.Grid = features.DefaultGrid()
	_ = defaults.Set(c)
	return c
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// envOverrides lists the settings deployments usually inject. Unset variables
// leave the file values alone.
type envOverrides struct {
	Environment        *string  `split_words:"true"`
	LogLevel           *string  `split_words:"true"`
	ServerPort         *int     `split_words:"true"`
	PricesSource       *string  `split_words:"true"`
	PricesDir          *string  `split_words:"true"`
	ClickhouseHost     *string  `split_words:"true"`
	ClickhousePassword *string  `split_words:"true"`
	RedisHost          *string  `split_words:"true"`
	RedisPassword      *string  `split_words:"true"`
	KafkaBrokers       []string `split_words:"true"`
	ModelSymbol        *string  `split_words:"true"`
}

// LoadWithEnv loads config from YAML and overrides it with FINSELECT_*
// environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv applies environment overrides and revalidates.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Environment, o.Environment)
	set(&c.Logger.Level, o.LogLevel)
	set(&c.Prices.Source, o.PricesSource)
	set(&c.Prices.Dir, o.PricesDir)
	set(&c.ClickHouse.Host, o.ClickhouseHost)
	set(&c.ClickHouse.Password, o.ClickhousePassword)
	set(&c.Redis.Host, o.RedisHost)
	set(&c.Redis.Password, o.RedisPassword)
	set(&c.Model.Symbol, o.ModelSymbol)
	if o.ServerPort != nil {
		c.Server.Port = *o.ServerPort
	}
	if len(o.KafkaBrokers) > 0 {
		c.Kafka.Brokers = o.KafkaBrokers
		c.Kafka.Enabled = true
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks field constraints and the combinations between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := features.ValidateGrid(c.Model.Grid); err != nil {
		return fmt.Errorf("model.grid: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if (c.Reports.Backend == "redis" || c.Queue.Backend == "redis") && !c.Redis.Enabled {
		return fmt.Errorf("redis must be enabled for the redis report or queue backend")
	}
	if c.Prices.Source == "file" && c.Prices.Dir == "" {
		return fmt.Errorf("prices.dir is required for the file source")
	}
	return nil
}
