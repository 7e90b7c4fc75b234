package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	aggregation "metering-aggregations/internal/aggregation/domain"
)

// Input sources.
const (
	InputCSV      = "csv"
	InputPostgres = "postgres"
)

// Output sinks.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkInfluxDB = "influxdb"
	SinkKafka    = "kafka"
	SinkStdout   = "stdout"
)

var knownSinks = map[string]struct{}{
	SinkPostgres: {},
	SinkSQLite:   {},
	SinkInfluxDB: {},
	SinkKafka:    {},
	SinkStdout:   {},
}

var (
	ErrInvalidConfig   = errors.New("config: invalid configuration")
	ErrInvalidDateTime = errors.New("config: invalid date-time")
)

// DateTimeLayout is the job's date-time argument format, e.g. 2020-01-03T00:00:00+0000.
const DateTimeLayout = "2006-01-02T15:04:05-0700"

// InputConfig selects where time series are read from.
type InputConfig struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Table  string `yaml:"table"`
}

// InfluxDBConfig holds InfluxDB v2 settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Config is the aggregation job and API configuration.
type Config struct {
	DatabaseURL string         `yaml:"database_url"`
	HTTPAddr    string         `yaml:"http_addr"`
	JWTSecret   string         `yaml:"jwt_secret"`
	Input       InputConfig    `yaml:"input"`
	Sinks       []string       `yaml:"sinks"`
	ResultTable string         `yaml:"result_table"`
	SQLitePath  string         `yaml:"sqlite_path"`
	InfluxDB    InfluxDBConfig `yaml:"influxdb"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Workers     int            `yaml:"workers"`
	Hourly      bool           `yaml:"hourly"`
}

// Load reads defaults from the environment, then overlays the YAML file named by AGGREGATION_CONFIG.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		Input: InputConfig{
			Source: getenvDefault("AGGREGATION_INPUT", InputCSV),
			Path:   getenvDefault("AGGREGATION_INPUT_PATH", ""),
			Table:  getenvDefault("AGGREGATION_INPUT_TABLE", "time_series_points"),
		},
		Sinks:       splitCSV(getenvDefault("AGGREGATION_SINKS", SinkStdout)),
		ResultTable: getenvDefault("AGGREGATION_RESULT_TABLE", "hourly_consumption_supplier"),
		SQLitePath:  getenvDefault("AGGREGATION_SQLITE_PATH", "aggregations.db"),
		InfluxDB: InfluxDBConfig{
			URL:    getenvDefault("INFLUXDB_URL", ""),
			Token:  getenvDefault("INFLUXDB_TOKEN", ""),
			Org:    getenvDefault("INFLUXDB_ORG", ""),
			Bucket: getenvDefault("INFLUXDB_BUCKET", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getenvDefault("KAFKA_BROKERS", "")),
			Topic:   getenvDefault("KAFKA_TOPIC", "hourly-consumption-supplier"),
		},
		Workers: getenvIntDefault("AGGREGATION_WORKERS", 1),
		Hourly:  getenvBoolDefault("AGGREGATION_HOURLY", false),
	}

	if path := os.Getenv("AGGREGATION_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	return cfg, nil
}

// Validate checks that the selected input and sinks have their settings.
func (c Config) Validate() error {
	switch c.Input.Source {
	case InputCSV:
		if c.Input.Path == "" {
			return fmt.Errorf("%w: csv input requires an input path", ErrInvalidConfig)
		}
	case InputPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres input requires DATABASE_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown input source %q", ErrInvalidConfig, c.Input.Source)
	}

	for _, sink := range c.Sinks {
		if _, ok := knownSinks[sink]; !ok {
			return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, sink)
		}
		switch sink {
		case SinkPostgres:
			if c.DatabaseURL == "" {
				return fmt.Errorf("%w: postgres sink requires DATABASE_URL", ErrInvalidConfig)
			}
		case SinkSQLite:
			if c.SQLitePath == "" {
				return fmt.Errorf("%w: sqlite sink requires a path", ErrInvalidConfig)
			}
		case SinkInfluxDB:
			if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
				return fmt.Errorf("%w: influxdb sink requires url, org and bucket", ErrInvalidConfig)
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
				return fmt.Errorf("%w: kafka sink requires brokers and topic", ErrInvalidConfig)
			}
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HasSink reports whether sink is enabled.
func (c Config) HasSink(sink string) bool {
	for _, s := range c.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

// ParseDateTime parses a zone-aware date-time in DateTimeLayout or RFC 3339.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{DateTimeLayout, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateTime, value)
}

// ParsePeriod parses both bounds and rejects empty or inverted windows.
func ParsePeriod(start, end string) (aggregation.Period, error) {
	from, err := ParseDateTime(start)
	if err != nil {
		return aggregation.Period{}, err
	}
	to, err := ParseDateTime(end)
	if err != nil {
		return aggregation.Period{}, err
	}
	return aggregation.NewPeriod(from, to)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(value string) []string { return splitCSV(value) }

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
