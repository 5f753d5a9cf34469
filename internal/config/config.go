package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/glider-data-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Output files.
	OutputDir        string
	OutputPrefix     string
	KeepIntermediate bool
	WriteSeparate    bool
	WriteBackup      bool
	SampleRows       int

	// Ingestion.
	SortByTime  bool
	SequenceMin int
	SequenceMax int

	// Conversion.
	LongitudeHemisphere domain.Hemisphere
	FallbackPosition    *domain.Position
	SAARTable           string
	SAARCacheSize       int

	// Reporting.
	LedgerPath      string
	MetricsTextfile string

	// Kafka publishing of the final table.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaBatchSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	hemisphere, err := domain.ParseHemisphere(sharedcfg.EnvOrDefault("LONGITUDE_HEMISPHERE", string(domain.HemisphereWest)))
	if err != nil {
		return nil, fmt.Errorf("invalid LONGITUDE_HEMISPHERE: %w", err)
	}

	fallback, err := parseFallbackPosition()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		OutputPrefix: sharedcfg.EnvOrDefault("OUTPUT_PREFIX", "mission"),

		LongitudeHemisphere: hemisphere,
		FallbackPosition:    fallback,
		SAARTable:           os.Getenv("SAAR_TABLE"),

		LedgerPath:      sharedcfg.EnvOrDefault("LEDGER_PATH", "output/runs.db"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "glider-observations"),
	}
	if os.Getenv("LEDGER_PATH") == "-" {
		cfg.LedgerPath = ""
	}

	bools := []struct {
		name string
		def  bool
		dst  *bool
	}{
		{"KEEP_INTERMEDIATE", true, &cfg.KeepIntermediate},
		{"WRITE_SEPARATE", false, &cfg.WriteSeparate},
		{"WRITE_BACKUP", true, &cfg.WriteBackup},
		{"SORT_BY_TIME", true, &cfg.SortByTime},
		{"KAFKA_ENABLED", false, &cfg.KafkaEnabled},
	}
	for _, b := range bools {
		if *b.dst, err = parseBool(b.name, b.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		name     string
		def, min int
		dst      *int
	}{
		{"SAMPLE_ROWS", 300, 0, &cfg.SampleRows},
		{"SEQUENCE_MIN", 0, 0, &cfg.SequenceMin},
		{"SEQUENCE_MAX", 0, 0, &cfg.SequenceMax},
		{"SAAR_CACHE_SIZE", 4096, 1, &cfg.SAARCacheSize},
		{"KAFKA_BATCH_SIZE", 500, 1, &cfg.KafkaBatchSize},
	}
	for _, n := range ints {
		if *n.dst, err = parseInt(n.name, n.def, n.min); err != nil {
			return nil, err
		}
	}

	if cfg.SequenceMax > 0 && cfg.SequenceMin > cfg.SequenceMax {
		return nil, errors.New("SEQUENCE_MIN must not exceed SEQUENCE_MAX")
	}
	if cfg.OutputPrefix == "" {
		return nil, errors.New("OUTPUT_PREFIX is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", name)
	}
	return v, nil
}

func parseInt(name string, def, min int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", name, min)
	}
	return n, nil
}

// parseFallbackPosition reads FALLBACK_LATITUDE and FALLBACK_LONGITUDE.
// Both or neither must be set.
func parseFallbackPosition() (*domain.Position, error) {
	latStr, lonStr := os.Getenv("FALLBACK_LATITUDE"), os.Getenv("FALLBACK_LONGITUDE")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("FALLBACK_LATITUDE and FALLBACK_LONGITUDE must be set together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 || lat == 0 {
		return nil, errors.New("invalid FALLBACK_LATITUDE: must be a non-zero latitude in decimal degrees")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 || lon == 0 {
		return nil, errors.New("invalid FALLBACK_LONGITUDE: must be a non-zero longitude in decimal degrees")
	}
	return &domain.Position{Latitude: lat, Longitude: lon}, nil
}
