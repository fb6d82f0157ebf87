package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the controller's full runtime configuration. Values come from an
// optional YAML file overlaid with environment variables, the same order the
// platform services use.
type Config struct {
	ServiceName string         `yaml:"serviceName"`
	ServerAddr  string         `yaml:"serverAddr"`
	LogLevel    string         `yaml:"logLevel"`
	Mongo       MongoConfig    `yaml:"mongo"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Facility    FacilityConfig `yaml:"facility"`
}

// MongoConfig configures the optional MongoDB-backed instruction store.
type MongoConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// KafkaConfig configures the EDI export publisher.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	ExportTopic  string        `yaml:"exportTopic"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
}

// FacilityConfig carries the facility name and the pick-behavior property
// toggles. The toggles arrive as plain key/value pairs from the host
// configuration system; validation of their source is out of scope.
type FacilityConfig struct {
	Name       string            `yaml:"name"`
	Properties map[string]string `yaml:"properties"`
}

// Facility property keys.
const (
	PropLocaPick = "LOCAPICK" // create inventory at the order's preferred location
	PropScanPick = "SCANPICK" // require an item scan before the pick counts
	PropPickMult = "PICKMULT" // light all simultaneous positions at once
	PropWorkSeqr = "WORKSEQR" // sequencing policy name
	PropOrderSub = "ORDERSUB" // allow substitutions facility-wide
)

// Properties is the parsed view of the facility toggles.
type Properties struct {
	LocaPick bool
	ScanPick bool
	PickMult bool
	WorkSeqr string
	OrderSub bool
}

// DefaultProperties returns the stock behavior: path-distance sequencing,
// no scan verification, one position at a time.
func DefaultProperties() Properties {
	return Properties{WorkSeqr: "BayDistance"}
}

// ParseProperties folds raw key/values over the defaults. Unknown keys are
// ignored so newer imports do not break older controllers.
func ParseProperties(raw map[string]string) Properties {
	p := DefaultProperties()
	for key, value := range raw {
		on := isTruthy(value)
		switch strings.ToUpper(key) {
		case PropLocaPick:
			p.LocaPick = on
		case PropScanPick:
			p.ScanPick = on
		case PropPickMult:
			p.PickMult = on
		case PropOrderSub:
			p.OrderSub = on
		case PropWorkSeqr:
			if value != "" {
				p.WorkSeqr = value
			}
		}
	}
	return p
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// Load builds the config from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: "che-controller",
		ServerAddr:  getEnv("SERVER_ADDR", ":8021"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "che_controller_db"),
		},
		Kafka: KafkaConfig{
			Brokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ExportTopic:  getEnv("KAFKA_EXPORT_TOPIC", "wms.work-instructions.export"),
			BatchTimeout: 100 * time.Millisecond,
		},
		Facility: FacilityConfig{
			Name:       getEnv("FACILITY_NAME", "F1"),
			Properties: map[string]string{},
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("MONGODB_ENABLED"); v != "" {
		cfg.Mongo.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled, _ = strconv.ParseBool(v)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
