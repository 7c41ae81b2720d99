package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/alarm-display/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Parser and formatter options.
	TimeZone          string
	HomeTown          string
	PagerUseHostClock bool

	// Transports. Each is disabled while its address is empty.
	PagerSerialPort    string
	PagerSerialBaud    int
	PagerUDPAddr       string
	IMAPHost           string
	IMAPUser           string
	IMAPPass           string
	IMAPPollInterval   time.Duration
	WebsocketURL       string
	WebsocketToken     string
	WebsocketReconnect time.Duration
	SpoolDir           string

	// Sinks.
	DBPath             string
	ForwardHosts       []string
	ForwardTimeout     time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	BatchSize          int
	BatchFlushInterval time.Duration
	MQTTBroker         string
	MQTTTopic          string
	MQTTClientID       string
	NotifyURL          string
	NotifyTimeout      time.Duration

	UnitsFile string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	imapPoll, err := parseDuration("IMAP_POLL_INTERVAL", "10s")
	if err != nil {
		return nil, err
	}
	wsReconnect, err := parseDuration("WEBSOCKET_RECONNECT", "30s")
	if err != nil {
		return nil, err
	}
	forwardTimeout, err := parseDuration("FORWARD_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := parseDuration("NOTIFY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	baud, err := strconv.Atoi(sharedcfg.EnvOrDefault("PAGER_SERIAL_BAUD", "9600"))
	if err != nil || baud <= 0 {
		return nil, errors.New("invalid PAGER_SERIAL_BAUD")
	}

	hostClock, err := parseBool("PAGER_USE_HOST_CLOCK")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TimeZone:          sharedcfg.EnvOrDefault("TIME_ZONE", domain.DefaultTimeZone),
		HomeTown:          os.Getenv("HOME_TOWN"),
		PagerUseHostClock: hostClock,

		PagerSerialPort:    os.Getenv("PAGER_SERIAL_PORT"),
		PagerSerialBaud:    baud,
		PagerUDPAddr:       os.Getenv("PAGER_UDP_ADDR"),
		IMAPHost:           os.Getenv("IMAP_HOST"),
		IMAPUser:           os.Getenv("IMAP_USER"),
		IMAPPass:           os.Getenv("IMAP_PASS"),
		IMAPPollInterval:   imapPoll,
		WebsocketURL:       os.Getenv("WEBSOCKET_URL"),
		WebsocketToken:     os.Getenv("WEBSOCKET_AUTH_TOKEN"),
		WebsocketReconnect: wsReconnect,
		SpoolDir:           os.Getenv("SPOOL_DIR"),

		DBPath:             os.Getenv("DB_PATH"),
		ForwardHosts:       parseList("FORWARD_HOSTS"),
		ForwardTimeout:     forwardTimeout,
		KafkaBrokers:       parseList("KAFKA_BROKERS"),
		KafkaTopic:         sharedcfg.EnvOrDefault("KAFKA_TOPIC", "alarm-incidents"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		MQTTBroker:         os.Getenv("MQTT_BROKER"),
		MQTTTopic:          sharedcfg.EnvOrDefault("MQTT_TOPIC", "alarmdisplay/alarm"),
		MQTTClientID:       sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "alarmdisplay"),
		NotifyURL:          os.Getenv("NOTIFY_URL"),
		NotifyTimeout:      notifyTimeout,

		UnitsFile: os.Getenv("UNITS_FILE"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if _, err := cfg.Options().Location(); err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
	}
	if cfg.IMAPHost != "" && (cfg.IMAPUser == "" || cfg.IMAPPass == "") {
		return nil, errors.New("IMAP_HOST is set but IMAP_USER or IMAP_PASS is not")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MQTTBroker != "" && cfg.MQTTTopic == "" {
		return nil, errors.New("MQTT_TOPIC is required when MQTT_BROKER is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// Options returns the parser and formatter options.
func (c *Config) Options() domain.Options {
	return domain.Options{
		TimeZone:          c.TimeZone,
		HomeTown:          c.HomeTown,
		PagerUseHostClock: c.PagerUseHostClock,
	}
}

// IMAPEnabled reports whether the mail monitor has everything it needs.
func (c *Config) IMAPEnabled() bool {
	return c.IMAPHost != "" && c.IMAPUser != "" && c.IMAPPass != ""
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(s)
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
