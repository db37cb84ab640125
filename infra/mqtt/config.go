package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultHost        = "localhost"
	DefaultPort        = 1883
	DefaultTopicPrefix = "vss"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	// URL overrides Host/Port when set, e.g. tcp://broker:1883.
	URL         string `json:"url"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`

	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`

	LWTTopic   string `json:"lwt_topic"`
	LWTPayload string `json:"lwt_payload"`
	LWTQoS     byte   `json:"lwt_qos"`
	LWTRetain  bool   `json:"lwt_retain"`

	ConnectTimeoutMS int `json:"connect_timeout_ms"`
	// MaxRetries and BackoffMS govern per-message publish retries.
	MaxRetries int `json:"max_retries"`
	BackoffMS  int `json:"backoff_ms"`

	Retry RetryConfig `json:"retry"`

	TLSConfig *tls.Config `json:"-"`
}

// RetryConfig controls the exponential backoff used while connecting.
type RetryConfig struct {
	MaxAttempts      int     `json:"max_attempts"`
	InitialBackoffMS int     `json:"initial_backoff_ms"`
	MaxBackoffMS     int     `json:"max_backoff_ms"`
	Multiplier       float64 `json:"multiplier"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	c.TopicPrefix = strings.Trim(c.TopicPrefix, "/")
	if c.ClientID == "" {
		c.ClientID = "vehicle-sim-" + uuid.NewString()[:8]
	}
	if c.ConnectTimeoutMS == 0 {
		c.ConnectTimeoutMS = 5000
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	c.Retry.SetDefaults()
}

// SetDefaults applies 10 attempts starting at 1s, doubling up to 30s.
func (r *RetryConfig) SetDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 10
	}
	if r.InitialBackoffMS == 0 {
		r.InitialBackoffMS = 1000
	}
	if r.MaxBackoffMS == 0 {
		r.MaxBackoffMS = 30000
	}
	if r.Multiplier == 0 {
		r.Multiplier = 2
	}
}

// Validate checks the broker settings.
func (c Config) Validate() error {
	if c.URL == "" {
		if c.Host == "" {
			return errors.New("broker host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid broker port %d", c.Port)
		}
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		return errors.New("tls requires client_cert, client_key and ca_bundle")
	}
	return c.Retry.Validate()
}

// Validate checks the backoff settings.
func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", r.MaxAttempts)
	}
	if r.InitialBackoffMS < 0 || r.MaxBackoffMS < r.InitialBackoffMS {
		return fmt.Errorf("invalid retry backoff %dms..%dms", r.InitialBackoffMS, r.MaxBackoffMS)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1, got %v", r.Multiplier)
	}
	return nil
}

// InitialBackoff returns the first retry delay.
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMS) * time.Millisecond
}

// BrokerURL returns URL or builds one from Host and Port.
func (c Config) BrokerURL() string {
	if c.URL != "" {
		return c.URL
	}
	scheme := "tcp"
	if c.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL()).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetCleanSession(true)
	if cfg.ConnectTimeoutMS > 0 {
		opts.SetConnectTimeout(time.Duration(cfg.ConnectTimeoutMS) * time.Millisecond)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}
