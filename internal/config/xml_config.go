// Package config provides XML-based configuration management for the
// FloorWatch live-run backend.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Telemetry transports.
const (
	TransportSocketIO = "socketio"
	TransportMQTT     = "mqtt"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"FloorWatch"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Factory REST API
	Backend BackendConfig `xml:"Backend"`

	// Live stream
	Telemetry TelemetryConfig `xml:"Telemetry"`

	View       ViewConfig       `xml:"View"`
	Statistics StatisticsConfig `xml:"Statistics"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// BackendConfig points at the factory REST API and asset host
type BackendConfig struct {
	APIURL                string `xml:"APIURL"`
	FileURL               string `xml:"FileURL"`
	Token                 string `xml:"Token"`
	RequestTimeoutSeconds int    `xml:"RequestTimeoutSeconds"`
}

// TelemetryConfig selects and tunes the live-stream transport
type TelemetryConfig struct {
	Transport   string `xml:"Transport"`
	StreamURL   string `xml:"StreamURL"`
	Credentials bool   `xml:"Credentials"`

	HandshakeTimeoutSeconds int  `xml:"HandshakeTimeoutSeconds"`
	Reconnect               bool `xml:"Reconnect"`
	MaxReconnectAttempts    int  `xml:"MaxReconnectAttempts"`

	MQTT MQTTConfig `xml:"MQTT"`
}

// MQTTConfig is used when Transport is mqtt
type MQTTConfig struct {
	Broker      string `xml:"Broker"`
	ClientID    string `xml:"ClientID"`
	Username    string `xml:"Username"`
	Password    string `xml:"Password"`
	TopicPrefix string `xml:"TopicPrefix"`
	QoS         int    `xml:"QoS"`
}

// ViewConfig holds projection defaults
type ViewConfig struct {
	ItemsPerPage         int `xml:"ItemsPerPage"`
	NotificationCapacity int `xml:"NotificationCapacity"`
}

// StatisticsConfig points at the optional variance rules file
type StatisticsConfig struct {
	RulesFile string `xml:"RulesFile"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	LogFormat               string `xml:"LogFormat"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "1M",
		},
		Backend: BackendConfig{
			RequestTimeoutSeconds: 15,
		},
		Telemetry: TelemetryConfig{
			Transport:               TransportSocketIO,
			Credentials:             true,
			HandshakeTimeoutSeconds: 10,
			Reconnect:               true,
			MaxReconnectAttempts:    20,
			MQTT: MQTTConfig{
				ClientID:    "floorwatch",
				TopicPrefix: "floorwatch",
				QoS:         1,
			},
		},
		View: ViewConfig{
			ItemsPerPage:         16,
			NotificationCapacity: 50,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFormat:               "text",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- FloorWatch Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("FLOORWATCH_API_URL"); v != "" {
		c.Backend.APIURL = v
	}
	if v := os.Getenv("FLOORWATCH_FILE_URL"); v != "" {
		c.Backend.FileURL = v
	}
	if v := os.Getenv("FLOORWATCH_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("FLOORWATCH_STREAM_URL"); v != "" {
		c.Telemetry.StreamURL = v
	}
	if v := os.Getenv("FLOORWATCH_TRANSPORT"); v != "" {
		c.Telemetry.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("FLOORWATCH_MQTT_BROKER"); v != "" {
		c.Telemetry.MQTT.Broker = v
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if c.Statistics.RulesFile != "" && !filepath.IsAbs(c.Statistics.RulesFile) {
		c.Statistics.RulesFile = filepath.Join(configDir, c.Statistics.RulesFile)
	}
}

// Validate reports settings the server cannot start without.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Backend.APIURL == "" {
		errs = append(errs, errors.New("backend API URL is not set (Backend/APIURL or FLOORWATCH_API_URL)"))
	}

	switch c.Telemetry.Transport {
	case TransportSocketIO:
		if c.Telemetry.StreamURL == "" {
			errs = append(errs, errors.New("stream URL is not set (Telemetry/StreamURL or FLOORWATCH_STREAM_URL)"))
		}
	case TransportMQTT:
		if c.Telemetry.MQTT.Broker == "" {
			errs = append(errs, errors.New("MQTT broker is not set (Telemetry/MQTT/Broker or FLOORWATCH_MQTT_BROKER)"))
		}
		if c.Telemetry.MQTT.QoS < 0 || c.Telemetry.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("MQTT QoS %d must be 0, 1 or 2", c.Telemetry.MQTT.QoS))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown telemetry transport %q", c.Telemetry.Transport))
	}

	if c.View.ItemsPerPage < 1 {
		errs = append(errs, fmt.Errorf("items per page must be positive, got %d", c.View.ItemsPerPage))
	}
	return errors.Join(errs...)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// RequestTimeout is the per-request bound for backend calls.
func (c *AppConfig) RequestTimeout() time.Duration {
	return seconds(c.Backend.RequestTimeoutSeconds, 15)
}

// HandshakeTimeout bounds dialing the live stream.
func (c *AppConfig) HandshakeTimeout() time.Duration {
	return seconds(c.Telemetry.HandshakeTimeoutSeconds, 10)
}

// AllowedOrigins splits the comma-separated AllowOrigins setting.
func (c *AppConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
