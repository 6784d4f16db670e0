package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "FLOORWATCH_API_URL", "FLOORWATCH_FILE_URL", "FLOORWATCH_TOKEN",
		"FLOORWATCH_STREAM_URL", "FLOORWATCH_TRANSPORT", "FLOORWATCH_MQTT_BROKER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "FloorWatch.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, TransportSocketIO, cfg.Telemetry.Transport)
	assert.Equal(t, 16, cfg.View.ItemsPerPage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<FloorWatch>")
	assert.Contains(t, string(data), "<ItemsPerPage>16</ItemsPerPage>")
}

func TestLoadConfig_ReadsFileAndResolvesRules(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "FloorWatch.config")
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<FloorWatch>
  <Server><Port>9000</Port><BindAddress>127.0.0.1</BindAddress></Server>
  <Backend><APIURL>http://api.local</APIURL><Token>abc</Token></Backend>
  <Telemetry><Transport>socketio</Transport><StreamURL>http://stream.local</StreamURL></Telemetry>
  <View><ItemsPerPage>8</ItemsPerPage></View>
  <Statistics><RulesFile>rules.yaml</RulesFile></Statistics>
</FloorWatch>`
	require.NoError(t, os.WriteFile(path, []byte(xmlBody), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
	assert.Equal(t, "abc", cfg.Backend.Token)
	assert.Equal(t, 8, cfg.View.ItemsPerPage)
	assert.Equal(t, filepath.Join(dir, "rules.yaml"), cfg.Statistics.RulesFile)
	// Missing elements keep defaults.
	assert.Equal(t, 20, cfg.Telemetry.MaxReconnectAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7777")
	t.Setenv("FLOORWATCH_API_URL", "http://api.env")
	t.Setenv("FLOORWATCH_TOKEN", "env-token")
	t.Setenv("FLOORWATCH_TRANSPORT", "MQTT")
	t.Setenv("FLOORWATCH_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "FloorWatch.config"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "http://api.env", cfg.Backend.APIURL)
	assert.Equal(t, "env-token", cfg.Backend.Token)
	assert.Equal(t, TransportMQTT, cfg.Telemetry.Transport)
	assert.Equal(t, "tcp://broker:1883", cfg.Telemetry.MQTT.Broker)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidXML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "FloorWatch.config")
	require.NoError(t, os.WriteFile(path, []byte("<FloorWatch><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API URL")
	assert.Contains(t, err.Error(), "stream URL")

	cfg.Backend.APIURL = "http://api"
	cfg.Telemetry.StreamURL = "http://stream"
	assert.NoError(t, cfg.Validate())

	cfg.Telemetry.Transport = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "unknown telemetry transport")

	cfg.Telemetry.Transport = TransportMQTT
	assert.ErrorContains(t, cfg.Validate(), "MQTT broker")

	cfg.Telemetry.MQTT.Broker = "tcp://b:1883"
	cfg.Telemetry.MQTT.QoS = 3
	assert.ErrorContains(t, cfg.Validate(), "QoS")
}

func TestHelpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	cfg.Backend.RequestTimeoutSeconds = 0
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout())

	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	cfg.Server.AllowOrigins = "http://a, http://b,"
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins())
	cfg.Server.AllowOrigins = ""
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}
