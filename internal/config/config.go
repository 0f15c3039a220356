// If you are AI: This file defines the configuration structure for rtmprelay.
// It uses strict YAML decoding and explicit defaults.

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the complete server configuration.
// All fields must have explicit defaults or be required.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig defines the three listener ports this process opens.
type ServerConfig struct {
	HealthPort int `yaml:"health_port"` // Port for health/readiness endpoint
	HTTPPort   int `yaml:"http_port"`   // Port for HTTP-FLV, WebSocket-FLV, and the API
	RTMPPort   int `yaml:"rtmp_port"`   // Port for the RTMP ingest/playback service
}

// SessionConfig tunes the per-connection fan-out behavior every RTMP session
// uses.
type SessionConfig struct {
	ChunkSize        uint32 `yaml:"chunk_size"`        // Outgoing RTMP chunk size advertised at connect
	SubscriberBuffer uint32 `yaml:"subscriber_buffer"` // Ring buffer capacity (messages) per player
	SendQueueBytes   int    `yaml:"send_queue_bytes"`  // Bounded outgoing byte budget per session
}

// Load reads configuration from a YAML file.
// Returns an error if the file cannot be read or decoded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Apply defaults
	cfg.setDefaults()

	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = 8080
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8081
	}
	if c.Server.RTMPPort == 0 {
		c.Server.RTMPPort = 1935
	}
	if c.Session.ChunkSize == 0 {
		c.Session.ChunkSize = 4096
	}
	if c.Session.SubscriberBuffer == 0 {
		c.Session.SubscriberBuffer = 1024
	}
	if c.Session.SendQueueBytes == 0 {
		c.Session.SendQueueBytes = 4 * 1024 * 1024
	}
}
