// Package config decodes the YAML job file consumed by tagctl run and
// tagserved: target PLC connection, poll interval, tag list, and sink
// configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JobFile is the YAML-decoded root of a tag-polling job.
type JobFile struct {
	PLC             PLCConfig    `yaml:"plc"`
	PollIntervalMS  int          `yaml:"poll_interval_ms"`
	Tags            []string     `yaml:"tags"`
	Sinks           SinksConfig  `yaml:"sinks,omitempty"`
	Cache           *CacheConfig `yaml:"cache,omitempty"`
	HTTP            *HTTPConfig  `yaml:"http,omitempty"`
}

// PLCConfig holds the target address and session parameters for a
// single EtherNet/IP device.
type PLCConfig struct {
	Address   string `yaml:"address"`
	RoutePath string `yaml:"route_path,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

// SinksConfig names the optional telemetry sinks a job publishes to.
type SinksConfig struct {
	MQTT  *MQTTSinkConfig  `yaml:"mqtt,omitempty"`
	Kafka *KafkaSinkConfig `yaml:"kafka,omitempty"`
}

// MQTTSinkConfig configures the MQTT telemetry sink.
type MQTTSinkConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	UseTLS      bool   `yaml:"use_tls,omitempty"`
}

// KafkaSinkConfig configures the Kafka telemetry sink.
type KafkaSinkConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// CacheConfig configures the Redis-backed read-through cache. A nil
// *CacheConfig on JobFile means caching is disabled.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTLMS     int    `yaml:"ttl_ms"`
}

// HTTPConfig configures the query API server. A nil *HTTPConfig on
// JobFile means tagserved does not start an HTTP listener.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// PollInterval returns the configured poll interval, defaulting to
// one second when unset.
func (j *JobFile) PollInterval() time.Duration {
	if j.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(j.PollIntervalMS) * time.Millisecond
}

// Timeout returns the configured per-request timeout, defaulting to
// 5000ms to match the documented client default.
func (p *PLCConfig) Timeout() time.Duration {
	if p.TimeoutMS <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the configured cache entry lifetime.
func (c *CacheConfig) CacheTTL() time.Duration {
	if c == nil || c.TTLMS <= 0 {
		return 0
	}
	return time.Duration(c.TTLMS) * time.Millisecond
}

// Load reads and validates a job file from path.
func Load(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var job JobFile
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks that the job file describes a runnable job.
func (j *JobFile) Validate() error {
	if strings.TrimSpace(j.PLC.Address) == "" {
		return fmt.Errorf("config: plc.address is required")
	}
	if len(j.Tags) == 0 {
		return fmt.Errorf("config: at least one tag is required")
	}
	if j.Cache != nil && strings.TrimSpace(j.Cache.RedisAddr) == "" {
		return fmt.Errorf("config: cache.redis_addr is required when cache is configured")
	}
	if j.Sinks.MQTT != nil && strings.TrimSpace(j.Sinks.MQTT.Broker) == "" {
		return fmt.Errorf("config: sinks.mqtt.broker is required when the mqtt sink is configured")
	}
	if j.Sinks.Kafka != nil && len(j.Sinks.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: sinks.kafka.brokers is required when the kafka sink is configured")
	}
	return nil
}
