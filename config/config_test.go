package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJob(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMinimalJob(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `
plc:
  address: 192.168.1.10
tags: [Tag1, Tag2]
`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if job.PLC.Address != "192.168.1.10" {
		t.Errorf("Address = %q", job.PLC.Address)
	}
	if len(job.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 entries", job.Tags)
	}
	if got, want := job.PollInterval(), time.Second; got != want {
		t.Errorf("PollInterval() = %v, want %v", got, want)
	}
	if got, want := job.PLC.Timeout(), 5000*time.Millisecond; got != want {
		t.Errorf("Timeout() = %v, want %v", got, want)
	}
}

func TestLoadFullJob(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, `
plc:
  address: 192.168.1.10
  route_path: "1,0"
  timeout_ms: 2000
poll_interval_ms: 250
tags: [Tag1, Recipe.Count]
sinks:
  mqtt:
    broker: tcp://localhost:1883
    topic_prefix: plc/line1
  kafka:
    brokers: [localhost:9092]
    topic: plc-tags
cache:
  redis_addr: localhost:6379
  ttl_ms: 500
http:
  listen: ":8080"
`)

	job, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if job.PLC.RoutePath != "1,0" {
		t.Errorf("RoutePath = %q", job.PLC.RoutePath)
	}
	if got, want := job.PollInterval(), 250*time.Millisecond; got != want {
		t.Errorf("PollInterval() = %v, want %v", got, want)
	}
	if job.Sinks.MQTT == nil || job.Sinks.MQTT.Broker != "tcp://localhost:1883" {
		t.Fatalf("Sinks.MQTT = %+v", job.Sinks.MQTT)
	}
	if job.Sinks.Kafka == nil || job.Sinks.Kafka.Topic != "plc-tags" {
		t.Fatalf("Sinks.Kafka = %+v", job.Sinks.Kafka)
	}
	if job.Cache == nil || job.Cache.CacheTTL() != 500*time.Millisecond {
		t.Fatalf("Cache = %+v", job.Cache)
	}
	if job.HTTP == nil || job.HTTP.Listen != ":8080" {
		t.Fatalf("HTTP = %+v", job.HTTP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error loading a nonexistent file")
	}
}

func TestValidateRequiresAddress(t *testing.T) {
	job := &JobFile{Tags: []string{"Tag1"}}
	if err := job.Validate(); err == nil {
		t.Fatal("expected error for missing plc.address")
	}
}

func TestValidateRequiresTags(t *testing.T) {
	job := &JobFile{PLC: PLCConfig{Address: "192.168.1.10"}}
	if err := job.Validate(); err == nil {
		t.Fatal("expected error for empty tag list")
	}
}

func TestValidateRequiresCacheAddr(t *testing.T) {
	job := &JobFile{
		PLC:   PLCConfig{Address: "192.168.1.10"},
		Tags:  []string{"Tag1"},
		Cache: &CacheConfig{},
	}
	if err := job.Validate(); err == nil {
		t.Fatal("expected error for cache config with empty redis_addr")
	}
}

func TestValidateRequiresMQTTBroker(t *testing.T) {
	job := &JobFile{
		PLC:   PLCConfig{Address: "192.168.1.10"},
		Tags:  []string{"Tag1"},
		Sinks: SinksConfig{MQTT: &MQTTSinkConfig{}},
	}
	if err := job.Validate(); err == nil {
		t.Fatal("expected error for mqtt sink config with empty broker")
	}
}
