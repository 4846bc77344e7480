package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `
device: /dev/ttyUSB0
network:
  ssid: HomeNet
  password: hunter2
peer:
  host: 10.0.0.7
  port: 1883
log:
  level: debug
  format: json
telemetry:
  listen: 127.0.0.1:8418
timeouts:
  short_ms: 500
  long_ms: 8000
  read_poll_ms: 250
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Device != "/dev/ttyUSB0" {
		t.Fatalf("Device = %q", cfg.Device)
	}
	if cfg.Network.SSID != "HomeNet" || cfg.Network.Password != "hunter2" {
		t.Fatalf("Network = %+v", cfg.Network)
	}
	if cfg.Peer.Host != "10.0.0.7" || cfg.Peer.Port != 1883 {
		t.Fatalf("Peer = %+v", cfg.Peer)
	}
	if cfg.Timeouts.ShortMS != 500 || cfg.Timeouts.LongMS != 8000 || cfg.Timeouts.ReadPollMS != 250 {
		t.Fatalf("Timeouts = %+v", cfg.Timeouts)
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := []struct {
		strip string
		want  string
	}{
		{"device: /dev/ttyUSB0", "device"},
		{"  ssid: HomeNet", "network.ssid"},
		{"  host: 10.0.0.7", "peer.host"},
	}
	for _, tc := range cases {
		broken := strings.Replace(sample, tc.strip, "", 1)
		_, err := Parse([]byte(broken))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("Parse without %q: err = %v, want mention of %s", tc.strip, err, tc.want)
		}
	}
}

func TestParseRejectsBadPort(t *testing.T) {
	broken := strings.Replace(sample, "port: 1883", "port: 70000", 1)
	if _, err := Parse([]byte(broken)); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestParseRejectsNegativePoll(t *testing.T) {
	broken := strings.Replace(sample, "read_poll_ms: 250", "read_poll_ms: -1", 1)
	if _, err := Parse([]byte(broken)); err == nil {
		t.Fatal("expected error for negative read_poll_ms")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esp.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.Listen != "127.0.0.1:8418" {
		t.Fatalf("Telemetry.Listen = %q", cfg.Telemetry.Listen)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
