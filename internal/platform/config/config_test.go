package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_defaults(t *testing.T) {
	t.Setenv("CHANNEL_IDS", "channel1, channel2")
	t.Setenv("EPG_URL_TEMPLATE", "https://epg.example.com/{channel_id}.json")

	c, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Port != "8080" {
		t.Errorf("Port: got %q want 8080", c.Port)
	}
	if c.RefreshInterval != 5*time.Minute {
		t.Errorf("RefreshInterval: got %s want 5m", c.RefreshInterval)
	}
	if c.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout: got %s want 10s", c.FetchTimeout)
	}
	ids := c.Channels()
	if len(ids) != 2 || ids[0] != "channel1" || ids[1] != "channel2" {
		t.Errorf("Channels: got %v", ids)
	}
}

func TestParse_missing_required(t *testing.T) {
	t.Setenv("CHANNEL_IDS", "")
	t.Setenv("EPG_URL_TEMPLATE", "")
	os.Unsetenv("CHANNEL_IDS")
	os.Unsetenv("EPG_URL_TEMPLATE")

	if _, err := Parse(); err == nil {
		t.Error("expected error when required variables are missing")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{ChannelIDs: "a", RefreshInterval: time.Minute, FetchTimeout: time.Second}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}

	blank := valid
	blank.ChannelIDs = " , ,"
	if err := blank.Validate(); err == nil {
		t.Error("expected error for blank channel list")
	}

	noInterval := valid
	noInterval.RefreshInterval = 0
	if err := noInterval.Validate(); err == nil {
		t.Error("expected error for zero refresh interval")
	}

	noTimeout := valid
	noTimeout.FetchTimeout = -time.Second
	if err := noTimeout.Validate(); err == nil {
		t.Error("expected error for negative fetch timeout")
	}
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("LIVE_SCHEDULER_TEST_VAR=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LIVE_SCHEDULER_TEST_VAR") })

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("LIVE_SCHEDULER_TEST_VAR"); got != "from-file" {
		t.Errorf("got %q want from-file", got)
	}
}

func TestLoad_missing_file(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
