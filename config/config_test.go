package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRejectsEmptyValues(t *testing.T) {
	path := writeConfig(t, `
version = "v1"

[segment_tree]
name = "empty"
values = []
`)
	var conf Config
	err := Load(path, &conf)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "verbose"

[segment_tree]
values = [1]
`)
	var conf Config
	if err := Load(path, &conf); err == nil {
		t.Fatalf("expected validation error for unknown log level")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
version = "v1.2.0"

[log]
level = "debug"

[metrics]
enabled = true
port = "9100"

[segment_tree]
name = "demo"
values = [1, 3, 5, 7, 9, 11]
`)
	t.Setenv("APP_LOG_LEVEL", "warn")

	var conf Config
	if err := Load(path, &conf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if conf.Version != "v1.2.0" {
		t.Errorf("Version = %q", conf.Version)
	}
	if conf.Log.Level != "warn" {
		t.Errorf("env override not applied, Log.Level = %q", conf.Log.Level)
	}
	if conf.Metrics.Path != "/metrics" || conf.Metrics.Port != "9100" {
		t.Errorf("unexpected metrics config %+v", conf.Metrics)
	}
	if conf.SegmentTree.Name != "demo" {
		t.Errorf("SegmentTree.Name = %q", conf.SegmentTree.Name)
	}
	want := []int64{1, 3, 5, 7, 9, 11}
	if len(conf.SegmentTree.Values) != len(want) {
		t.Fatalf("Values = %v, want %v", conf.SegmentTree.Values, want)
	}
	for i := range want {
		if conf.SegmentTree.Values[i] != want[i] {
			t.Fatalf("Values = %v, want %v", conf.SegmentTree.Values, want)
		}
	}
	if GetViper().GetString("segment_tree.name") != "demo" {
		t.Errorf("viper instance not populated")
	}

	cur := Current()
	if cur == nil || cur.SegmentTree.Name != "demo" {
		t.Fatalf("Current() = %+v, want loaded config", cur)
	}
	conf.SegmentTree.Values[0] = 100
	if cur.SegmentTree.Values[0] != 1 {
		t.Errorf("Current() shares the caller's values slice")
	}
}

func TestMask(t *testing.T) {
	m := map[string]any{
		"tracing": map[string]any{"auth_token": "abc", "otlp_endpoint": "localhost:4317"},
		"password": "p",
		"name":     "demo",
	}
	mask(m)

	if m["password"] != "******" {
		t.Errorf("password not masked")
	}
	if m["name"] != "demo" {
		t.Errorf("name should be untouched")
	}
	tr := m["tracing"].(map[string]any)
	if tr["auth_token"] != "******" || tr["otlp_endpoint"] != "localhost:4317" {
		t.Errorf("nested masking wrong: %v", tr)
	}
}

func TestRegisterReloadHookIgnoresNil(t *testing.T) {
	before := len(onReload)
	RegisterReloadHook(nil)
	RegisterReloadHook(func(*Config) {})
	if len(onReload) != before+1 {
		t.Errorf("expected exactly one hook to be registered")
	}
}

func TestHotReloadSwapsSnapshotAndRunsHooks(t *testing.T) {
	path := writeConfig(t, `
[segment_tree]
name = "reload"
values = [1, 2, 3]
`)
	var conf Config
	if err := Load(path, &conf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	before := Current()

	reloaded := make(chan *Config, 4)
	RegisterReloadHook(func(c *Config) {
		if c.SegmentTree.Name != "reload" {
			return
		}
		select {
		case reloaded <- c:
		default:
		}
	})

	if err := os.WriteFile(path, []byte(`
[segment_tree]
name = "reload"
values = [4, 5, 6, 7]
`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	var next *Config
	select {
	case next = <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatalf("reload hook was not called after the config file changed")
	}

	if !slices.Equal(next.SegmentTree.Values, []int64{4, 5, 6, 7}) {
		t.Errorf("hook received values %v", next.SegmentTree.Values)
	}
	if Current() == before || !slices.Equal(Current().SegmentTree.Values, []int64{4, 5, 6, 7}) {
		t.Errorf("Current() was not swapped to the reloaded snapshot")
	}
	if !slices.Equal(before.SegmentTree.Values, []int64{1, 2, 3}) {
		t.Errorf("previous snapshot was mutated in place: %v", before.SegmentTree.Values)
	}
	if !slices.Equal(conf.SegmentTree.Values, []int64{1, 2, 3}) {
		t.Errorf("caller's config was written by the reload: %v", conf.SegmentTree.Values)
	}

	GetViper().Set("segment_tree.values", []int64{})
	if err := reload(validator.New()); err == nil {
		t.Errorf("reload accepted an empty segment tree")
	}
	if !slices.Equal(Current().SegmentTree.Values, []int64{4, 5, 6, 7}) {
		t.Errorf("rejected reload replaced the snapshot: %v", Current().SegmentTree.Values)
	}
}
