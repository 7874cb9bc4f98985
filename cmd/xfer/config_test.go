package main

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("testdata/jobs.toml")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	exp := Config{
		Mode:            "event",
		MaxTotal:        4,
		MaxConnsPerHost: 2,
		RPS:             50,
		Burst:           10,
		UserAgent:       "xfer/1.0",
		Share:           []string{"cookie", "dns", "connection"},
		Jobs: []Job{
			{
				URL:         "https://example.com/archive.tar.gz",
				Output:      "archive.tar.gz",
				SHA256:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
				Timeout:     "30s",
				FailOnError: true,
			},
			{
				URL:     "https://example.com/upload",
				Upload:  "report.json",
				Method:  http.MethodPost,
				Headers: map[string]string{"Content-Type": "application/json"},
			},
			{
				URL:        "https://api.example.com:8443/v1/items?limit=50&page=2",
				Output:     "items.json",
				Compressed: true,
			},
		},
	}
	if diff := cmp.Diff(exp, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if d := cfg.Jobs[0].timeout(); d != 30*time.Second {
		t.Errorf("exp 30s timeout, got %v", d)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig("testdata/invalid.toml")

	var fields FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("exp FieldErrors, got: %v", err)
	}

	got := make(map[string]bool)
	for _, f := range fields {
		got[f.Field] = true
	}
	for _, field := range []string{"Config.mode", "Config.share[1]", "Config.job[0].url", "Config.job[0].timeout"} {
		if !got[field] {
			t.Errorf("exp an error for %s, got %v", field, fields)
		}
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		expErr bool
	}{
		{name: "no jobs", cfg: Config{}, expErr: true},
		{name: "minimal", cfg: Config{Jobs: []Job{{URL: "http://example.com/"}}}},
		{name: "file url", cfg: Config{Jobs: []Job{{URL: "file:///tmp/x"}}}},
		{name: "rps without burst", cfg: Config{RPS: 5, Jobs: []Job{{URL: "http://example.com/"}}}, expErr: true},
		{name: "checksum without output", cfg: Config{Jobs: []Job{{URL: "http://example.com/", SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}}}, expErr: true},
		{name: "upload and output", cfg: Config{Jobs: []Job{{URL: "http://example.com/", Upload: "a", Output: "b"}}}, expErr: true},
		{name: "bad method", cfg: Config{Jobs: []Job{{URL: "http://example.com/", Method: "FETCH"}}}, expErr: true},
		{name: "bad pin", cfg: Config{Jobs: []Job{{URL: "http://example.com/", PinnedKey: "md5//x"}}}, expErr: true},
		{name: "target", cfg: Config{Jobs: []Job{{Target: &Target{Host: "example.com", Port: 8080}}}}},
		{name: "url and target", cfg: Config{Jobs: []Job{{URL: "http://example.com/", Target: &Target{Host: "example.com"}}}}, expErr: true},
		{name: "neither url nor target", cfg: Config{Jobs: []Job{{Output: "x"}}}, expErr: true},
		{name: "target without host", cfg: Config{Jobs: []Job{{Target: &Target{Path: "/x"}}}}, expErr: true},
		{name: "target bad scheme", cfg: Config{Jobs: []Job{{Target: &Target{Scheme: "gopher", Host: "example.com"}}}}, expErr: true},
		{name: "target bad port", cfg: Config{Jobs: []Job{{Target: &Target{Host: "example.com", Port: 70000}}}}, expErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if tc.expErr != (err != nil) {
				t.Errorf("exp error %v, got: %v", tc.expErr, err)
			}
		})
	}
}
