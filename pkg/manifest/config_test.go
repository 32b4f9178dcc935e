package manifest

import (
	"errors"
	"testing"
)

func TestParseConfig(t *testing.T) {
	doc := `{
  "buckets": [{"name": "main", "url": "https://example.com/bucket.git"}],
  "apps": [{"name": "rg", "version": "14.1.0", "bucket": "main", "os": ["linux"]}]
}`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if len(cfg.Buckets) != 1 || cfg.Buckets[0].Name != "main" {
		t.Errorf("buckets = %+v", cfg.Buckets)
	}
	if len(cfg.Apps) != 1 || cfg.Apps[0].OS[0] != "linux" {
		t.Errorf("apps = %+v", cfg.Apps)
	}
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	doc := `{"buckets": [], "apps": [], "bukets": []}`
	if _, err := ParseConfig([]byte(doc)); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"duplicate bucket", `{"buckets": [{"name": "a", "url": "u"}, {"name": "a", "url": "v"}], "apps": []}`},
		{"empty bucket name", `{"buckets": [{"name": "", "url": "u"}], "apps": []}`},
		{"undeclared bucket ref", `{"buckets": [], "apps": [{"name": "rg", "version": "1", "bucket": "main"}]}`},
		{"missing app version", `{"buckets": [], "apps": [{"name": "rg", "version": ""}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tc.doc)); !errors.Is(err, ErrConfigInvalid) {
				t.Errorf("error = %v, want ErrConfigInvalid", err)
			}
		})
	}

	// A selector without a bucket searches all buckets and is valid.
	ok := `{"buckets": [{"name": "main", "url": "u"}], "apps": [{"name": "rg", "version": "1"}]}`
	if _, err := ParseConfig([]byte(ok)); err != nil {
		t.Errorf("bucketless selector rejected: %v", err)
	}
}
