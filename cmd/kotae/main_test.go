package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"is a root canal covered", "-output", "json"},
			expected: []string{"-output", "json", "is a root canal covered"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "is a root canal covered"},
			expected: []string{"-output", "json", "is a root canal covered"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is a deductible"},
			expected: []string{"what is a deductible"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"what", "is", "-server", ""},
			expected: []string{"-server", "", "what", "is"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"deductible"}, "deductible"},
		{"multiple words", []string{"what", "is", "a", "deductible"}, "what is a deductible"},
		{"quoted phrase", []string{"what is a deductible"}, "what is a deductible"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNothingFound(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want built-in defaults", resolved)
	}
	if cfg.Retrieval.TopK == 0 || cfg.Chunking.Size == 0 {
		t.Errorf("defaults not applied: %+v", cfg.Retrieval)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestPostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/answer":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"query":"q","answer":{"text":"ok [doc: faq_1]","citations":[{"document_id":"faq_1"}],"in_scope":true}}`))
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	}))
	defer ts.Close()

	var turn models.Turn
	if err := postJSON(ts.URL+"/api/v1/answer", models.AnswerRequest{Query: "q"}, &turn); err != nil {
		t.Fatal(err)
	}
	if got := turn.Answer.CitedDocumentIDs(); len(got) != 1 || got[0] != "faq_1" {
		t.Errorf("cited = %v, want [faq_1]", got)
	}

	var out map[string]interface{}
	if err := getJSON(ts.URL+"/missing", &out); err == nil {
		t.Error("expected error for 404")
	}
}
