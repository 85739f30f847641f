package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testKey = "app-Wk3Ykq8sP0rT"

func TestSecretRedactsInFormatting(t *testing.T) {
	secret := NewSecret(testKey)

	tests := []struct {
		format string
		want   string
	}{
		{"%v", "[REDACTED]"},
		{"%s", "[REDACTED]"},
		{"%+v", "[REDACTED]"},
		{"%#v", "core.Secret{[REDACTED]}"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := fmt.Sprintf(tt.format, secret); got != tt.want {
				t.Errorf("Sprintf(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestSecretRedactsInStructs(t *testing.T) {
	type settings struct {
		BaseURL string `json:"base_url"`
		APIKey  Secret `json:"api_key"`
	}
	s := settings{BaseURL: "https://api.dify.ai", APIKey: NewSecret(testKey)}

	for _, format := range []string{"%v", "%+v", "%#v"} {
		got := fmt.Sprintf(format, s)
		if strings.Contains(got, testKey) || !strings.Contains(got, "REDACTED") {
			t.Errorf("Sprintf(%q) = %s", format, got)
		}
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"base_url":"https://api.dify.ai","api_key":"[REDACTED]"}`; string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	text, err := NewSecret(testKey).MarshalText()
	if err != nil || string(text) != "[REDACTED]" {
		t.Errorf("MarshalText() = %q, %v", text, err)
	}
}

func TestSecretRedactsInLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("client created", slog.Any("api_key", NewSecret(testKey)))

	if strings.Contains(buf.String(), testKey) {
		t.Errorf("log output exposed the key: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"api_key":"[REDACTED]"`) {
		t.Errorf("log output = %s", buf.String())
	}
}

func TestSecretExposeAndBearer(t *testing.T) {
	secret := NewSecret(testKey)
	if secret.Expose() != testKey {
		t.Errorf("Expose() = %q", secret.Expose())
	}
	if got := secret.Bearer(); got != "Bearer "+testKey {
		t.Errorf("Bearer() = %q", got)
	}

	for _, value := range []string{"key with spaces", "key\nwith\nnewlines", `key"quoted"`, "emoji-\U0001F511"} {
		s := NewSecret(value)
		if s.Expose() != value || s.String() != "[REDACTED]" {
			t.Errorf("NewSecret(%q) did not round-trip", value)
		}
	}
}

func TestSecretIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty string", "", true},
		{"key", testKey, false},
		{"whitespace only", "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSecret(tt.value).IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}

	empty := NewSecret("")
	if empty.String() != "[REDACTED]" || empty.Expose() != "" {
		t.Error("empty secret should still redact")
	}
}
