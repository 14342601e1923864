package main

import (
	"testing"

	"github.com/acuvox/acuvox/internal/config"
)

func TestResolveLanguage(t *testing.T) {
	t.Parallel()

	withOption := config.ProviderEntry{Options: map[string]any{"language": "de"}}
	if got := resolveLanguage(withOption, "fr"); got != "de" {
		t.Errorf("entry option ignored: got %q, want %q", got, "de")
	}

	// The session language fills in when the entry has no option of its own.
	if got := resolveLanguage(config.ProviderEntry{}, "fr"); got != "fr" {
		t.Errorf("fallback = %q, want %q", got, "fr")
	}
	if got := resolveLanguage(config.ProviderEntry{Options: map[string]any{"language": ""}}, "it"); got != "it" {
		t.Errorf("empty option = %q, want fallback %q", got, "it")
	}
}
