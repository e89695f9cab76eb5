package config

import (
	"errors"
	"testing"

	"github.com/MrWong99/intervox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/intervox/pkg/provider/tts/mock"
)

func TestRegistryCreateTTS(t *testing.T) {
	reg := NewRegistry()

	var gotEntry ProviderEntry
	reg.RegisterTTS("elevenlabs", func(entry ProviderEntry) (tts.Provider, error) {
		gotEntry = entry
		return &ttsmock.Provider{ProviderName: "elevenlabs"}, nil
	})

	entry := ProviderEntry{Name: "elevenlabs", APIKey: "key", Model: "eleven_multilingual_v2"}
	p, err := reg.CreateTTS(entry)
	if err != nil {
		t.Fatalf("CreateTTS() error = %v", err)
	}
	if p.Name() != "elevenlabs" {
		t.Errorf("provider name = %q", p.Name())
	}
	if gotEntry.APIKey != "key" || gotEntry.Model != "eleven_multilingual_v2" {
		t.Errorf("factory received %+v", gotEntry)
	}
}

func TestRegistryUnregisteredName(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.CreateTTS(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS() = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateASR(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateASR() = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLLM(ProviderEntry{Name: "nope"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM() = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTTS("x", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{ProviderName: "old"}, nil
	})
	reg.RegisterTTS("x", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{ProviderName: "new"}, nil
	})

	p, err := reg.CreateTTS(ProviderEntry{Name: "x"})
	if err != nil {
		t.Fatalf("CreateTTS() error = %v", err)
	}
	if p.Name() != "new" {
		t.Errorf("provider name = %q, want the later registration", p.Name())
	}
}
