package config_test

import (
	"errors"
	"testing"

	"github.com/cuecardhq/cuecard/internal/config"
	"github.com/cuecardhq/cuecard/internal/suggest"
	"github.com/cuecardhq/cuecard/internal/suggest/mock"
)

func TestRegistry_CreateSuggestions(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterSuggestions("mock", func(entry config.ProviderEntry) (suggest.Source, error) {
		gotEntry = entry
		return &mock.Source{SourceName: "mock"}, nil
	})

	src, err := reg.CreateSuggestions(config.ProviderEntry{Name: "mock", Model: "test-model"})
	if err != nil {
		t.Fatalf("CreateSuggestions: %v", err)
	}
	if src.Name() != "mock" {
		t.Errorf("Name=%q, want mock", src.Name())
	}
	if gotEntry.Model != "test-model" {
		t.Errorf("factory received entry %+v, want model test-model", gotEntry)
	}
}

func TestRegistry_UnregisteredProvider(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	_, err := reg.CreateSuggestions(config.ProviderEntry{Name: "openai"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err=%v, want ErrProviderNotRegistered", err)
	}
}
