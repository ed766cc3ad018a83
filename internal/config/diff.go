package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProvidersChanged is true if any provider entry changed. Provider
	// swaps take effect for the next request; in-flight work keeps the
	// provider it started with.
	ProvidersChanged     bool
	STTChanged           bool
	AnalysisChanged      bool
	EmbeddingsChanged    bool
	TranscriptionChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.STTChanged = !providerEntryEqual(old.Providers.STT, new.Providers.STT)
	d.AnalysisChanged = !providerEntryEqual(old.Providers.Analysis, new.Providers.Analysis)
	d.EmbeddingsChanged = !providerEntryEqual(old.Providers.Embeddings, new.Providers.Embeddings)
	d.ProvidersChanged = d.STTChanged || d.AnalysisChanged || d.EmbeddingsChanged

	d.TranscriptionChanged = old.Transcription != new.Transcription

	return d
}

// providerEntryEqual compares entries. Options values can be nested
// maps, so they are compared structurally.
func providerEntryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return reflect.DeepEqual(a.Options, b.Options)
}
