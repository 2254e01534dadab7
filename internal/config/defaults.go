package config

// DefaultFallbackResponse is the conservative decision used when the model is unreachable.
const DefaultFallbackResponse = "caretaker"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7860
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/triage/data/db/triage.db"
	}
	if cfg.Storage.PersonalIndexDir == "" {
		cfg.Storage.PersonalIndexDir = "/usr/local/var/triage/data/indices/personal"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "whisper-1"
	}
	if cfg.Transcription.APIKeyEnv == "" {
		cfg.Transcription.APIKeyEnv = "TRANSCRIPTION_API_KEY"
	}
	if cfg.Transcription.TimeoutSecs == 0 {
		cfg.Transcription.TimeoutSecs = 60
	}
	if cfg.Retrieval.IndexName == "" {
		cfg.Retrieval.IndexName = "pubmed_index"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	// An explicit empty string disables the fallback; only an absent key gets the default.
	if cfg.Decision.FallbackResponse == nil {
		fallback := DefaultFallbackResponse
		cfg.Decision.FallbackResponse = &fallback
	}
	if cfg.Dispatch.TimeoutSecs == 0 {
		cfg.Dispatch.TimeoutSecs = 10
	}
}
