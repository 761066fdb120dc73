package config

// Embedding provider names accepted by EmbeddingConfig.Provider.
const (
	ProviderONNX = "onnx"
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// DefaultRelevanceThreshold is the minimum chapter similarity for answering
// when the config does not set one. The value is tuned against the default
// embedding model; a different model may need a different cutoff.
const DefaultRelevanceThreshold = 0.45

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = "/usr/local/var/manabi/curriculum"
	}
	if cfg.Content.ChapterMapping == "" {
		cfg.Content.ChapterMapping = "chapter_mapping.json"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/manabi/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "MANABI_EMBEDDING_API_KEY"
	}
	if cfg.Retrieval.RelevanceThreshold == 0 {
		cfg.Retrieval.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = 8
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 50
	}
	if cfg.Retrieval.CacheSize == 0 {
		cfg.Retrieval.CacheSize = 16
	}
	if cfg.Answer.BaseURL == "" {
		cfg.Answer.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "MANABI_ANSWER_API_KEY"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.Temperature == 0 {
		cfg.Answer.Temperature = 0.3
	}
	if cfg.Answer.RewriteTemperature == 0 {
		cfg.Answer.RewriteTemperature = 0.1
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = 800
	}
	if cfg.History.DatabasePath == "" {
		cfg.History.DatabasePath = "/usr/local/var/manabi/data/history.db"
	}
	// Watch.Enabled and Watch.Recursive default to true when unset (nil).
}
