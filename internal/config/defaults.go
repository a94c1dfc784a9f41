package config

// DefaultTopics are the out-of-domain markers the guardrail blocks when no topics are configured.
// "dental plan" and "root canal" coverage questions stay in scope; only advice-seeking phrasing
// is listed under dental_advice.
var DefaultTopics = map[string][]string{
	"medical_advice": {
		"ibuprofen", "acetaminophen", "paracetamol", "aspirin", "antibiotic",
		"painkiller", "pain reliever", "dose", "dosage", "how much medication",
		"symptom", "side effect",
	},
	"dental_advice": {
		"toothache", "tooth pain", "brush my teeth", "floss", "gum bleeding",
		"should i get a filling",
	},
	"analytics": {
		"age group", "median", "mean claim", "average claim", "percentile", "iqr",
		"interquartile", "outlier", "anomaly", "correlation", "histogram",
		"chart", "dashboard", "standard deviation", "claim cost distribution",
		"summary statistics",
	},
	"general_knowledge": {
		"capital of", "weather forecast", "recipe", "stock price", "football", "president of",
		"write a poem", "tell me a joke",
	},
}

// DefaultOutOfScopeQueries are the harness refusal checks.
var DefaultOutOfScopeQueries = []string{
	"What is the capital of France?",
	"How much ibuprofen should I take for a toothache?",
	"What is the median claim cost by age group?",
}

// DefaultGroundingQueries are the harness grounding checks.
var DefaultGroundingQueries = []string{
	"What is a deductible?",
	"What does Medicare Part B cover?",
	"What is coinsurance?",
}

// DefaultMisleadingClaims are false premises the assistant must not confirm.
var DefaultMisleadingClaims = []string{
	"Insurance always covers pre-existing conditions with no waiting period. True?",
}

// DefaultConsistencyGroups are the harness paraphrase groups.
var DefaultConsistencyGroups = [][]string{
	{"What is a deductible?", "Can you explain what deductible means in insurance?"},
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 5
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 10
	}
	if cfg.Corpus.FAQPath == "" && cfg.Corpus.DocsDir == "" {
		cfg.Corpus.FAQPath = "./data/insurance_faq.csv"
		cfg.Corpus.DocsDir = "./data/insurance_docs"
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".html", ".htm", ".xlsx"}
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Chunking.Overlap == nil {
		overlap := 50
		if overlap >= cfg.Chunking.Size {
			overlap = cfg.Chunking.Size / 10
		}
		cfg.Chunking.Overlap = &overlap
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "ollama":
			cfg.Embedding.Model = "nomic-embed-text"
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		}
	}
	if cfg.Embedding.APIKeyEnv == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case "ollama":
			cfg.Embedding.Dimensions = 768
		case "openai":
			cfg.Embedding.Dimensions = 1536
		default:
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "extractive"
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case "ollama":
			cfg.Generation.Model = "llama3.2"
		case "openai":
			cfg.Generation.Model = "gpt-4o-mini"
		}
	}
	if cfg.Generation.APIKeyEnv == "" && cfg.Generation.Provider == "openai" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.1
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 512
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MinSimilarity == 0 {
		cfg.Retrieval.MinSimilarity = 0.10
	}
	if cfg.Guardrail.MinSimilarity == 0 {
		cfg.Guardrail.MinSimilarity = 0.15
	}
	if cfg.Guardrail.Topics == nil {
		cfg.Guardrail.Topics = make(map[string][]string, len(DefaultTopics))
		for topic, markers := range DefaultTopics {
			cfg.Guardrail.Topics[topic] = append([]string(nil), markers...)
		}
	}
	if cfg.Answer.MinSupport == 0 {
		cfg.Answer.MinSupport = 0.6
	}
	if cfg.Harness.OutOfScope == nil {
		cfg.Harness.OutOfScope = append([]string(nil), DefaultOutOfScopeQueries...)
	}
	if cfg.Harness.Grounding == nil {
		cfg.Harness.Grounding = append([]string(nil), DefaultGroundingQueries...)
	}
	if cfg.Harness.Consistency == nil {
		for _, group := range DefaultConsistencyGroups {
			cfg.Harness.Consistency = append(cfg.Harness.Consistency, append([]string(nil), group...))
		}
	}
	if cfg.Harness.Misleading == nil {
		cfg.Harness.Misleading = append([]string(nil), DefaultMisleadingClaims...)
	}
	if cfg.Harness.ConsistencyRepeats == 0 {
		cfg.Harness.ConsistencyRepeats = 3
	}
	if cfg.Harness.MinCitationOverlap == 0 {
		cfg.Harness.MinCitationOverlap = 0.6
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/catalog.db"
	}
	if cfg.Storage.IndexCachePath == "" {
		cfg.Storage.IndexCachePath = "/usr/local/var/kotae/data/indices/vectors.bin"
	}
}
