package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Model       string  `yaml:"model"`
		LiteModel   string  `yaml:"lite_model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
		APIKey      string  `yaml:"-"`
	} `yaml:"llm"`

	Embedding struct {
		Provider  string `yaml:"provider"` // "cohere" or "ollama"
		Model     string `yaml:"model"`
		BaseURL   string `yaml:"base_url"` // Ollama server URL
		VectorDim int    `yaml:"vector_dim"`
		APIKey    string `yaml:"-"`
	} `yaml:"embedding"`

	Database struct {
		URL           string `yaml:"url"`
		CorpusTable   string `yaml:"corpus_table"`
		ProductsTable string `yaml:"products_table"`
	} `yaml:"database"`

	Retrieval struct {
		Threshold float64 `yaml:"threshold"`
		TopK      int     `yaml:"top_k"`
	} `yaml:"retrieval"`

	Backfill struct {
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"` // embedding calls per second
	} `yaml:"backfill"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pricelens/config.yaml"),
			"/etc/pricelens/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gemini-2.5-flash"
	}
	if config.LLM.LiteModel == "" {
		config.LLM.LiteModel = "gemini-2.5-flash-lite"
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.4
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "cohere"
	}
	if config.Embedding.Model == "" {
		switch config.Embedding.Provider {
		case "ollama":
			config.Embedding.Model = "nomic-embed-text:latest"
		default:
			config.Embedding.Model = "embed-english-v3.0"
		}
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.VectorDim == 0 {
		switch config.Embedding.Provider {
		case "ollama":
			config.Embedding.VectorDim = 768
		default:
			config.Embedding.VectorDim = 1024
		}
	}

	if config.Database.CorpusTable == "" {
		config.Database.CorpusTable = "product_embeddings"
	}
	if config.Database.ProductsTable == "" {
		config.Database.ProductsTable = "products"
	}

	if config.Retrieval.Threshold == 0 {
		config.Retrieval.Threshold = 0.75
	}
	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}

	if config.Backfill.BatchSize == 0 {
		config.Backfill.BatchSize = 20
	}
	if config.Backfill.RateLimit == 0 {
		config.Backfill.RateLimit = 2.0
	}

	if config.History.Path == "" {
		config.History.Path = "history.db"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("CO_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if path := os.Getenv("HISTORY_DB_PATH"); path != "" {
		config.History.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
