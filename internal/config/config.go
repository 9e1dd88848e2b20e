package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Extract     ExtractConfig     `yaml:"extract"`
	DocParse    DocParseConfig    `yaml:"docparse"`
	VisionLLM   LLMConfig         `yaml:"vision_llm"`
	AnswerLLM   LLMConfig         `yaml:"answer_llm"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
}

type ServerConfig struct {
	Address       string `yaml:"address"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	UploadDir     string `yaml:"upload_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type ExtractConfig struct {
	PageOffset int `yaml:"page_offset"`
}

type DocParseConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Key        string        `yaml:"key"`
	Model      string        `yaml:"model"`
	OCR        string        `yaml:"ocr"`
	Categories []string      `yaml:"categories"`
	PageOffset int           `yaml:"page_offset"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig describes one model endpoint. Provider is one of googleai,
// openai, ollama, and for the vision model also gemini.
type LLMConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	ChunkSize            int    `yaml:"chunk_size"`
	ChunkOverlap         int    `yaml:"chunk_overlap"`
	Splitter             string `yaml:"splitter"` // recursive or window
	TopK                 int    `yaml:"top_k"`
	EmbedBatchSize       int    `yaml:"embed_batch_size"`
	DescribeConcurrency  int    `yaml:"describe_concurrency"`
	IsolateImageFailures *bool  `yaml:"isolate_image_failures"`
	UnknownPages         string `yaml:"unknown_pages"` // keep, drop or error
	EncryptionKey        string `yaml:"encryption_key"`
}

// IsolateFailures reports whether one failed image description should be
// skipped rather than abort the whole describe stage.
func (c RAGConfig) IsolateFailures() bool {
	return c.IsolateImageFailures == nil || *c.IsolateImageFailures
}

type VectorStoreConfig struct {
	Backend    string `yaml:"backend"` // chromem or pgvector
	Dimensions int    `yaml:"dimensions"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"` // pgdriver or pq
	Debug    bool   `yaml:"debug"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

const (
	defaultAddress       = ":8080"
	defaultMaxUpload     = 50 << 20
	defaultDocParseURL   = "https://api.upstage.ai/v1"
	defaultDocParseModel = "document-parse"
	defaultOCR           = "auto"
	defaultChunkSize     = 1000
	defaultChunkOverlap  = 200
	defaultTopK          = 4
	defaultBatchSize     = 32
	defaultConcurrency   = 4
	defaultDimensions    = 768
	defaultCallTimeout   = 60 * time.Second
	defaultParseTimeout  = 5 * time.Minute
	defaultSessionTTL    = 2 * time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// LoadConfig reads the YAML file at path, loads a .env file if one exists,
// applies environment overrides and fills defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration built only from defaults and environment.
func Default() *Config {
	_ = godotenv.Load()
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("UPSTAGE_API_KEY"); v != "" && c.DocParse.Key == "" {
		c.DocParse.Key = v
	}
	for _, llm := range []*LLMConfig{&c.VisionLLM, &c.AnswerLLM, &c.EmbedLLM} {
		if llm.Key != "" {
			continue
		}
		switch llm.Provider {
		case "", "googleai", "gemini":
			llm.Key = os.Getenv("GOOGLE_API_KEY")
		case "openai":
			llm.Key = os.Getenv("OPENAI_API_KEY")
		}
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" && c.Database.Password == "" {
		c.Database.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.MaxUploadSize <= 0 {
		c.Server.MaxUploadSize = defaultMaxUpload
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	if c.DocParse.BaseURL == "" {
		c.DocParse.BaseURL = defaultDocParseURL
	}
	if c.DocParse.Model == "" {
		c.DocParse.Model = defaultDocParseModel
	}
	if c.DocParse.OCR == "" {
		c.DocParse.OCR = defaultOCR
	}
	if len(c.DocParse.Categories) == 0 {
		c.DocParse.Categories = []string{"figure", "chart", "table"}
	}
	if c.DocParse.Timeout <= 0 {
		c.DocParse.Timeout = defaultParseTimeout
	}

	llmDefaults(&c.VisionLLM, "googleai", "gemini-2.0-flash")
	llmDefaults(&c.AnswerLLM, "googleai", "gemini-2.0-flash")
	llmDefaults(&c.EmbedLLM, "googleai", "text-embedding-004")

	// if chunk settings are missing, use default values
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap <= 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = min(defaultChunkOverlap, c.RAG.ChunkSize/2)
	}
	if c.RAG.Splitter == "" {
		c.RAG.Splitter = "recursive"
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.EmbedBatchSize <= 0 {
		c.RAG.EmbedBatchSize = defaultBatchSize
	}
	if c.RAG.DescribeConcurrency <= 0 {
		c.RAG.DescribeConcurrency = defaultConcurrency
	}
	if c.RAG.UnknownPages == "" {
		c.RAG.UnknownPages = "keep"
	}

	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "chromem"
	}
	if c.VectorStore.Dimensions <= 0 {
		c.VectorStore.Dimensions = defaultDimensions
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}

	if c.Session.TTL <= 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = defaultSweepInterval
	}
}

func llmDefaults(c *LLMConfig, provider, model string) {
	if c.Provider == "" {
		c.Provider = provider
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultCallTimeout
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.RAG.Splitter {
	case "recursive", "window":
	default:
		return fmt.Errorf("unsupported splitter: %s", c.RAG.Splitter)
	}
	switch c.RAG.UnknownPages {
	case "keep", "drop", "error":
	default:
		return fmt.Errorf("unsupported unknown_pages policy: %s", c.RAG.UnknownPages)
	}
	switch c.VectorStore.Backend {
	case "chromem":
	case "pgvector":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unsupported vector store backend: %s", c.VectorStore.Backend)
	}
	switch c.Database.Driver {
	case "pgdriver", "pq":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if key := c.RAG.EncryptionKey; key != "" && len(key) != 32 {
		return fmt.Errorf("rag.encryption_key must be 32 bytes, got %d", len(key))
	}
	return nil
}
