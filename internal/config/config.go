package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string
	MockAI         bool

	PexelsKey     string
	PexelsBaseURL string

	Database  string
	UploadDir string
	Port      string

	CORSOrigins []string

	GenerateAttempts int
	RetryDelay       time.Duration
	QuestionCount    int
	SessionSize      int
	PromptCharBudget int
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:   getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MockAI:           getBool("MOCK_AI", false),
		PexelsKey:        os.Getenv("PEXELS_API_KEY"),
		PexelsBaseURL:    getEnv("PEXELS_BASE_URL", "https://api.pexels.com/v1"),
		Database:         getEnv("DATABASE_PATH", "./data/lumina.db"),
		UploadDir:        getEnv("UPLOAD_DIR", "./data/uploads"),
		Port:             getEnv("PORT", "8080"),
		CORSOrigins:      getList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		GenerateAttempts: getInt("GENERATE_ATTEMPTS", 3),
		RetryDelay:       getDuration("GENERATE_RETRY_DELAY", 2*time.Second),
		QuestionCount:    getInt("QUESTION_COUNT", 10),
		SessionSize:      getInt("SESSION_SIZE", 10),
		PromptCharBudget: getInt("PROMPT_CHAR_BUDGET", 12000),
	}

	// Without a key there is nothing to call; fall back to the canned questions.
	if cfg.OpenAIKey == "" {
		cfg.MockAI = true
	}

	return cfg
}

// EnsureDirs creates the upload and database directories.
func (c Config) EnsureDirs() {
	if err := os.MkdirAll(c.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", c.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", c.Database, err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
