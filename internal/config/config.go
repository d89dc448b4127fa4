package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DataDir      string
	PromptsDB    string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string

	InferenceTimeoutSec int
	RenderTimeoutSec    int
	HistoryWindow       int
	PromptCheckMinutes  int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		DataDir:             getEnv("DATA_DIR", "bot_data"),
		PromptsDB:           getEnv("PROMPTS_DB", "prompts.db"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		InferenceTimeoutSec: getEnvAsInt("INFERENCE_TIMEOUT_SEC", 60),
		RenderTimeoutSec:    getEnvAsInt("RENDER_TIMEOUT_SEC", 20),
		HistoryWindow:       getEnvAsInt("HISTORY_WINDOW", 5),
		PromptCheckMinutes:  getEnvAsInt("PROMPT_CHECK_MINUTES", 30),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
