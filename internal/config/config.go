package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GeneralConfig struct {
	Env          string `yaml:"env"`
	LogLevel     string `yaml:"log_level"`
	Port         int    `yaml:"port"`
	Version      string `yaml:"version"`
	StoreBackend string `yaml:"store_backend"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	SSLMode         string `yaml:"sslmode"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleTime int    `yaml:"conn_max_idle_time_minutes"`
	MigrationsPath  string `yaml:"migrations_path"`
}

// DSN returns the lib/pq connection string for dbname.
func (c DatabaseConfig) DSN(dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, dbname, c.SSLMode)
}

type StorageConfig struct {
	Backend         string        `yaml:"backend"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	UsePathStyle    bool          `yaml:"use_path_style"`
	PreviewURLTTL   time.Duration `yaml:"preview_url_ttl"`
	DownloadURLTTL  time.Duration `yaml:"download_url_ttl"`
}

type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	TextModel   string        `yaml:"text_model"`
	VisionModel string        `yaml:"vision_model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// UseHistory feeds the best scored past campaigns into the copy prompt.
	UseHistory  bool          `yaml:"use_history"`
}

type UploadConfig struct {
	MaxFileSize   int64 `yaml:"max_file_size"`
	MaxHeroImages int   `yaml:"max_hero_images"`
}

type SchedulerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	LockEnabled bool          `yaml:"lock_enabled"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type CorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type appConfig struct {
	GeneralConfig   GeneralConfig   `yaml:"general"`
	DatabaseConfig  DatabaseConfig  `yaml:"database"`
	StorageConfig   StorageConfig   `yaml:"storage"`
	AIConfig        AIConfig        `yaml:"ai"`
	UploadConfig    UploadConfig    `yaml:"upload"`
	SchedulerConfig SchedulerConfig `yaml:"scheduler"`
	CorsConfig      CorsConfig      `yaml:"cors"`
}

var AppConfigInstance appConfig

// LoadConfigs loads defaults, then the optional YAML file named by CONFIG_FILE,
// then .env and process environment variables, each layer overriding the previous.
func LoadConfigs() {
	AppConfigInstance = defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &AppConfigInstance); err != nil {
			log.Printf("Warning: Error loading config file %s: %v", path, err)
		}
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: Error loading .env files: %v", err)
	}

	loadGeneralConfigs()
	loadDatabaseConfigs()
	loadStorageConfigs()
	loadAIConfigs()
	loadUploadConfigs()
	loadSchedulerConfigs()
	loadCorsConfigs()
}

func defaults() appConfig {
	return appConfig{
		GeneralConfig: GeneralConfig{
			Env:          "dev",
			LogLevel:     "info",
			Port:         8080,
			Version:      "1.0.0",
			StoreBackend: "postgres",
		},
		DatabaseConfig: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			DBName:          "mailproof",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30,
			ConnMaxIdleTime: 5,
			MigrationsPath:  "migrations",
		},
		StorageConfig: StorageConfig{
			Backend:        "s3",
			Bucket:         "mailproof-assets",
			Region:         "us-east-1",
			PreviewURLTTL:  time.Hour,
			DownloadURLTTL: 24 * time.Hour,
		},
		AIConfig: AIConfig{
			TextModel:   "gpt-4o",
			VisionModel: "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   800,
			Timeout:     60 * time.Second,
			UseHistory:  true,
		},
		UploadConfig: UploadConfig{
			MaxFileSize:   5 * 1024 * 1024,
			MaxHeroImages: 3,
		},
		SchedulerConfig: SchedulerConfig{
			Enabled:  true,
			Interval: 60 * time.Second,
			LockTTL:  30 * time.Second,
		},
		CorsConfig: CorsConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

func loadFile(path string, cfg *appConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// loadGeneralConfigs loads the general configurations from the environment variables
func loadGeneralConfigs() {
	c := &AppConfigInstance.GeneralConfig
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Port = getEnvInt("PORT", c.Port)
	c.Version = getEnv("APP_VERSION", c.Version)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
}

func loadDatabaseConfigs() {
	c := &AppConfigInstance.DatabaseConfig
	c.Host = getEnv("DB_HOST", c.Host)
	c.Port = getEnvInt("DB_PORT", c.Port)
	c.User = getEnv("DB_USER", c.User)
	c.Password = getEnv("DB_PASSWORD", c.Password)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.SSLMode = getEnv("DB_SSLMODE", c.SSLMode)
	c.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifetime = getEnvInt("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)
	c.ConnMaxIdleTime = getEnvInt("DB_CONN_MAX_IDLE_TIME", c.ConnMaxIdleTime)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
}

func loadStorageConfigs() {
	c := &AppConfigInstance.StorageConfig
	c.Backend = getEnv("STORAGE_BACKEND", c.Backend)
	c.Bucket = getEnv("S3_BUCKET_NAME", c.Bucket)
	c.Region = getEnv("AWS_REGION", c.Region)
	c.Endpoint = getEnv("S3_ENDPOINT", c.Endpoint)
	c.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.AccessKeyID)
	c.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.SecretAccessKey)
	c.UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", c.UsePathStyle)
	c.PreviewURLTTL = getEnvDuration("PREVIEW_URL_TTL", c.PreviewURLTTL)
	c.DownloadURLTTL = getEnvDuration("DOWNLOAD_URL_TTL", c.DownloadURLTTL)
}

func loadAIConfigs() {
	c := &AppConfigInstance.AIConfig
	c.APIKey = getEnv("OPENAI_API_KEY", c.APIKey)
	c.BaseURL = getEnv("OPENAI_BASE_URL", c.BaseURL)
	c.TextModel = getEnv("OPENAI_TEXT_MODEL", c.TextModel)
	c.VisionModel = getEnv("OPENAI_VISION_MODEL", c.VisionModel)
	c.MaxTokens = getEnvInt("OPENAI_MAX_TOKENS", c.MaxTokens)
	c.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.Timeout)
	c.UseHistory = getEnvBool("AI_USE_HISTORY", c.UseHistory)
	if value, exists := os.LookupEnv("OPENAI_TEMPERATURE"); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			c.Temperature = f
		}
	}
}

func loadUploadConfigs() {
	c := &AppConfigInstance.UploadConfig
	c.MaxFileSize = int64(getEnvInt("MAX_FILE_SIZE", int(c.MaxFileSize)))
	c.MaxHeroImages = getEnvInt("MAX_HERO_IMAGES", c.MaxHeroImages)
}

func loadSchedulerConfigs() {
	c := &AppConfigInstance.SchedulerConfig
	c.Enabled = getEnvBool("SCHEDULER_ENABLED", c.Enabled)
	c.Interval = getEnvDuration("SCHEDULER_INTERVAL", c.Interval)
	c.LockEnabled = getEnvBool("SCHEDULER_LOCK_ENABLED", c.LockEnabled)
	c.LockTTL = getEnvDuration("SCHEDULER_LOCK_TTL", c.LockTTL)
}

func loadCorsConfigs() {
	c := &AppConfigInstance.CorsConfig
	if value, exists := os.LookupEnv("ALLOWED_ORIGINS"); exists {
		c.AllowedOrigins = splitList(value)
	}
}

// getEnv returns the environment variable value if it exists, otherwise returns the fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns the environment variable value as int if it exists, otherwise returns the fallback value
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
