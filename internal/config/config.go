package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
	// MaxUploadMB caps the size of an uploaded archive.
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// PathsConfig locates the shared on-disk state. Empty subdirectories are
// derived from DataDir.
type PathsConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	Uploads    string `mapstructure:"uploads"`
	Queue      string `mapstructure:"queue"`
	Events     string `mapstructure:"events"`
	Workspaces string `mapstructure:"workspaces"`
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	IdleBackoff  time.Duration `mapstructure:"idle_backoff"`
	Watch        bool          `mapstructure:"watch"`
}

type StreamConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ExtractConfig struct {
	MaxEntries    int   `mapstructure:"max_entries"`
	MaxTotalBytes int64 `mapstructure:"max_total_bytes"`
}

type OCRConfig struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Languages []string      `mapstructure:"languages"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"` // sqlite or postgres
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("paths.data_dir", "ZIP2TEXT_DATA_DIR")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("ocr.provider", "OCR_PROVIDER")
	v.BindEnv("ocr.api_key", "OCR_API_KEY", "GOOGLE_VISION_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("ocr.base_url", "OCR_BASE_URL", "OPENAI_BASE_URL")
	v.BindEnv("ocr.model", "OCR_MODEL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Paths.resolve()
	if cfg.Database.Driver == "postgres" && cfg.Database.URL == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.driver is postgres but neither database.url nor database.host is set")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.max_upload_mb", 100)

	v.SetDefault("paths.data_dir", "./data")

	v.SetDefault("worker.poll_interval", time.Second)
	v.SetDefault("worker.idle_backoff", 5*time.Second)
	v.SetDefault("worker.watch", true)

	v.SetDefault("stream.poll_interval", 500*time.Millisecond)
	v.SetDefault("stream.timeout", 10*time.Minute)

	v.SetDefault("extract.max_entries", 10000)
	v.SetDefault("extract.max_total_bytes", int64(2)<<30)

	v.SetDefault("ocr.provider", "google-vision")
	v.SetDefault("ocr.base_url", "")
	v.SetDefault("ocr.model", "gpt-4o-mini")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.timeout", 60*time.Second)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "zip2text-results")
	v.SetDefault("storage.prefix", "results")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/zip2text.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
}

func (p *PathsConfig) resolve() {
	if p.Uploads == "" {
		p.Uploads = filepath.Join(p.DataDir, "uploads")
	}
	if p.Queue == "" {
		p.Queue = filepath.Join(p.DataDir, "queue")
	}
	if p.Events == "" {
		p.Events = filepath.Join(p.DataDir, "events")
	}
	if p.Workspaces == "" {
		p.Workspaces = filepath.Join(p.DataDir, "workspaces")
	}
}
