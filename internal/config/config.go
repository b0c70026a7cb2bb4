// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JobStore      JobStoreConfig      `mapstructure:"job_store"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	VectorStore   VectorStoreConfig   `mapstructure:"vector_store"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Google        GoogleConfig        `mapstructure:"google"`
	Connections   []ConnectionConfig  `mapstructure:"connections"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	Version string `mapstructure:"version"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AuthConfig 存储租户 API token 的签名配置。
type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JobStoreConfig 选择任务状态的存储后端: memory | redis | mysql。
type JobStoreConfig struct {
	Driver   string `mapstructure:"driver"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// KafkaConfig 存储 Kafka 相关的配置。启用后导入任务通过 Kafka 分发。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// OCRConfig 存储 OCR 回退链的配置。
type OCRConfig struct {
	Engines        []string      `mapstructure:"engines"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	Language       string        `mapstructure:"language"`
	TesseractPath  string        `mapstructure:"tesseract_path"`
	PdftoppmPath   string        `mapstructure:"pdftoppm_path"`
	DPI            int           `mapstructure:"dpi"`
	TikaConfidence float64       `mapstructure:"tika_confidence"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses        string `mapstructure:"addresses"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	InsecureSkipTLS  bool   `mapstructure:"insecure_skip_tls"`
	CollectionPrefix string `mapstructure:"collection_prefix"`
}

// VectorStoreConfig 选择向量存储实现: elasticsearch | memory。
type VectorStoreConfig struct {
	Provider string `mapstructure:"provider"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// GoogleConfig 存储 Google Drive OAuth 客户端配置。
type GoogleConfig struct {
	ClientID          string  `mapstructure:"client_id"`
	ClientSecret      string  `mapstructure:"client_secret"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ConnectionConfig 描述一个已授权的外部文件源连接。
type ConnectionConfig struct {
	ID           string `mapstructure:"id"`
	Tenant       string `mapstructure:"tenant"`
	Provider     string `mapstructure:"provider"`
	RefreshToken string `mapstructure:"refresh_token"`
	Bucket       string `mapstructure:"bucket"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IngestConfig 存储导入流水线的批次、分块和超时配置。
type IngestConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	ChunkOverlap    int           `mapstructure:"chunk_overlap"`
	MaxFileSizeMB   int           `mapstructure:"max_file_size_mb"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	ExtractTimeout  time.Duration `mapstructure:"extract_timeout"`
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	DiscoverTimeout time.Duration `mapstructure:"discover_timeout"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Load 读取 .env、YAML 配置文件和 DOCINGEST_ 前缀的环境变量。
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 文件失败: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DOCINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults 为未设置的字段填充默认值。
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8081"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.Version == "" {
		c.Server.Version = "1.0.0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Auth.TokenExpireHours <= 0 {
		c.Auth.TokenExpireHours = 24 * 30
	}
	if c.JobStore.Driver == "" {
		c.JobStore.Driver = "memory"
	}
	if c.JobStore.TTLHours <= 0 {
		c.JobStore.TTLHours = 24
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "docingest-consumer"
	}
	if c.Tika.Timeout <= 0 {
		c.Tika.Timeout = 2 * time.Minute
	}
	if len(c.OCR.Engines) == 0 {
		c.OCR.Engines = []string{"tesseract", "tika"}
	}
	if c.OCR.MinConfidence <= 0 {
		c.OCR.MinConfidence = 0.6
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.OCR.TesseractPath == "" {
		c.OCR.TesseractPath = "tesseract"
	}
	if c.OCR.PdftoppmPath == "" {
		c.OCR.PdftoppmPath = "pdftoppm"
	}
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = 200
	}
	if c.OCR.TikaConfidence <= 0 {
		c.OCR.TikaConfidence = 0.8
	}
	if c.OCR.Timeout <= 0 {
		c.OCR.Timeout = time.Minute
	}
	if c.Elasticsearch.CollectionPrefix == "" {
		c.Elasticsearch.CollectionPrefix = "sp_"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "elasticsearch"
	}
	if c.Google.RequestsPerSecond <= 0 {
		c.Google.RequestsPerSecond = 8
	}
	if c.Google.Burst <= 0 {
		c.Google.Burst = 10
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = time.Minute
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 5
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1000
	}
	if c.Ingest.ChunkOverlap < 0 {
		c.Ingest.ChunkOverlap = 0
	}
	if c.Ingest.ChunkOverlap == 0 {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		c.Ingest.MaxFileSizeMB = 50
	}
	if c.Ingest.DownloadTimeout <= 0 {
		c.Ingest.DownloadTimeout = 2 * time.Minute
	}
	if c.Ingest.ExtractTimeout <= 0 {
		c.Ingest.ExtractTimeout = 5 * time.Minute
	}
	if c.Ingest.EmbedTimeout <= 0 {
		c.Ingest.EmbedTimeout = 2 * time.Minute
	}
	if c.Ingest.StoreTimeout <= 0 {
		c.Ingest.StoreTimeout = 30 * time.Second
	}
	if c.Ingest.DiscoverTimeout <= 0 {
		c.Ingest.DiscoverTimeout = time.Minute
	}
}

// MaxFileSize 返回单个文件允许的最大字节数。
func (c IngestConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}
