package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Presence     PresenceConfig     `mapstructure:"presence"`
	Notification NotificationConfig `mapstructure:"notification"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
	MachineID int64  `mapstructure:"machine_id"` // snowflake机器ID
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Network string `mapstructure:"network"`
	Addr    string `mapstructure:"addr"`
	Timeout string `mapstructure:"timeout"`
	// AllowOrigins CORS允许的来源，为空时不启用CORS
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	DSN    string `mapstructure:"dsn"`
	DBName string `mapstructure:"db_name"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka配置，Brokers为空时不启用
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	GroupID       string   `mapstructure:"group_id"`
	EventTopic    string   `mapstructure:"event_topic"`    // 关系领域事件
	ScheduleTopic string   `mapstructure:"schedule_topic"` // 外部日程事件
}

// Enabled 是否配置了Kafka
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// PresenceConfig 在线状态与推送配置
type PresenceConfig struct {
	Backplane    bool   `mapstructure:"backplane"` // 是否通过Redis在多实例间转发
	Channel      string `mapstructure:"channel"`
	SendBuffer   int    `mapstructure:"send_buffer"`   // 每个连接的发送缓冲
	PingInterval string `mapstructure:"ping_interval"` // WebSocket心跳间隔
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Store         string `mapstructure:"store"`          // postgres | mongo
	DefaultFilter string `mapstructure:"default_filter"` // read | all
	PageSize      int    `mapstructure:"page_size"`
	MaxPageSize   int    `mapstructure:"max_page_size"`
}

// TelemetryConfig 链路追踪配置
type TelemetryConfig struct {
	Debug        bool    `mapstructure:"debug"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

// envBindings 配置键与环境变量的对应关系
var envBindings = map[string]string{
	"app.version":                 "APP_VERSION",
	"app.log_level":               "LOG_LEVEL",
	"app.jwt_secret":              "JWT_SECRET",
	"app.machine_id":              "MACHINE_ID",
	"server.http.addr":            "HTTP_ADDR",
	"server.http.timeout":         "HTTP_TIMEOUT",
	"server.http.allow_origins":   "CORS_ALLOW_ORIGINS",
	"database.mongodb.uri":        "MONGODB_URI",
	"database.mongodb.db_name":    "MONGODB_DB",
	"database.postgresql.dsn":     "POSTGRESQL_DSN",
	"database.postgresql.db_name": "POSTGRESQL_DB",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"kafka.brokers":               "KAFKA_BROKERS",
	"kafka.group_id":              "KAFKA_GROUP_ID",
	"kafka.event_topic":           "KAFKA_EVENT_TOPIC",
	"kafka.schedule_topic":        "KAFKA_SCHEDULE_TOPIC",
	"presence.backplane":          "PRESENCE_BACKPLANE",
	"presence.channel":            "PRESENCE_CHANNEL",
	"presence.send_buffer":        "PRESENCE_SEND_BUFFER",
	"presence.ping_interval":      "PRESENCE_PING_INTERVAL",
	"notification.store":          "NOTIFICATION_STORE",
	"notification.default_filter": "NOTIFICATION_DEFAULT_FILTER",
	"notification.page_size":      "NOTIFICATION_PAGE_SIZE",
	"notification.max_page_size":  "NOTIFICATION_MAX_PAGE_SIZE",
	"telemetry.debug":             "OTEL_DEBUG",
	"telemetry.sample_rate":       "OTEL_SAMPLE_RATE",
	"telemetry.otlp_endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// LoadConfig 加载配置：默认值 < 配置文件(CONFIG_FILE) < 环境变量
func LoadConfig(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v, serviceName)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	// HTTP_PORT 兼容旧的端口变量
	if err := v.BindEnv("server.http.port", "HTTP_PORT"); err != nil {
		return nil, fmt.Errorf("bind env HTTP_PORT: %w", err)
	}

	if err := v.BindEnv("config_file", "CONFIG_FILE"); err != nil {
		return nil, fmt.Errorf("bind env CONFIG_FILE: %w", err)
	}
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.App.Name = serviceName

	if _, explicit := os.LookupEnv("HTTP_ADDR"); !explicit {
		if port := v.GetString("server.http.port"); port != "" {
			cfg.Server.HTTP.Addr = ":" + port
		}
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Server.HTTP.AllowOrigins = splitList(cfg.Server.HTTP.AllowOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.jwt_secret", "focusandinsist")
	v.SetDefault("app.machine_id", 1)

	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":21006")
	v.SetDefault("server.http.timeout", "30s")
	v.SetDefault("server.http.allow_origins", []string{})

	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.db_name", serviceName+"DB")
	v.SetDefault("database.postgresql.dsn", "host=localhost user=postgres password=postgres dbname="+serviceName+"DB port=5432 sslmode=disable TimeZone=UTC")
	v.SetDefault("database.postgresql.db_name", serviceName+"DB")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", serviceName+"-group")
	v.SetDefault("kafka.event_topic", "social-events")
	v.SetDefault("kafka.schedule_topic", "schedule-events")

	v.SetDefault("presence.backplane", false)
	v.SetDefault("presence.channel", "presence:deliver")
	v.SetDefault("presence.send_buffer", 64)
	v.SetDefault("presence.ping_interval", "30s")

	v.SetDefault("notification.store", "postgres")
	v.SetDefault("notification.default_filter", "read")
	v.SetDefault("notification.page_size", 20)
	v.SetDefault("notification.max_page_size", 100)

	v.SetDefault("telemetry.debug", false)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Notification.Store {
	case "postgres", "mongo":
	default:
		return fmt.Errorf("unsupported notification store %q", c.Notification.Store)
	}
	switch c.Notification.DefaultFilter {
	case "read", "all":
	default:
		return fmt.Errorf("unsupported notification default filter %q", c.Notification.DefaultFilter)
	}
	if c.Notification.PageSize <= 0 || c.Notification.MaxPageSize < c.Notification.PageSize {
		return fmt.Errorf("invalid notification page sizes: %d/%d", c.Notification.PageSize, c.Notification.MaxPageSize)
	}
	if c.Presence.SendBuffer <= 0 {
		return fmt.Errorf("presence send buffer must be positive")
	}
	return nil
}

// splitList 环境变量中的逗号分隔列表
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
