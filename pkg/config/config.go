package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Bot      BotConfig      `mapstructure:"bot"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type BotConfig struct {
	AppID           string   `mapstructure:"app_id"`
	AppPassword     string   `mapstructure:"app_password"`
	TenantAllowList []string `mapstructure:"tenant_allow_list"`
}

type OpenAIConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	AssistantID  string        `mapstructure:"assistant_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 3978)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("openai.poll_interval", "500ms")
	v.SetDefault("openai.max_wait", "2m")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file; a missing file is fine, environment
	// variables and defaults carry the rest.
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		dbConfig.UseInMemory = false
		config.Database = dbConfig
	}

	// Get other environment variables
	if appID := v.GetString("APP_ID"); appID != "" {
		config.Bot.AppID = appID
	}
	if appPassword := v.GetString("APP_PASSWORD"); appPassword != "" {
		config.Bot.AppPassword = appPassword
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if assistantID := v.GetString("ASSISTANT_ID"); assistantID != "" {
		config.OpenAI.AssistantID = assistantID
	}
	if port := v.GetInt("PORT"); port != 0 {
		config.Server.Port = port
	}
	if logLevel := v.GetString("LOG_LEVEL"); logLevel != "" {
		config.Server.LogLevel = logLevel
	}
	if allowList := v.GetString("TENANT_ALLOW_LIST"); allowList != "" {
		config.Bot.TenantAllowList = splitAllowList(allowList)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("openai api key is required")
	}
	if c.OpenAI.AssistantID == "" {
		return errors.New("openai assistant id is required")
	}
	return nil
}

func splitAllowList(raw string) []string {
	parts := strings.Split(raw, ",")
	tenants := make([]string, 0, len(parts))
	for _, part := range parts {
		if tenant := strings.TrimSpace(part); tenant != "" {
			tenants = append(tenants, tenant)
		}
	}
	return tenants
}
