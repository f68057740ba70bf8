package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contains application configuration parameters
type Config struct {
	// Server configuration
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// Telegram Bot configuration
	Token       string `json:"token"`
	BotUsername string `json:"bot_username"`
	ChannelID   int64  `json:"channel_id"`

	// OwnerTelegramID receives startup notifications and unlocks the admin panel
	OwnerTelegramID int64 `json:"owner_telegram_id"`

	// Database configuration
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Redis (conversation session storage)
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	SessionTTL    time.Duration `json:"session_ttl"`

	// Order lifecycle timers
	ProcessingTimeout time.Duration `json:"processing_timeout"` // claim -> revert window
	ReminderTime      time.Duration `json:"order_reminder_time"`
	ExpiryTime        time.Duration `json:"order_expiry_time"` // total age until auto-cancel

	// Directory fallback seed
	RegionsFallbackFile string `json:"regions_fallback_file"`

	// App configuration
	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		// Server defaults
		Port:         ":8082",
		Host:         "0.0.0.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Telegram defaults
		BotUsername: "@yolda_taxi_bot",

		// Database defaults
		DBName:          "yolda.db",
		DBPath:          "./data/",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,

		// Redis defaults
		RedisAddr:  "localhost:6379",
		SessionTTL: 24 * time.Hour,

		// Lifecycle defaults
		ProcessingTimeout: 300 * time.Second,
		ReminderTime:      900 * time.Second,
		ExpiryTime:        1200 * time.Second,

		RegionsFallbackFile: "./regions.json",

		// App defaults
		Environment: "development",
		LogLevel:    "info",
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if port[0] != ':' {
			cfg.Port = ":" + port
		} else {
			cfg.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}

	if username := os.Getenv("BOT_USERNAME"); username != "" {
		cfg.BotUsername = username
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if fallback := os.Getenv("REGIONS_FALLBACK_FILE"); fallback != "" {
		cfg.RegionsFallbackFile = fallback
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Parse numeric environment variables
	if channelID := os.Getenv("CHANNEL_ID"); channelID != "" {
		if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
			cfg.ChannelID = id
		}
	}

	if ownerID := os.Getenv("OWNER_ID"); ownerID != "" {
		if id, err := strconv.ParseInt(ownerID, 10, 64); err == nil {
			cfg.OwnerTelegramID = id
		}
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.RedisDB = db
		}
	}

	if maxOpenConns := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenConns != "" {
		if conns, err := strconv.Atoi(maxOpenConns); err == nil {
			cfg.MaxOpenConns = conns
		}
	}

	if maxIdleConns := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleConns != "" {
		if conns, err := strconv.Atoi(maxIdleConns); err == nil {
			cfg.MaxIdleConns = conns
		}
	}

	// Timer env vars accept plain seconds (the original deployment convention)
	// or Go duration strings.
	if v := os.Getenv("PROCESSING_TIMEOUT"); v != "" {
		if d, ok := parseSecondsOrDuration(v); ok {
			cfg.ProcessingTimeout = d
		}
	}

	if v := os.Getenv("ORDER_REMINDER_TIME"); v != "" {
		if d, ok := parseSecondsOrDuration(v); ok {
			cfg.ReminderTime = d
		}
	}

	if v := os.Getenv("ORDER_EXPIRY_TIME"); v != "" {
		if d, ok := parseSecondsOrDuration(v); ok {
			cfg.ExpiryTime = d
		}
	}

	// Parse duration environment variables
	if readTimeout := os.Getenv("READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if idleTimeout := os.Getenv("IDLE_TIMEOUT"); idleTimeout != "" {
		if timeout, err := time.ParseDuration(idleTimeout); err == nil {
			cfg.IdleTimeout = timeout
		}
	}

	if connMaxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); connMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(connMaxLifetime); err == nil {
			cfg.ConnMaxLifetime = lifetime
		}
	}

	if sessionTTL := os.Getenv("SESSION_TTL"); sessionTTL != "" {
		if ttl, err := time.ParseDuration(sessionTTL); err == nil {
			cfg.SessionTTL = ttl
		}
	}

	return cfg, nil
}

func parseSecondsOrDuration(v string) (time.Duration, bool) {
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return c.DBPath + c.DBName
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return c.Host + c.Port
}

// ValidateConfig validates the configuration
func (c *Config) ValidateConfig() error {
	if c.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.ChannelID == 0 {
		return fmt.Errorf("channel id is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing timeout must be positive")
	}

	if c.ReminderTime <= 0 || c.ExpiryTime <= 0 {
		return fmt.Errorf("reminder and expiry times must be positive")
	}

	if c.ExpiryTime <= c.ReminderTime {
		return fmt.Errorf("expiry time must be greater than reminder time")
	}

	return nil
}
