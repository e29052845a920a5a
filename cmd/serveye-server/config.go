package main

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HariBote1110/serveye/internal/api/http"
)

type Config struct {
	Log     LogConfig
	Http    http.Config
	Gateway GatewayConfig
	Tokens  TokensConfig
	Auth    AuthConfig
	Notify  NotifyConfig
}

type GatewayConfig struct {
	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
	RequestTimeoutSeconds    int `mapstructure:"request_timeout_seconds"`
}

type TokensConfig struct {
	Store       string `mapstructure:"store"`
	FilePath    string `mapstructure:"file_path"`
	DatabaseURL string `mapstructure:"database_url"`
}

type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	ExpiryHours      int    `mapstructure:"expiry_hours"`
	OperatorUsername string `mapstructure:"operator_username"`
	OperatorPassword string `mapstructure:"operator_password"`
}

type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/serveye-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	_ = viper.BindEnv("auth.operator_password", "AUTH_OPERATOR_PASSWORD")
	_ = viper.BindEnv("tokens.database_url", "TOKENS_DATABASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}
