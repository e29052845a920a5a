package main

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig
	Server  ServerConfig
	Monitor MonitorConfig
}

type ServerConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`

	HeartbeatIntervalSeconds     int `mapstructure:"heartbeat_interval_seconds"`
	InitialReconnectDelaySeconds int `mapstructure:"initial_reconnect_delay_seconds"`
	MaxReconnectDelaySeconds     int `mapstructure:"max_reconnect_delay_seconds"`
}

type MonitorConfig struct {
	SampleIntervalSeconds int `mapstructure:"sample_interval_seconds"`
	HistorySize           int `mapstructure:"history_size"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/serveye-agent")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.url", "SERVER_URL")
	_ = viper.BindEnv("server.token", "SERVER_TOKEN")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)
}
