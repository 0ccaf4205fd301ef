// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the session service configuration.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path" validate:"required"`

	// AnalyzerHost is the base URL of the remote speech analysis service.
	AnalyzerHost string `mapstructure:"analyzer_host" validate:"required"`

	// SampleIntervalMs is the inference sampling period during recording.
	SampleIntervalMs int `mapstructure:"sample_interval_ms" validate:"required,gte=50"`

	// EncoderIntervalMs is the synthetic encoder's segment emission period.
	EncoderIntervalMs int `mapstructure:"encoder_interval_ms" validate:"required,gte=10"`

	CorsOrigins []string `mapstructure:"cors_origins"`
}

// InitConfig reads configuration from .env (or ENV_PATH) with environment
// variable overrides.
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))
	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	if path := os.Getenv("ENV_PATH"); path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("no config file found, reading from env variables")
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "rehearsly-session")
	v.SetDefault("VERSION", "0.1.0")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "logs")

	v.SetDefault("ANALYZER_HOST", "http://localhost:8000")
	v.SetDefault("SAMPLE_INTERVAL_MS", 300)
	v.SetDefault("ENCODER_INTERVAL_MS", 100)
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000"})
}

// GetApplicationConfig unmarshals and validates the application config.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
