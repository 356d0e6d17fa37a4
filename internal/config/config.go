package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	BaseURL                string
	DatabaseURL            string
	RedisURL               string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ExerciseServiceAPIKey  string
	ExerciseServiceTimeout time.Duration
	ExerciseServiceCACert  string
	ExerciseServiceCADir   string
	ExerciseServiceRemap   map[string]string
	PageCacheTTL           time.Duration
	GradebookURL           string
	GradebookToken         string
	NATSURL                string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ASTRA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Astra API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("base.url", "http://localhost:8080")
	v.SetDefault("cloudinary.folder", "astra/submissions")
	v.SetDefault("page.cache_ttl", "5m")
	v.SetDefault("exercise.timeout_ms", 20000)

	ttlString := v.GetString("page.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid page cache ttl: %w", err)
	}

	timeoutMs := v.GetInt("exercise.timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 20000
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		BaseURL:                strings.TrimRight(v.GetString("base.url"), "/"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ExerciseServiceAPIKey:  v.GetString("exercise.api_key"),
		ExerciseServiceTimeout: time.Duration(timeoutMs) * time.Millisecond,
		ExerciseServiceCACert:  v.GetString("exercise.ca_cert"),
		ExerciseServiceCADir:   v.GetString("exercise.ca_dir"),
		ExerciseServiceRemap:   parseHostRemap(v.GetString("exercise.host_remap")),
		PageCacheTTL:           ttl,
		GradebookURL:           v.GetString("gradebook.url"),
		GradebookToken:         v.GetString("gradebook.token"),
		NATSURL:                v.GetString("nats.url"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	return cfg, nil
}

// parseHostRemap parses "from=to,from2=to2" pairs into a substitution map.
func parseHostRemap(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	remap := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		remap[parts[0]] = parts[1]
	}

	if len(remap) == 0 {
		return nil
	}
	return remap
}
