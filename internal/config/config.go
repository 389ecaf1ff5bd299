package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendCSV      = "csv"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultRequesters is the requester list of the original GTEC form.
var DefaultRequesters = []string{"Mario R.", "John S.", "Anna P.", "Luca F.", "Giulia B."}

// Config keeps runtime settings for the tracker.
type Config struct {
	StoreBackend   string
	DataFile       string
	DatabaseURL    string
	HTTPAddr       string
	TelegramToken  string
	ReportInterval time.Duration
	ExportDir      string
	ExportSchedule string
	SessionTTL     time.Duration
	Requesters     []string
}

// Load reads configuration from an optional YAML file and environment
// variables, with sane defaults. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("store_backend", BackendCSV)
	v.SetDefault("data_file", "gtec_tasks.csv")
	v.SetDefault("database_url", "")
	v.SetDefault("http_addr", ":8501")
	v.SetDefault("telegram_token", "")
	v.SetDefault("report_interval_hours", "")
	v.SetDefault("export_dir", "")
	v.SetDefault("export_schedule", "18:00")
	v.SetDefault("session_ttl_minutes", 60)
	v.SetDefault("requesters", "")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		StoreBackend:   strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		DataFile:       strings.TrimSpace(v.GetString("data_file")),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		HTTPAddr:       strings.TrimSpace(v.GetString("http_addr")),
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_token")),
		ReportInterval: parseInterval(strings.TrimSpace(v.GetString("report_interval_hours"))),
		ExportDir:      strings.TrimSpace(v.GetString("export_dir")),
		ExportSchedule: strings.TrimSpace(v.GetString("export_schedule")),
		SessionTTL:     time.Duration(v.GetInt("session_ttl_minutes")) * time.Minute,
		Requesters:     parseList(v.Get("requesters")),
	}

	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 24 * time.Hour
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if len(cfg.Requesters) == 0 {
		cfg.Requesters = append([]string(nil), DefaultRequesters...)
	}

	switch cfg.StoreBackend {
	case BackendCSV, BackendMemory:
	case BackendSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "gtec_tasks.db"
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.StoreBackend == BackendCSV && cfg.DataFile == "" {
		return cfg, fmt.Errorf("DATA_FILE is required for the csv backend")
	}

	return cfg, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

// parseList accepts a comma separated string (env) or a YAML list (file).
func parseList(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
