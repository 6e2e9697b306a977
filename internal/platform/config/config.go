package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio. Se carga desde un
// archivo YAML opcional y cada campo puede sobre-escribirse por env var,
// así el deploy en contenedores no necesita archivo.
type Config struct {
	Port string `yaml:"port"`

	// DSN de postgres. Vacío => storage en memoria (modo dev).
	DatabaseDSN string `yaml:"databaseDsn"`

	// Secreto HMAC para verificar JWT. Vacío => modo dev con
	// X-Debug-User-ID.
	JWTSecret string `yaml:"jwtSecret"`

	Log LogConfig `yaml:"log"`

	// URL del servicio de notificaciones. Vacío => se loguean y listo.
	NotifyWebhookURL string `yaml:"notifyWebhookUrl"`

	// Cada cuánto corre el barrido de permisos vencidos.
	SweepInterval Duration `yaml:"sweepInterval"`
}

// Duration acepta el formato de time.ParseDuration ("30s", "5m") en el
// YAML, que el decoder no soporta para time.Duration directo.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load lee el archivo path (si path == "" usa CONFIG_FILE; si tampoco
// hay, parte de los defaults) y después aplica las env vars.
func Load(path string) (Config, error) {
	cfg := Config{
		Port:          "8080",
		SweepInterval: Duration(time.Minute),
		Log:           LogConfig{Level: "info", Format: "text"},
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = Duration(time.Minute)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setIfPresent(&cfg.Port, "PORT")
	setIfPresent(&cfg.DatabaseDSN, "DB_DSN")
	setIfPresent(&cfg.JWTSecret, "JWT_SECRET")
	setIfPresent(&cfg.Log.Level, "LOG_LEVEL")
	setIfPresent(&cfg.Log.Format, "LOG_FORMAT")
	setIfPresent(&cfg.NotifyWebhookURL, "NOTIFY_WEBHOOK_URL")

	if v := strings.TrimSpace(os.Getenv("SWEEP_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = Duration(d)
		}
	}
}

func setIfPresent(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
