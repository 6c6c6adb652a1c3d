package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphummel/engin_maint/internal/models"
	"github.com/tphummel/engin_maint/internal/schedule"
)

// Config is the service configuration.
type Config struct {
	APIToken string `mapstructure:"api_token"`
	DBPath   string `mapstructure:"db_path"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	Gammes   []Gamme  `mapstructure:"gammes"`
	Rotation Rotation `mapstructure:"rotation"`
}

// Gamme is one catalog entry as written in the config file.
type Gamme struct {
	Position int     `mapstructure:"position"`
	Label    string  `mapstructure:"label"`
	Hours    float64 `mapstructure:"hours"`
}

// Rotation selects the rotation policy.
type Rotation struct {
	Policy        string  `mapstructure:"policy"`
	IntervalHours float64 `mapstructure:"interval_hours"`
	Sequence      []int   `mapstructure:"sequence"`
}

// DefaultGammes is the observed 8-slot rotation C,D,C,E,C,D,C,F at 250-hour
// steps.
func DefaultGammes() []Gamme {
	labels := []string{"C", "D", "C", "E", "C", "D", "C", "F"}
	out := make([]Gamme, len(labels))
	for i, l := range labels {
		out[i] = Gamme{Position: i + 1, Label: l, Hours: float64(250 * (i + 1))}
	}
	return out
}

// Load reads configuration from a .env file in the working directory (when
// present), the environment, and the optional YAML file at path. Environment
// variables take precedence over the file.
func Load(path string) (Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("db_path", "./engins.db")
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("rotation.policy", string(schedule.SequentialByCatalog))

	for key, env := range map[string]string{
		"api_token": "API_TOKEN",
		"db_path":   "DB_PATH",
		"port":      "PORT",
		"log_level": "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, err
		}
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(c.Gammes) == 0 {
		c.Gammes = DefaultGammes()
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.APIToken == "" {
		return errors.New("API_TOKEN environment variable is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if err := validateGammes(c.Gammes); err != nil {
		return err
	}
	return c.Policy().Validate(schedule.NewCatalog(c.Catalog()))
}

func validateGammes(gammes []Gamme) error {
	if len(gammes) == 0 {
		return errors.New("gamme catalog must not be empty")
	}
	for i, g := range gammes {
		if g.Position != i+1 {
			return fmt.Errorf("gamme %d: positions must start at 1 and be contiguous, got %d", i+1, g.Position)
		}
		if strings.TrimSpace(g.Label) == "" {
			return fmt.Errorf("gamme %d: label is required", g.Position)
		}
		if g.Hours <= 0 {
			return fmt.Errorf("gamme %d: hours must be positive", g.Position)
		}
		if i > 0 && g.Hours <= gammes[i-1].Hours {
			return fmt.Errorf("gamme %d: hours must increase with position", g.Position)
		}
	}
	return nil
}

// Catalog converts the configured gammes to models. IDs are left empty; they
// are assigned by the store.
func (c Config) Catalog() []models.Gamme {
	out := make([]models.Gamme, len(c.Gammes))
	for i, g := range c.Gammes {
		out[i] = models.Gamme{
			Position: g.Position,
			Label:    strings.TrimSpace(g.Label),
			Hours:    g.Hours,
		}
	}
	return out
}

// Policy returns the configured rotation policy.
func (c Config) Policy() schedule.Policy {
	return schedule.Policy{
		Kind:          schedule.PolicyKind(c.Rotation.Policy),
		IntervalHours: c.Rotation.IntervalHours,
		Sequence:      c.Rotation.Sequence,
	}
}
