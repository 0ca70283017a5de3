package userapi

import (
	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// Config holds every deploy-time secret and knob. It is populated once at
// startup and passed by value into constructors; nothing mutates it at
// runtime.
type Config struct {
	Port int    `env:"USERAPI_PORT" envDefault:"7053"`
	DSN  string `env:"USERAPI_DSN" envDefault:"file:userapi.db?cache=shared"`

	// Salt is the deploy-wide salt folded into every credential digest.
	Salt string `env:"USERAPI_SALT,notEmpty"`
	// APISecret signs session tokens.
	APISecret string `env:"USERAPI_SECRET,notEmpty"`
	// ServerSecret authenticates machine logins; empty disables them.
	ServerSecret string `env:"USERAPI_SERVER_SECRET"`
	// LongTermKey grants 30-day tokens on /login/:longtermkey; empty
	// disables long-term logins.
	LongTermKey string `env:"USERAPI_LONGTERM_KEY"`
	// AdminKey substitutes for a user's password on account deletion
	// only; empty disables the substitution.
	AdminKey string `env:"USERAPI_ADMIN_KEY"`

	MetricsHost string `env:"USERAPI_METRICS_HOST"`
	ServiceName string `env:"USERAPI_SERVICE_NAME" envDefault:"userapi"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}
