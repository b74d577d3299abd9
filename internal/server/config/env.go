package config

// Environment variables honoured on top of the JSON file.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSecretKey   = "AUTH_SECRET_KEY"
)

func parseEnv(config *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		config.DatabaseDSN = v
	}
	if v, ok := lookup(EnvSecretKey); ok && v != "" {
		config.SecretKey = v
	}
}
