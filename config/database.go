package config

// DatabaseConfig points the store at PostgreSQL. An empty DSN selects
// the in-memory store, for local development only.
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}
