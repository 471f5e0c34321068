package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// AdminKey is the shared secret path segment gating the admin endpoints.
	// The admin surface is disabled when empty.
	AdminKey string `env:"ADMIN_KEY" envDefault:""`
}
