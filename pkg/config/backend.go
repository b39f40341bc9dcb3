package config

import (
	"time"

	"github.com/tendant/simple-portal/pkg/backend/memory"
	"github.com/tendant/simple-portal/pkg/backend/supabase"
)

const (
	BackendSupabase = "supabase"
	BackendMemory   = "memory"

	DataREST     = "rest"
	DataPostgres = "postgres"
)

// BackendConfig selects the external service. "memory" runs an in-process
// emulator for development; "supabase" talks to a real project. Tables can
// be served from PostgreSQL directly with PORTAL_DATA_BACKEND=postgres.
type BackendConfig struct {
	Kind        string `env:"PORTAL_BACKEND" env-default:"memory"`
	DataBackend string `env:"PORTAL_DATA_BACKEND" env-default:"rest"`

	SupabaseURL       string `env:"SUPABASE_URL"`
	SupabaseAnonKey   string `env:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`
	RequestTimeout    string `env:"SUPABASE_REQUEST_TIMEOUT" env-default:"PT15S"`

	// Memory emulator settings.
	MemoryJWTSecret string `env:"PORTAL_MEMORY_JWT_SECRET" env-default:"memory-emulator-secret"`
	MemoryCodeTTL   string `env:"PORTAL_MEMORY_CODE_TTL" env-default:"PT5M"`
	PublicBaseURL   string `env:"PORTAL_PUBLIC_BASE_URL" env-default:"http://localhost:4090"`
	SeedAdminEmail  string `env:"PORTAL_SEED_ADMIN_EMAIL"`
	SeedAdminPass   string `env:"PORTAL_SEED_ADMIN_PASSWORD"`
}

// ToSupabaseConfig converts the config to a supabase.Config
func (b BackendConfig) ToSupabaseConfig() (supabase.Config, error) {
	timeout, err := parseDurationISO8601(b.RequestTimeout)
	if err != nil {
		return supabase.Config{}, err
	}
	return supabase.Config{
		URL:       b.SupabaseURL,
		AnonKey:   b.SupabaseAnonKey,
		JWTSecret: b.SupabaseJWTSecret,
		Timeout:   timeout,
	}, nil
}

// ToMemoryConfig converts the config to a memory.Config
func (b BackendConfig) ToMemoryConfig() (memory.Config, error) {
	codeTTL, err := parseDurationISO8601(b.MemoryCodeTTL)
	if err != nil {
		return memory.Config{}, err
	}
	return memory.Config{
		JWTSecret:     b.MemoryJWTSecret,
		SessionTTL:    time.Hour,
		CodeTTL:       codeTTL,
		PublicBaseURL: b.PublicBaseURL,
	}, nil
}

func (b BackendConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("PORTAL_BACKEND", b.Kind, []string{BackendSupabase, BackendMemory}),
		RequireOneOf("PORTAL_DATA_BACKEND", b.DataBackend, []string{DataREST, DataPostgres}),
		RequireDuration("SUPABASE_REQUEST_TIMEOUT", b.RequestTimeout),
	)
	if b.Kind == BackendSupabase {
		errs = append(errs, CollectErrors(
			RequireValidURL("SUPABASE_URL", b.SupabaseURL),
			RequireNonEmpty("SUPABASE_ANON_KEY", b.SupabaseAnonKey),
		)...)
	}
	if b.Kind == BackendMemory {
		errs = append(errs, CollectErrors(
			RequireDuration("PORTAL_MEMORY_CODE_TTL", b.MemoryCodeTTL),
		)...)
	}
	return errs
}
