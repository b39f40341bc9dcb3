package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	var cfg PortalConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, DataREST, cfg.Backend.DataBackend)
	assert.True(t, cfg.Shell.MultiRole)
	assert.True(t, cfg.Shell.InvalidateIntermediateSession)
	assert.Equal(t, "portal_session", cfg.Cookie.Name)
	assert.Equal(t, 10000, cfg.Shell.MaxShells)
	assert.True(t, cfg.ShellRateLimit.Enabled)

	idle, err := cfg.Shell.ParseIdleTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, idle)

	expiry, err := cfg.Cookie.ParseExpiry()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, expiry)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORTAL_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SUPABASE_REQUEST_TIMEOUT", "10s")
	t.Setenv("PORTAL_MULTI_ROLE", "false")
	t.Setenv("PORTAL_IDLE_TIMEOUT", "PT2H")

	var cfg PortalConfig
	require.NoError(t, Load(&cfg))
	require.NoError(t, cfg.Validate())

	sb, err := cfg.Backend.ToSupabaseConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", sb.URL)
	assert.Equal(t, "anon", sb.AnonKey)
	assert.Equal(t, 10*time.Second, sb.Timeout)

	assert.False(t, cfg.Shell.MultiRole)
	idle, err := cfg.Shell.ParseIdleTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, idle)
}

func TestValidate_CollectsEveryError(t *testing.T) {
	t.Setenv("PORTAL_BACKEND", "supabase")
	t.Setenv("PORTAL_IDLE_TIMEOUT", "soon")
	t.Setenv("PORTAL_COOKIE_SECRET", "short")

	var cfg PortalConfig
	require.NoError(t, Load(&cfg))

	err := cfg.Validate()
	require.Error(t, err)
	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"SUPABASE_URL",
		"SUPABASE_ANON_KEY",
		"PORTAL_IDLE_TIMEOUT",
		"PORTAL_COOKIE_SECRET",
	}, fields)
	assert.Contains(t, err.Error(), "configuration validation failed:")
}

func TestValidate_PostgresData(t *testing.T) {
	t.Setenv("PORTAL_DATA_BACKEND", "postgres")
	t.Setenv("PORTAL_PG_PORT", "0")

	var cfg PortalConfig
	require.NoError(t, Load(&cfg))

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORTAL_PG_PORT")

	db := DatabaseConfig{Host: "db", Port: 5433, Database: "portal", User: "u", Password: "p", Schema: "portal"}
	assert.Equal(t, "postgres://u:p@db:5433/portal?sslmode=disable&search_path=portal,public", db.ToDatabaseURL())
	assert.Equal(t, uint16(5433), db.ToDbConfig().Port)
}

func TestParseDurationISO8601(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"PT30M", 30 * time.Minute, true},
		{"P1D", 24 * time.Hour, true},
		{"PT1H30M", 90 * time.Minute, true},
		{"45s", 45 * time.Second, true},
		{"forever", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDurationISO8601(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSectionConversions(t *testing.T) {
	pw := &PasswordComplexityConfig{RequiredLength: 10, MaxLength: 30, RequiredDigit: true}
	policy := pw.ToPasswordPolicy()
	assert.Equal(t, 10, policy.MinLength)
	assert.Equal(t, 30, policy.MaxLength)
	assert.True(t, policy.RequireDigit)
	assert.False(t, policy.RequireUppercase)

	var nilPw *PasswordComplexityConfig
	assert.Equal(t, 8, nilPw.ToPasswordPolicy().MinLength)

	rl := LoginRateLimitConfig{Capacity: 3, RefillRate: 0.5, TrustProxyHeaders: true}.ToMiddlewareConfig()
	assert.Equal(t, 3, rl.PerIPCapacity)
	assert.Equal(t, 0.5, rl.PerIPRefillRate)
	assert.True(t, rl.TrustProxyHeaders)

	sl := ShellRateLimitConfig{Capacity: 30, RefillRate: 0.5}.ToMiddlewareConfig()
	assert.Equal(t, 30, sl.PerIPCapacity)
	assert.Equal(t, time.Hour, sl.BucketTTL)

	smtp := EmailConfig{Host: "mail", Port: 2525, From: "a@b.c"}.ToSMTPConfig()
	assert.Equal(t, 2525, smtp.Port)
	assert.Equal(t, "mail", smtp.Host)

	mem, err := BackendConfig{MemoryJWTSecret: "x", MemoryCodeTTL: "PT10M"}.ToMemoryConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mem.CodeTTL)

}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PORTAL_TEST_BOOL", "yes")
	t.Setenv("PORTAL_TEST_INT", "12")
	t.Setenv("PORTAL_TEST_DUR", "PT5M")
	t.Setenv("APP_ENV", "prod")

	assert.True(t, GetEnvBool("PORTAL_TEST_BOOL", false))
	assert.Equal(t, 12, GetEnvInt("PORTAL_TEST_INT", 0))
	assert.Equal(t, 7, GetEnvInt("PORTAL_TEST_MISSING", 7))
	assert.Equal(t, 5*time.Minute, GetEnvDuration("PORTAL_TEST_DUR", time.Second))
	assert.Equal(t, "fallback", GetEnvOrDefault("PORTAL_TEST_MISSING", "fallback"))
	assert.True(t, IsProduction())
	assert.False(t, IsDevelopment())
}
