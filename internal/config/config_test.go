package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(environment, secret string) *Config {
	return &Config{
		Environment:        environment,
		SessionSecret:      secret,
		SessionTTL:         24 * time.Hour,
		BcryptCost:         12,
		AuthRateLimitRPS:   5,
		AuthRateLimitBurst: 10,
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.expected, cfg.IsProduction())
			assert.Equal(t, tt.expected, cfg.SecureCookies())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"empty", "", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.expected, cfg.IsDevelopment())
		})
	}
}

func TestConfig_Validate_Production(t *testing.T) {
	tests := []struct {
		name          string
		sessionSecret string
		errorContains string
	}{
		{name: "valid_secret", sessionSecret: "this-is-a-very-secure-secret-with-32-plus-characters"},
		{name: "empty_secret", sessionSecret: "", errorContains: "SESSION_SECRET must be set"},
		{name: "default_secret", sessionSecret: "change-this-in-production", errorContains: "SESSION_SECRET must be set"},
		{name: "short_secret", sessionSecret: "short", errorContains: "at least 32 characters"},
		{name: "exactly_32_chars", sessionSecret: "12345678901234567890123456789012"},
		{name: "31_chars", sessionSecret: "1234567890123456789012345678901", errorContains: "at least 32 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestConfig("production", tt.sessionSecret).Validate()
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestConfig_Validate_DevelopmentDefaultsSecret(t *testing.T) {
	for _, env := range []string{"development", "staging", ""} {
		t.Run("env_"+env, func(t *testing.T) {
			cfg := newTestConfig(env, "")
			require.NoError(t, cfg.Validate())
			assert.NotEmpty(t, cfg.SessionSecret)
		})
	}
}

func TestConfig_Validate_Limits(t *testing.T) {
	t.Run("non_positive_ttl", func(t *testing.T) {
		cfg := newTestConfig("development", "x")
		cfg.SessionTTL = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_TTL")
	})

	t.Run("bcrypt_cost_too_low", func(t *testing.T) {
		cfg := newTestConfig("development", "x")
		cfg.BcryptCost = 3
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BCRYPT_COST")
	})

	t.Run("bcrypt_cost_too_high", func(t *testing.T) {
		cfg := newTestConfig("development", "x")
		cfg.BcryptCost = 32
		assert.Error(t, cfg.Validate())
	})

	t.Run("rate_limit_zero", func(t *testing.T) {
		cfg := newTestConfig("development", "x")
		cfg.AuthRateLimitBurst = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestGetEnv(t *testing.T) {
	t.Run("env_set", func(t *testing.T) {
		t.Setenv("BABYSHOP_TEST_KEY", "custom")
		assert.Equal(t, "custom", getEnv("BABYSHOP_TEST_KEY", "default"))
	})

	t.Run("env_not_set", func(t *testing.T) {
		assert.Equal(t, "default", getEnv("BABYSHOP_TEST_KEY_NOT_SET", "default"))
	})
}

func TestGetEnvTyped(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		t.Setenv("BABYSHOP_INT", "14")
		assert.Equal(t, 14, getEnvInt("BABYSHOP_INT", 12))
	})

	t.Run("int_invalid_falls_back", func(t *testing.T) {
		t.Setenv("BABYSHOP_INT", "twelve")
		assert.Equal(t, 12, getEnvInt("BABYSHOP_INT", 12))
	})

	t.Run("float", func(t *testing.T) {
		t.Setenv("BABYSHOP_FLOAT", "2.5")
		assert.InDelta(t, 2.5, getEnvFloat("BABYSHOP_FLOAT", 5), 0.0001)
	})

	t.Run("bool", func(t *testing.T) {
		t.Setenv("BABYSHOP_BOOL", "false")
		assert.False(t, getEnvBool("BABYSHOP_BOOL", true))
	})

	t.Run("bool_invalid_falls_back", func(t *testing.T) {
		t.Setenv("BABYSHOP_BOOL", "maybe")
		assert.True(t, getEnvBool("BABYSHOP_BOOL", true))
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("BABYSHOP_DURATION", "2h")
		assert.Equal(t, 2*time.Hour, getEnvDuration("BABYSHOP_DURATION", time.Hour))
	})

	t.Run("duration_invalid_falls_back", func(t *testing.T) {
		t.Setenv("BABYSHOP_DURATION", "soon")
		assert.Equal(t, time.Hour, getEnvDuration("BABYSHOP_DURATION", time.Hour))
	})
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("OPENAPI_VALIDATION", "")
	t.Setenv("RABBITMQ_URL", "")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.True(t, cfg.OpenAPIValidation)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.NotEmpty(t, cfg.SessionSecret)
}
