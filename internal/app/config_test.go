package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, time.Millisecond, cfg.PasswordChangeSkew)
	assert.Equal(t, "jwt", cfg.JWTCookieName)
	assert.Equal(t, MailModeSMTP, cfg.MailMode)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"short secret":  {"JWT_SECRET": "too-short"},
		"bad mail mode": {"JWT_SECRET": validSecret, "MAIL_MODE": "pigeon"},
		"bcrypt cost":   {"JWT_SECRET": validSecret, "BCRYPT_COST": "40"},
		"zero skew":     {"JWT_SECRET": validSecret, "PASSWORD_CHANGE_SKEW": "0s"},
		"sub-ms skew":   {"JWT_SECRET": validSecret, "PASSWORD_CHANGE_SKEW": "500us"},
		"bad duration":  {"JWT_SECRET": validSecret, "JWT_EXPIRES_IN": "90 days"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestIsProduction(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}
