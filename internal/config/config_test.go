package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "user-service", c.Service.Name)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, 15*time.Minute, Dur(c.JWT.AccessTTL))
	assert.Equal(t, 7*24*time.Hour, Dur(c.JWT.RefreshTTL))
	assert.Equal(t, "admin", c.Bootstrap.AdminUserID)
	assert.Equal(t, "admin123", c.Bootstrap.AdminPassword)
	assert.Equal(t, 3, c.Audit.MaxAttempts)
	assert.Equal(t, "2s", c.Audit.Timeout)
	assert.Equal(t, "2s", c.Audit.AMQP.DialTimeout)
	require.NoError(t, c.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	p := writeYAML(t, `
service:
  name: from-file
storage:
  driver: postgres
  dsn: postgres://x@localhost/db
jwt:
  access_ttl: 5m
rbac:
  rules:
    teacher:
      view-activities: { allow: true, targets: [student] }
`)
	t.Setenv("SERVICE_NAME", "from-env")
	t.Setenv("JWT_SECRET_KEY", "s3cr3t")
	t.Setenv("ADMIN_PASSWORD", "changeme")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Service.Name)
	assert.Equal(t, "from-env", c.JWT.Issuer)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, 5*time.Minute, Dur(c.JWT.AccessTTL))
	assert.Equal(t, "s3cr3t", c.JWT.Secret)
	assert.Equal(t, "changeme", c.Bootstrap.AdminPassword)
	assert.Equal(t, RBACRule{Allow: true, Targets: []string{"student"}}, c.RBAC.Rules["teacher"]["view-activities"])
}

func TestLoad_ServicePort(t *testing.T) {
	t.Setenv("SERVICE_PORT", "9001")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9001", c.Server.Addr)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"bad duration", func(c *Config) { c.JWT.AccessTTL = "soon" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres"; c.Storage.DSN = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"redis without addr", func(c *Config) { c.Cache.Kind = "redis" }},
		{"prod without secret", func(c *Config) { c.App.Env = "prod"; c.JWT.Secret = "" }},
		{"prod short secret", func(c *Config) { c.App.Env = "prod"; c.JWT.Secret = "short" }},
		{"zero attempts", func(c *Config) { c.Audit.MaxAttempts = 0 }},
		{"bad audit timeout", func(c *Config) { c.Audit.Timeout = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mut(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
