package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env string `yaml:"env"` // dev | prod
	} `yaml:"app"`

	Service struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"service"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// Si true, X-Forwarded-For / X-Real-IP se usan para la IP del cliente (detrás de nginx).
		TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		Secret     string `yaml:"secret"`
		KeyID      string `yaml:"kid"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Security struct {
		PasswordPolicy struct {
			MinLength     int  `yaml:"min_length"`
			MaxLength     int  `yaml:"max_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"security"`

	RBAC struct {
		// MatrixFile YAML con reglas role -> operation -> {allow, targets}.
		MatrixFile string                         `yaml:"matrix_file"`
		Rules      map[string]map[string]RBACRule `yaml:"rules"`
	} `yaml:"rbac"`

	Audit struct {
		MaxAttempts  int    `yaml:"max_attempts"`
		RetryBackoff string `yaml:"retry_backoff"`
		Timeout      string `yaml:"timeout"` // tope total por registro
		AMQP         struct {
			URL         string `yaml:"url"`
			Queue       string `yaml:"queue"`
			DialTimeout string `yaml:"dial_timeout"`
		} `yaml:"amqp"`
	} `yaml:"audit"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Bootstrap struct {
		AdminUserID   string     `yaml:"admin_userid"`
		AdminPassword string     `yaml:"admin_password"`
		SeedTestUsers bool       `yaml:"seed_test_users"`
		SeedUsers     []SeedUser `yaml:"seed_users"`
	} `yaml:"bootstrap"`
}

// RBACRule override de una celda de la matriz.
type RBACRule struct {
	Allow   bool     `yaml:"allow"`
	Targets []string `yaml:"targets"`
}

type SeedUser struct {
	UserID   string `yaml:"userid"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Default retorna la configuración sin archivo (defaults + nada más).
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// Load lee el YAML (si path != ""), aplica defaults, pisa con env y valida.
func Load(path string) (*Config, error) {
	c := &Config{}
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Service.Name == "" {
		c.Service.Name = "user-service"
	}
	if c.Service.Version == "" {
		c.Service.Version = "1.0.0"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8001"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		if c.Storage.DSN != "" {
			c.Storage.Driver = "postgres"
		} else {
			c.Storage.Driver = "memory"
		}
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "usersvc:"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = c.Service.Name
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "168h" // 7d
	}
	pp := &c.Security.PasswordPolicy
	if pp.MinLength == 0 {
		pp.MinLength = 8
		pp.RequireUpper = true
		pp.RequireLower = true
		pp.RequireDigit = true
		pp.RequireSymbol = true
	}
	if pp.MaxLength == 0 {
		pp.MaxLength = 128
	}
	if c.Audit.MaxAttempts == 0 {
		c.Audit.MaxAttempts = 3
	}
	if c.Audit.RetryBackoff == "" {
		c.Audit.RetryBackoff = "50ms"
	}
	if c.Audit.Timeout == "" {
		c.Audit.Timeout = "2s"
	}
	if c.Audit.AMQP.DialTimeout == "" {
		c.Audit.AMQP.DialTimeout = "2s"
	}
	if c.Audit.AMQP.Queue == "" {
		c.Audit.AMQP.Queue = "user.activity"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Bootstrap.AdminUserID == "" {
		c.Bootstrap.AdminUserID = "admin"
	}
	if c.Bootstrap.AdminPassword == "" {
		c.Bootstrap.AdminPassword = "admin123"
	}
}

// Validate rechaza duraciones inválidas y secretos faltantes en prod.
func (c *Config) Validate() error {
	durs := map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"server.shutdown_timeout":   c.Server.ShutdownTimeout,
		"cache.memory.default_ttl":  c.Cache.Memory.DefaultTTL,
		"jwt.access_ttl":            c.JWT.AccessTTL,
		"jwt.refresh_ttl":           c.JWT.RefreshTTL,
		"audit.retry_backoff":       c.Audit.RetryBackoff,
		"audit.timeout":             c.Audit.Timeout,
		"audit.amqp.dial_timeout":   c.Audit.AMQP.DialTimeout,
		"rate.login.window":         c.Rate.Login.Window,
		"storage.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	}
	for k, v := range durs {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", k, v, err)
		}
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("config: storage.dsn required for postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return errors.New("config: cache.redis.addr required for redis cache")
		}
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if c.JWT.Secret == "" && c.IsProd() {
		return errors.New("config: jwt.secret (JWT_SECRET_KEY) required in prod")
	}
	if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 && c.IsProd() {
		return errors.New("config: jwt.secret must be at least 32 bytes in prod")
	}
	if c.Audit.MaxAttempts < 1 {
		return errors.New("config: audit.max_attempts must be >= 1")
	}
	return nil
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Dur parsea una duración ya validada; "" -> 0.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// firstEnv devuelve la primera variable definida (alias legacy primero o último según el llamador).
func firstEnv(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := getEnvStr(k); ok {
			return v, true
		}
	}
	return "", false
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: el entorno pisa al YAML. Se aceptan los nombres
// USERSVC_* y los históricos del despliegue (SERVICE_NAME, ADMIN_PASSWORD...).
func (c *Config) applyEnvOverrides() {
	if v, ok := firstEnv("USERSVC_ENV", "APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := firstEnv("USERSVC_SERVICE_NAME", "SERVICE_NAME"); ok {
		c.Service.Name = v
	}
	if v, ok := firstEnv("USERSVC_SERVICE_VERSION", "SERVICE_VERSION"); ok {
		c.Service.Version = v
	}

	// SERVER
	if v, ok := firstEnv("USERSVC_ADDR", "SERVER_ADDR"); ok {
		c.Server.Addr = v
	} else if v, ok := getEnvInt("SERVICE_PORT"); ok {
		c.Server.Addr = fmt.Sprintf(":%d", v)
	}
	if v, ok := getEnvBool("USERSVC_TRUST_PROXY_HEADERS"); ok {
		c.Server.TrustProxyHeaders = v
	}
	if v, ok := firstEnv("USERSVC_LOG_LEVEL", "LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := firstEnv("USERSVC_STORAGE_DRIVER", "STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := firstEnv("USERSVC_DATABASE_URL", "DATABASE_URL", "STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("USERSVC_MIGRATE"); ok {
		c.Storage.Migrate = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}

	// CACHE
	if v, ok := firstEnv("USERSVC_CACHE_KIND", "CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := firstEnv("USERSVC_JWT_SECRET", "JWT_SECRET_KEY"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// SECURITY
	if v, ok := getEnvInt("SECURITY_PASSWORD_POLICY_MIN_LENGTH"); ok {
		c.Security.PasswordPolicy.MinLength = v
	}
	if v, ok := getEnvStr("SECURITY_PASSWORD_BLACKLIST_PATH"); ok {
		c.Security.PasswordBlacklistPath = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("USERSVC_RBAC_MATRIX_FILE"); ok {
		c.RBAC.MatrixFile = v
	}

	// AUDIT
	if v, ok := getEnvInt("AUDIT_MAX_ATTEMPTS"); ok {
		c.Audit.MaxAttempts = v
	}
	if v, ok := firstEnv("AUDIT_AMQP_URL", "RABBITMQ_URL"); ok {
		c.Audit.AMQP.URL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}

	// BOOTSTRAP
	if v, ok := getEnvStr("ADMIN_PASSWORD"); ok {
		c.Bootstrap.AdminPassword = v
	}
	if v, ok := getEnvBool("SEED_TEST_USERS"); ok {
		c.Bootstrap.SeedTestUsers = v
	}
}
