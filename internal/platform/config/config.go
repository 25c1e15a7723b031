package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Federation  FederationConfig  `mapstructure:"federation"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Invitations InvitationsConfig `mapstructure:"invitations"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// WorkspaceTTL is how long an idle device workspace stays cached.
	WorkspaceTTL time.Duration `mapstructure:"workspace_ttl"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// ProviderConfig bounds every call made to the record provider.
type ProviderConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// FederationConfig describes the identity broker that signs federated id tokens.
type FederationConfig struct {
	Issuer string `mapstructure:"issuer"`
	Secret string `mapstructure:"secret"`
}

type PreferencesConfig struct {
	Path string `mapstructure:"path"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

type InvitationsConfig struct {
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	DefaultMaxUses int           `mapstructure:"default_max_uses"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.workspace_ttl", 30*time.Minute)
	v.SetDefault("database.url", "file:./data/taskhub.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("preferences.path", "./data/preferences.yaml")
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "X-Device-ID"})
	v.SetDefault("cors.max_age", 300)
	v.SetDefault("invitations.default_ttl", 7*24*time.Hour)
	v.SetDefault("invitations.default_max_uses", 1)
	v.SetDefault("invitations.sweep_interval", time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Load reads the YAML file at path. Every key can be overridden through the
// environment, e.g. JWT_SECRET for jwt.secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
