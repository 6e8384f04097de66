package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Store     StoreConfig
	AI        AIConfig
	Inventory InventoryConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StoreConfig configuración del ejecutor SQL y de cada backend.
// DefaultBackend/DefaultDatabase se usan cuando el comando no trae descriptor.
type StoreConfig struct {
	DefaultBackend  string
	DefaultDatabase string
	Timeout         time.Duration // por llamada a Execute
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	MySQL    MySQLConfig
	Postgres PostgresConfig
	SQLite   FileStoreConfig
	DuckDB   FileStoreConfig
}

// MySQLConfig datos de conexión a MySQL. La base de datos viene del descriptor.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Addr devuelve host:port.
func (c MySQLConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PostgresConfig datos de conexión a PostgreSQL.
// Si DatabaseURL no está vacío, se usa como base y solo se reemplaza la base de datos.
type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	SSLMode     string
}

// DSN devuelve el connection string para la base indicada, con URL encoding para caracteres especiales.
func (c PostgresConfig) DSN(database string) string {
	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err == nil {
			u.Path = "/" + database
			return u.String()
		}
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + database,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// FileStoreConfig backends embebidos (sqlite, duckdb): un archivo por base de datos dentro de Dir.
type FileStoreConfig struct {
	Dir string
}

// AIConfig proveedor de texto usado para los prompts sin regla fija.
type AIConfig struct {
	Provider        string // anthropic, gemini, openai, none
	Timeout         time.Duration
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
}

// InventoryConfig políticas del pipeline de comandos.
type InventoryConfig struct {
	MissingProductPolicy string // reject, create
	UnmatchedPolicy      string // passthrough, reject, provider
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, STORE_DEFAULT_BACKEND, AI_PROVIDER, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return FromViper(v)
}

// FromViper construye la configuración desde una instancia de Viper ya cargada.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "bodega-agent"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Store: StoreConfig{
			DefaultBackend:  strings.ToLower(getString(v, "STORE_DEFAULT_BACKEND", "mysql")),
			DefaultDatabase: getString(v, "STORE_DEFAULT_DATABASE", "bodega_inventory"),
			Timeout:         getDuration(v, "STORE_TIMEOUT", 15*time.Second),
			MaxOpenConns:    getInt(v, "STORE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt(v, "STORE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration(v, "STORE_CONN_MAX_LIFETIME", time.Hour),
			MySQL: MySQLConfig{
				Host:     getString(v, "MYSQL_HOST", "localhost"),
				Port:     getInt(v, "MYSQL_PORT", 3306),
				User:     getString(v, "MYSQL_USER", "root"),
				Password: getString(v, "MYSQL_PASSWORD", ""),
			},
			Postgres: PostgresConfig{
				DatabaseURL: getString(v, "DATABASE_URL", ""),
				Host:        getString(v, "DB_HOST", "localhost"),
				Port:        getInt(v, "DB_PORT", 5432),
				User:        getString(v, "DB_USER", "postgres"),
				Password:    getString(v, "DB_PASSWORD", ""),
				SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			},
			SQLite: FileStoreConfig{Dir: getString(v, "SQLITE_DIR", "./data")},
			DuckDB: FileStoreConfig{Dir: getString(v, "DUCKDB_DIR", "./data")},
		},
		AI: AIConfig{
			Provider:        strings.ToLower(getString(v, "AI_PROVIDER", "none")),
			Timeout:         getDuration(v, "AI_TIMEOUT", 10*time.Second),
			AnthropicAPIKey: getString(v, "ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getString(v, "ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
			GeminiAPIKey:    getString(v, "GEMINI_API_KEY", ""),
			GeminiModel:     getString(v, "GEMINI_MODEL", "gemini-1.5-flash"),
			OpenAIAPIKey:    getString(v, "OPENAI_API_KEY", ""),
			OpenAIModel:     getString(v, "OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL:   getString(v, "OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Inventory: InventoryConfig{
			MissingProductPolicy: strings.ToLower(getString(v, "INVENTORY_MISSING_PRODUCT_POLICY", "reject")),
			UnmatchedPolicy:      strings.ToLower(getString(v, "INVENTORY_UNMATCHED_POLICY", "passthrough")),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Inventory.MissingProductPolicy {
	case "reject", "create":
	default:
		return fmt.Errorf("INVENTORY_MISSING_PRODUCT_POLICY inválido: %q", c.Inventory.MissingProductPolicy)
	}
	switch c.Inventory.UnmatchedPolicy {
	case "passthrough", "reject", "provider":
	default:
		return fmt.Errorf("INVENTORY_UNMATCHED_POLICY inválido: %q", c.Inventory.UnmatchedPolicy)
	}
	if c.Store.Timeout < 0 || c.AI.Timeout < 0 {
		return fmt.Errorf("los timeouts no pueden ser negativos")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

// getDuration acepta "15s", "2m" o un entero en segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
