package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Site           SiteConfig            `yaml:"site"`
	Legacy         LegacyConfig          `yaml:"legacy"`
	Cache          CacheConfig           `yaml:"cache"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`

	configDir string
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// SiteConfig describes the public site links are generated for.
type SiteConfig struct {
	URL        string `yaml:"url"`
	HomePageID int64  `yaml:"home_page_id"`
	AdminURL   string `yaml:"admin_url"`
}

// LegacyConfig points at the bundled legacy path table. An empty path disables it.
type LegacyConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	TreeKey        string `yaml:"tree_key"`
	HTTPTTLSeconds int    `yaml:"http_ttl_seconds"`
	DisableHTTP    bool   `yaml:"disable_http"`
	RateLimit      int64  `yaml:"rate_limit"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	DSN                string             `yaml:"dsn"`
	DatabaseURL        string             `yaml:"database_url"`
	RedisURL           string             `yaml:"redis_url"`
	Database           rawDatabaseConfig  `yaml:"database"`
	Redis              rawRedisConfig     `yaml:"redis"`
	DBHost             string             `yaml:"db_host"`
	DBPort             int                `yaml:"db_port"`
	DBUser             string             `yaml:"db_user"`
	DBPassword         string             `yaml:"db_password"`
	DBName             string             `yaml:"db_name"`
	RedisHost          string             `yaml:"redis_host"`
	RedisPort          int                `yaml:"redis_port"`
	RedisPassword      string             `yaml:"redis_password"`
	RedisDB            *int               `yaml:"redis_db"`
	Env                string             `yaml:"env"`
	Site               rawSiteConfig      `yaml:"site"`
	SiteURL            string             `yaml:"site_url"`
	HomePageID         *int64             `yaml:"home_page_id"`
	AdminURL           string             `yaml:"admin_url"`
	Legacy             LegacyConfig       `yaml:"legacy"`
	LegacyPath         string             `yaml:"legacy_path"`
	Cache              rawCacheConfig     `yaml:"cache"`
	Paths              RuntimePathsConfig `yaml:"paths"`
	LogDir             string             `yaml:"log_dir"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	JWTSecret          string             `yaml:"jwt_secret"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawSiteConfig struct {
	URL        string `yaml:"url"`
	HomePageID *int64 `yaml:"home_page_id"`
	HomeID     *int64 `yaml:"home_id"`
	AdminURL   string `yaml:"admin_url"`
}

type rawCacheConfig struct {
	TreeKey        string `yaml:"tree_key"`
	HTTPTTLSeconds int    `yaml:"http_ttl_seconds"`
	DisableHTTP    *bool  `yaml:"disable_http"`
	RateLimit      int64  `yaml:"rate_limit"`
}
