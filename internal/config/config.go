package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gopkg.in/yaml.v3"
)

type R2Config struct {
	AccountID        string `yaml:"account_id"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	BucketName       string `yaml:"bucket_name"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	PresignDownloads bool   `yaml:"presign_downloads"`
}

// ImageHostConfig points at the image host that stores chunked blobs.
type ImageHostConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	ChunkSize int    `yaml:"chunk_size"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Config is read once at startup and passed by value afterwards.
type Config struct {
	Port         string `yaml:"port"`
	Host         string `yaml:"host"`
	AuthToken    string `yaml:"auth_token"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	APIKey       string `yaml:"api_key"`
	JWTSecret    string `yaml:"jwt_secret"`
	Environment  string `yaml:"env"`

	DBDriver string `yaml:"db_driver"`
	DBURL    string `yaml:"db_url"`

	StorageBackend string          `yaml:"storage_backend"`
	StorageDir     string          `yaml:"storage_dir"`
	MaxUploadSize  int64           `yaml:"max_upload_size"`
	R2             R2Config        `yaml:"r2"`
	ImageHost      ImageHostConfig `yaml:"image_host"`

	// ShareRequiresAuth puts POST /api/share behind the Auth-Token check.
	ShareRequiresAuth bool `yaml:"share_requires_auth"`
	// LoginRequired puts the owner routes behind the session cookie.
	LoginRequired  bool `yaml:"login_required"`
	ShareRateLimit int  `yaml:"share_rate_limit"`
	// TrustedProxies lists the addresses (IPs or CIDRs) whose X-Forwarded-For
	// and X-Real-IP headers are believed when telling clients apart.
	TrustedProxies []string `yaml:"trusted_proxies"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	RedisURL    string       `yaml:"redis_url"`
	Google      GoogleConfig `yaml:"google"`
	OwnerEmails []string     `yaml:"owner_emails"`
	CorsOrigins []string     `yaml:"cors_origins"`
	StaticDir   string       `yaml:"static_dir"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendLocal = "local"
	BackendR2    = "r2"
	// BackendImageHost splits blobs into PNG-wrapped chunks on an image host.
	BackendImageHost = "imagehost"
)

// Load reads the environment (after an optional .env file) and then lets the
// YAML file at path, when given, override whatever keys it sets.
func Load(path string) (Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No", envFile, "file found")
	}

	cfg := fromEnv()

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if cfg.APIKey == "" {
		cfg.APIKey = cfg.Password
	}
	if cfg.ImageHost.Token == "" {
		cfg.ImageHost.Token = cfg.AuthToken
	}
	return cfg, cfg.Validate()
}

func fromEnv() Config {
	return Config{
		Port:         getEnv("PORT", "37374"),
		Host:         strings.TrimRight(getEnv("HOST", ""), "/"),
		AuthToken:    getEnv("AUTH_TOKEN", ""),
		Password:     getEnv("PASSWORD", "admin"),
		PasswordHash: getEnv("PASSWORD_HASH", ""),
		APIKey:       getEnv("API_KEY", ""),
		JWTSecret:    getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		Environment:  getEnv("ENV", "development"),

		DBDriver: getEnv("DB_DRIVER", DriverSQLite),
		DBURL:    getEnv("DB_URL", "fileinpic.db"),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendLocal),
		StorageDir:     getEnv("STORAGE_DIR", "data/blobs"),
		MaxUploadSize:  getEnvInt64("MAX_UPLOAD_SIZE", 2<<30),
		R2: R2Config{
			AccountID:        getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:      getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:       getEnv("R2_BUCKET_NAME", ""),
			Region:           getEnv("R2_REGION", "auto"),
			Endpoint:         getEnv("R2_ENDPOINT", ""),
			PresignDownloads: getEnvBool("R2_PRESIGN_DOWNLOADS", false),
		},
		ImageHost: ImageHostConfig{
			URL:       strings.TrimRight(getEnv("IMAGEHOST_URL", "https://i.111666.best"), "/"),
			Token:     getEnv("IMAGEHOST_TOKEN", ""),
			ChunkSize: int(getEnvInt64("IMAGEHOST_CHUNK_SIZE", 6<<20)),
		},

		ShareRequiresAuth: getEnvBool("SHARE_REQUIRES_AUTH", true),
		LoginRequired:     getEnvBool("LOGIN_REQUIRED", false),
		ShareRateLimit:    int(getEnvInt64("SHARE_RATE_LIMIT", 30)),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RedisURL: getEnv("REDIS_URL", ""),
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},
		OwnerEmails: getEnvList("OWNER_EMAILS"),
		CorsOrigins: getEnvList("CORS_ORIGINS"),
		StaticDir:   getEnv("STATIC_DIR", "static"),
	}
}

func (c *Config) overlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	c.Host = strings.TrimRight(c.Host, "/")
	return nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	switch c.StorageBackend {
	case BackendLocal:
		if c.StorageDir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required for local storage"))
		}
	case BackendR2:
		if c.R2.BucketName == "" {
			errs = append(errs, errors.New("R2_BUCKET_NAME is required for r2 storage"))
		}
		if c.R2.AccountID == "" && c.R2.Endpoint == "" {
			errs = append(errs, errors.New("R2_ACCOUNT_ID or R2_ENDPOINT is required for r2 storage"))
		}
	case BackendImageHost:
		if c.ImageHost.URL == "" {
			errs = append(errs, errors.New("IMAGEHOST_URL is required for imagehost storage"))
		}
		if c.ImageHost.Token == "" {
			errs = append(errs, errors.New("IMAGEHOST_TOKEN or AUTH_TOKEN is required for imagehost storage"))
		}
		if c.ImageHost.ChunkSize <= 0 {
			errs = append(errs, errors.New("IMAGEHOST_CHUNK_SIZE must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend))
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p))
		}
	}
	if c.MaxUploadSize < 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must not be negative"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RedirectURL != ""
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Invalid boolean for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) CorsOptions() cors.Options {
	origins := c.CorsOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}
