package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Lock      LockConfig
	Ledger    LedgerConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Resubmit  ResubmitConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	SQLitePath      string // used when Driver is sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	MigrationsPath  string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

const (
	// LedgerSubmitSlack is added to ledger.submit_timeout for the caller's own
	// deadline, so the gateway always reports its outcome first.
	LedgerSubmitSlack = 5 * time.Second
	// LockCommitAllowance covers the local transaction that runs under the item
	// lock before the ledger submit starts.
	LockCommitAllowance = 10 * time.Second
)

// LockConfig selects the per-item lock implementation
type LockConfig struct {
	Driver        string        // memory, redis
	TTL           time.Duration // redis lock expiry; must outlast a full ledger submit
	RetryInterval time.Duration // redis lock polling interval
	KeyPrefix     string
}

// LedgerConfig holds Fabric gateway settings
type LedgerConfig struct {
	Enabled             bool   // when false every ledger call reports LEDGER_UNAVAILABLE
	PeerEndpoint        string // host:port of the peer gateway service
	PeerHostOverride    string // TLS server name override
	TLSCertPath         string // peer TLS CA certificate
	Insecure            bool   // plaintext gRPC (development only)
	MSPID               string
	WalletPath          string // directory of <label>.id wallet entries
	IdentityLabel       string
	CertPath            string // explicit certificate, used when WalletPath is empty
	KeyPath             string // explicit private key, used when WalletPath is empty
	Channel             string
	Chaincode           string
	ConnectOnStartup    bool
	EvaluateTimeout     time.Duration
	EndorseTimeout      time.Duration
	SubmitTimeout       time.Duration
	CommitStatusTimeout time.Duration
	EvaluateRetries     int
}

// WriteDeadline bounds a ledger write as seen by its caller
func (l LedgerConfig) WriteDeadline() time.Duration {
	return l.SubmitTimeout + LedgerSubmitSlack
}

// ItemCriticalSection is the longest an item lock is held for one event:
// the local commit plus the ledger write.
func (c *Config) ItemCriticalSection() time.Duration {
	return LockCommitAllowance + c.Ledger.WriteDeadline()
}

// JWTConfig holds settings for verifying tokens issued by the identity service
type JWTConfig struct {
	Secret   string
	Issuer   string
	Required bool // when false, unauthenticated requests act as an anonymous actor

	CheckRevocation  bool   // consult the identity service's revocation keys in redis
	RevocationPrefix string // key prefix shared with the identity service
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TraceRateLimit    int           // public trace lookups per minute per client
	IdempotencyTTL    time.Duration // how long an Idempotency-Key response is replayed
	IdempotencyClaim  time.Duration // how long an unfinished request holds its key
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// ResubmitConfig holds settings for the periodic re-submission of failed ledger writes
type ResubmitConfig struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Workers     int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry tracing
	MetricsEnabled    bool    // Whether to export metrics
	LogsEnabled       bool    // Whether to export logs through the zap bridge
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string   // e.g. "http://pyroscope:4040"
	BasicAuthUser     string   // Grafana Cloud only
	BasicAuthPassword string   // Grafana Cloud only
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, mutex, block
	SpanProfiles      bool     // attach span ids to CPU profiles; needs tracing on
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with HERB_ prefix (e.g., HERB_LEDGER_PEER_ENDPOINT)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("HERB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true need an explicit default so an unset key is not read as false
	v.SetDefault("http.rate_limit_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			MigrationsPath:  v.GetString("database.migrations_path"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Lock: LockConfig{
			Driver:        v.GetString("lock.driver"),
			TTL:           v.GetDuration("lock.ttl"),
			RetryInterval: v.GetDuration("lock.retry_interval"),
			KeyPrefix:     v.GetString("lock.key_prefix"),
		},
		Ledger: LedgerConfig{
			Enabled:             v.GetBool("ledger.enabled"),
			PeerEndpoint:        v.GetString("ledger.peer_endpoint"),
			PeerHostOverride:    v.GetString("ledger.peer_host_override"),
			TLSCertPath:         v.GetString("ledger.tls_cert_path"),
			Insecure:            v.GetBool("ledger.insecure"),
			MSPID:               v.GetString("ledger.msp_id"),
			WalletPath:          v.GetString("ledger.wallet_path"),
			IdentityLabel:       v.GetString("ledger.identity_label"),
			CertPath:            v.GetString("ledger.cert_path"),
			KeyPath:             v.GetString("ledger.key_path"),
			Channel:             v.GetString("ledger.channel"),
			Chaincode:           v.GetString("ledger.chaincode"),
			ConnectOnStartup:    v.GetBool("ledger.connect_on_startup"),
			EvaluateTimeout:     v.GetDuration("ledger.evaluate_timeout"),
			EndorseTimeout:      v.GetDuration("ledger.endorse_timeout"),
			SubmitTimeout:       v.GetDuration("ledger.submit_timeout"),
			CommitStatusTimeout: v.GetDuration("ledger.commit_status_timeout"),
			EvaluateRetries:     v.GetInt("ledger.evaluate_retries"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("jwt.secret"),
			Issuer:   v.GetString("jwt.issuer"),
			Required: v.GetBool("jwt.required"),

			CheckRevocation:  v.GetBool("jwt.check_revocation"),
			RevocationPrefix: v.GetString("jwt.revocation_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			TraceRateLimit:    v.GetInt("http.trace_rate_limit"),
			IdempotencyTTL:    v.GetDuration("http.idempotency_ttl"),
			IdempotencyClaim:  v.GetDuration("http.idempotency_claim_ttl"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Resubmit: ResubmitConfig{
			Enabled:     v.GetBool("resubmit.enabled"),
			Interval:    v.GetDuration("resubmit.interval"),
			BatchSize:   v.GetInt("resubmit.batch_size"),
			MaxAttempts: v.GetInt("resubmit.max_attempts"),
			Workers:     v.GetInt("resubmit.workers"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling.enabled"),
				ServerAddress:     v.GetString("telemetry.profiling.server_address"),
				BasicAuthUser:     v.GetString("telemetry.profiling.basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling.basic_auth_password"),
				ProfileTypes:      splitList(v.GetStringSlice("telemetry.profiling.profile_types")),
				SpanProfiles:      v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "herbtrace-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "herbtrace.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "herbtrace"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Lock.Driver == "" {
		cfg.Lock.Driver = "memory"
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = 90 * time.Second
	}
	if cfg.Lock.RetryInterval == 0 {
		cfg.Lock.RetryInterval = 50 * time.Millisecond
	}
	if cfg.Lock.KeyPrefix == "" {
		cfg.Lock.KeyPrefix = "herbtrace:lock:item:"
	}
	if cfg.Ledger.PeerEndpoint == "" {
		cfg.Ledger.PeerEndpoint = "localhost:7051"
	}
	if cfg.Ledger.MSPID == "" {
		cfg.Ledger.MSPID = "Org1MSP"
	}
	if cfg.Ledger.IdentityLabel == "" {
		cfg.Ledger.IdentityLabel = "appUser"
	}
	if cfg.Ledger.Channel == "" {
		cfg.Ledger.Channel = "mychannel"
	}
	if cfg.Ledger.Chaincode == "" {
		cfg.Ledger.Chaincode = "herbtrace"
	}
	if cfg.Ledger.EvaluateTimeout == 0 {
		cfg.Ledger.EvaluateTimeout = 5 * time.Second
	}
	if cfg.Ledger.EndorseTimeout == 0 {
		cfg.Ledger.EndorseTimeout = 15 * time.Second
	}
	if cfg.Ledger.SubmitTimeout == 0 {
		cfg.Ledger.SubmitTimeout = 30 * time.Second
	}
	if cfg.Ledger.CommitStatusTimeout == 0 {
		cfg.Ledger.CommitStatusTimeout = time.Minute
	}
	if cfg.Ledger.EvaluateRetries == 0 {
		cfg.Ledger.EvaluateRetries = 2
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "herbtrace-identity"
	}
	if cfg.JWT.RevocationPrefix == "" {
		cfg.JWT.RevocationPrefix = "token:blacklist:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// must exceed ledger.submit_timeout so partial-success responses still get written
		cfg.HTTP.WriteTimeout = 45 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.TraceRateLimit == 0 {
		cfg.HTTP.TraceRateLimit = 30
	}
	if cfg.HTTP.IdempotencyTTL == 0 {
		cfg.HTTP.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.HTTP.IdempotencyClaim == 0 {
		cfg.HTTP.IdempotencyClaim = 2 * time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Resubmit.Interval == 0 {
		cfg.Resubmit.Interval = 5 * time.Minute
	}
	if cfg.Resubmit.BatchSize == 0 {
		cfg.Resubmit.BatchSize = 50
	}
	if cfg.Resubmit.MaxAttempts == 0 {
		cfg.Resubmit.MaxAttempts = 3
	}
	if cfg.Resubmit.Workers == 0 {
		cfg.Resubmit.Workers = 2
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "herbtrace-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Lock.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("lock.driver must be memory or redis, got %q", c.Lock.Driver)
	}
	if c.Lock.Driver == "redis" && c.Lock.TTL <= c.ItemCriticalSection() {
		return fmt.Errorf("lock.ttl (%s) must exceed ledger.submit_timeout plus %s of commit and submit slack (%s)",
			c.Lock.TTL, LockCommitAllowance+LedgerSubmitSlack, c.ItemCriticalSection())
	}

	if c.Ledger.Enabled {
		if c.Ledger.WalletPath == "" && (c.Ledger.CertPath == "" || c.Ledger.KeyPath == "") {
			return fmt.Errorf("ledger requires wallet_path or both cert_path and key_path")
		}
		if !c.Ledger.Insecure && c.Ledger.TLSCertPath == "" {
			return fmt.Errorf("ledger.tls_cert_path is required unless ledger.insecure is set")
		}
	}
	if c.Ledger.EvaluateRetries < 0 {
		return fmt.Errorf("ledger.evaluate_retries cannot be negative")
	}

	if c.Resubmit.Enabled && !c.Ledger.Enabled {
		return fmt.Errorf("resubmit.enabled requires ledger.enabled")
	}

	if c.JWT.Required && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required when jwt.required is true")
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if !c.JWT.Required {
			return fmt.Errorf("jwt.required cannot be disabled in production")
		}
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !c.Ledger.Enabled {
			return fmt.Errorf("ledger.enabled must be true in production")
		}
		if c.Ledger.Insecure {
			return fmt.Errorf("ledger.insecure cannot be set in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.HTTP.IdempotencyClaim <= c.ItemCriticalSection() {
		return fmt.Errorf("http.idempotency_claim_ttl (%s) must exceed the item write window (%s)",
			c.HTTP.IdempotencyClaim, c.ItemCriticalSection())
	}
	if c.HTTP.IdempotencyClaim > c.HTTP.IdempotencyTTL {
		return fmt.Errorf("http.idempotency_claim_ttl cannot exceed http.idempotency_ttl")
	}

	if c.Telemetry.Profiling.Enabled && c.Telemetry.Profiling.ServerAddress == "" {
		return fmt.Errorf("telemetry.profiling.server_address is required when profiling is enabled")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
