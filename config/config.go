package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "sqlite" (default) or "mysql"
	DBDriver    string
	DBPath      string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for catalog caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Ledger
	PointsPerTon       int
	WelcomeBonus       int
	SigninRewardPoints int
	ScanHistoryLimit   int
	ScanFallback       string
	SimulatedLatencyMS int
	SessionIdleMinutes int
	SeedDemoAccount    bool
	DemoPassword       string
	// Metrics
	MetricsEnabled bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	c, err := loadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadFrom applies the precedence config file -> defaults -> environment.
// A missing file is not an error.
func loadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	if err := applyEnvOverrides(&c); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections of the JSON file into out.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok {
				return int(f)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.TokenTTLHours = getInt(app, "TokenTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DBPath = getString(dbs, "Path")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if ld, ok := raw["ledger"].(map[string]any); ok {
		out.PointsPerTon = getInt(ld, "PointsPerTon")
		out.WelcomeBonus = getInt(ld, "WelcomeBonus")
		out.SigninRewardPoints = getInt(ld, "SigninRewardPoints")
		out.ScanHistoryLimit = getInt(ld, "ScanHistoryLimit")
		out.ScanFallback = getString(ld, "ScanFallback")
		out.SimulatedLatencyMS = getInt(ld, "SimulatedLatencyMS")
		out.SessionIdleMinutes = getInt(ld, "SessionIdleMinutes")
		out.SeedDemoAccount = getBool(ld, "SeedDemoAccount")
		out.DemoPassword = getString(ld, "DemoPassword")
	}

	if m, ok := raw["metrics"].(map[string]any); ok {
		out.MetricsEnabled = getBool(m, "Enabled")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.DBPath == "" {
		c.DBPath = "data/carbontrack.db"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "carbontrack"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.PointsPerTon == 0 {
		c.PointsPerTon = 100
	}
	if c.WelcomeBonus == 0 {
		c.WelcomeBonus = 100
	}
	if c.SigninRewardPoints == 0 {
		c.SigninRewardPoints = 10
	}
	if c.ScanHistoryLimit == 0 {
		c.ScanHistoryLimit = 10
	}
	if c.ScanFallback == "" {
		c.ScanFallback = "random"
	}
	if c.SessionIdleMinutes == 0 {
		c.SessionIdleMinutes = 30
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":         &c.AppPort,
		"JWT_SECRET":       &c.JWTSecret,
		"GIN_MODE":         &c.GinMode,
		"GIN_PATH":         &c.GinPath,
		"DB_DRIVER":        &c.DBDriver,
		"DB_PATH":          &c.DBPath,
		"DATABASE_URI":     &c.DatabaseURI,
		"DB_HOST":          &c.DBHost,
		"DB_PORT":          &c.DBPort,
		"DB_USER":          &c.DBUser,
		"DB_PASSWORD":      &c.DBPassword,
		"DB_NAME":          &c.DBName,
		"REDIS_HOST":       &c.RedisHost,
		"REDIS_PASSWORD":   &c.RedisPassword,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_PATH":         &c.LogPath,
		"SCAN_FALLBACK":    &c.ScanFallback,
		"DEMO_PASSWORD":    &c.DemoPassword,
	}
	for key, dst := range strs {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TOKEN_TTL_HOURS":       &c.TokenTTLHours,
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
		"POINTS_PER_TON":        &c.PointsPerTon,
		"WELCOME_BONUS":         &c.WelcomeBonus,
		"SIGNIN_REWARD":         &c.SigninRewardPoints,
		"SCAN_HISTORY_LIMIT":    &c.ScanHistoryLimit,
		"SIMULATED_LATENCY_MS":  &c.SimulatedLatencyMS,
		"SESSION_IDLE_MINUTES":  &c.SessionIdleMinutes,
	}
	for key, dst := range ints {
		if v := getEnv(key, ""); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return errors.New("invalid integer value for " + key + ": " + v)
			}
			*dst = i
		}
	}

	bools := map[string]*bool{
		"LOG_COMPRESS":      &c.LogCompress,
		"SEED_DEMO_ACCOUNT": &c.SeedDemoAccount,
		"METRICS_ENABLED":   &c.MetricsEnabled,
	}
	for key, dst := range bools {
		if v := getEnv(key, ""); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	return nil
}

func readListEnv(key string, defaults []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaults
	}
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
