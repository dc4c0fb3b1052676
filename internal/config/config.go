package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string `json:"port"`
	DatadefDir string `json:"datadefDir"` // _access.yaml + <dataSource>/<object>.yaml
	AppRoot    string `json:"appRoot"`    // корень фронтенд-проекта: static/, src/

	// TypeScript
	InterfaceFile string   `json:"interfaceFile"` // относительно AppRoot
	ScanPaths     []string `json:"scanPaths"`

	LogLevel  string `json:"logLevel"`
	LogPretty bool   `json:"logPretty"`

	QueryTimeout  time.Duration `json:"-"`
	QueryTimeoutS int           `json:"queryTimeoutSeconds"`

	// Redis — только для межпроцессных блокировок; пусто = локальные
	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDb"`

	// NATS — публикация уведомлений; пусто = только лента в памяти
	NatsURL    string `json:"natsUrl"`
	NatsPrefix string `json:"natsPrefix"`

	GCSCredentialsFile string `json:"gcsCredentialsFile"`

	Watch    bool `json:"watch"`
	FeedSize int  `json:"feedSize"`
}

func def() Config {
	return Config{
		Port:          "8080",
		DatadefDir:    "src/lib/datadef",
		AppRoot:       ".",
		InterfaceFile: "src/lib/utils/customUtils.ts",
		LogLevel:      "info",
		QueryTimeoutS: 30,
		NatsPrefix:    "designer",
		Watch:         true,
		FeedSize:      100,
	}
}

func loadJSON(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, c)
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load: дефолты -> JSON (designer.json или -config) -> .env и DESIGNER_* -> флаги.
func Load(args []string) (Config, error) {
	fsFlags := flag.NewFlagSet("designer", flag.ContinueOnError)
	configPath := fsFlags.String("config", "designer.json", "Path to config JSON")
	port := fsFlags.String("port", "", "HTTP port")
	datadef := fsFlags.String("datadef", "", "Path to datadef directory")
	appRoot := fsFlags.String("app-root", "", "Frontend project root")
	ifaceFile := fsFlags.String("interface-file", "", "TypeScript file for generated interfaces")
	scan := fsFlags.String("scan-paths", "", "Comma separated paths to scan for interfaces")
	logLevel := fsFlags.String("log-level", "", "Log level (debug/info/warn/error)")
	logPretty := fsFlags.String("log-pretty", "", "Console log output (true/false)")
	timeout := fsFlags.Int("query-timeout", 0, "Backend query timeout, seconds")
	redis := fsFlags.String("redis", "", "Redis address for shared locks")
	nats := fsFlags.String("nats", "", "NATS URL for notifications")
	watch := fsFlags.String("watch", "", "Watch datadef directory (true/false)")
	if err := fsFlags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def()

	// JSON (если файл есть; явно заданный -config обязан существовать)
	explicit := false
	fsFlags.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })
	if err := loadJSON(*configPath, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("config %s: %w", *configPath, err)
		}
	}

	// .env не перетирает уже выставленные переменные
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	// ENV overrides
	cfg.Port = getenv("DESIGNER_PORT", cfg.Port)
	cfg.DatadefDir = getenv("DESIGNER_DATADEF_DIR", cfg.DatadefDir)
	cfg.AppRoot = getenv("DESIGNER_APP_ROOT", cfg.AppRoot)
	cfg.InterfaceFile = getenv("DESIGNER_INTERFACE_FILE", cfg.InterfaceFile)
	if v := getenv("DESIGNER_SCAN_PATHS", ""); v != "" {
		cfg.ScanPaths = splitList(v)
	}
	cfg.LogLevel = getenv("DESIGNER_LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getenvBool("DESIGNER_LOG_PRETTY", cfg.LogPretty)
	cfg.QueryTimeoutS = getenvInt("DESIGNER_QUERY_TIMEOUT", cfg.QueryTimeoutS)
	cfg.RedisAddr = getenv("DESIGNER_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("DESIGNER_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getenvInt("DESIGNER_REDIS_DB", cfg.RedisDB)
	cfg.NatsURL = getenv("DESIGNER_NATS_URL", cfg.NatsURL)
	cfg.NatsPrefix = getenv("DESIGNER_NATS_PREFIX", cfg.NatsPrefix)
	cfg.GCSCredentialsFile = getenv("DESIGNER_GCS_CREDENTIALS", cfg.GCSCredentialsFile)
	cfg.Watch = getenvBool("DESIGNER_WATCH", cfg.Watch)
	cfg.FeedSize = getenvInt("DESIGNER_FEED_SIZE", cfg.FeedSize)

	// Flags overrides: только явно заданные
	fsFlags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = strings.TrimSpace(*port)
		case "datadef":
			cfg.DatadefDir = strings.TrimSpace(*datadef)
		case "app-root":
			cfg.AppRoot = strings.TrimSpace(*appRoot)
		case "interface-file":
			cfg.InterfaceFile = strings.TrimSpace(*ifaceFile)
		case "scan-paths":
			cfg.ScanPaths = splitList(*scan)
		case "log-level":
			cfg.LogLevel = strings.TrimSpace(*logLevel)
		case "log-pretty":
			if b, ok := parseBool(*logPretty); ok {
				cfg.LogPretty = b
			}
		case "query-timeout":
			cfg.QueryTimeoutS = *timeout
		case "redis":
			cfg.RedisAddr = strings.TrimSpace(*redis)
		case "nats":
			cfg.NatsURL = strings.TrimSpace(*nats)
		case "watch":
			if b, ok := parseBool(*watch); ok {
				cfg.Watch = b
			}
		}
	})

	if cfg.QueryTimeoutS <= 0 {
		cfg.QueryTimeoutS = 30
	}
	cfg.QueryTimeout = time.Duration(cfg.QueryTimeoutS) * time.Second
	return cfg, nil
}
