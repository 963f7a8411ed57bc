package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds server configuration. Values come from flags, then
// environment variables, then defaults.
type Config struct {
	Port          int
	BindAddr      string
	Host          string
	StaticDir     string
	StaleAfter    time.Duration
	GallerySize   int
	LogLevel      string
	WatchAssets   bool
	Open          bool
	OpenGallery   bool
	TargetURL     string
	TargetTask    string
	Headless      bool
	BrowserBinary string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:        5009,
		BindAddr:    "127.0.0.1",
		Host:        "127.0.0.1",
		StaticDir:   "./templates/static",
		StaleAfter:  30 * time.Second,
		GallerySize: 50,
		LogLevel:    "info",
	}
}

// Load parses args over the environment read through getenv. A nil getenv
// reads the process environment. Malformed environment values are ignored.
func Load(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := fromEnv(Defaults(), getenv)

	fs := pflag.NewFlagSet("web-eval-dashboard", pflag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port (env PORT)")
	fs.StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "address to listen on (env BIND_ADDR)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "host used in dashboard URLs (env OPERATIVE_DASHBOARD_HOST)")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "dashboard pages and assets (env STATIC_DIR)")
	fs.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "how long a silent tab counts as open (env TAB_STALE_AFTER)")
	fs.IntVar(&cfg.GallerySize, "gallery-size", cfg.GallerySize, "screenshots kept in the gallery (env GALLERY_SIZE)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (env LOG_LEVEL)")
	fs.BoolVar(&cfg.WatchAssets, "watch-assets", cfg.WatchAssets, "reload open dashboards when assets change (env WATCH_ASSETS)")
	fs.BoolVar(&cfg.Open, "open", false, "open the dashboard in a browser on start")
	fs.BoolVar(&cfg.OpenGallery, "open-screenshots", false, "open the screenshot gallery instead of the dashboard")
	fs.StringVar(&cfg.TargetURL, "url", cfg.TargetURL, "page to automate (env TARGET_URL)")
	fs.StringVar(&cfg.TargetTask, "task", cfg.TargetTask, "task description shown on the dashboard (env TARGET_TASK)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run the automated browser headless (env HEADLESS)")
	fs.StringVar(&cfg.BrowserBinary, "browser-bin", cfg.BrowserBinary, "browser executable, downloaded when empty (env BROWSER_BIN)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(cfg Config, getenv func(string) string) Config {
	if v := getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := getenv("BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := getenv("OPERATIVE_DASHBOARD_HOST"); v != "" {
		cfg.Host = v
	}
	if v := getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := getenv("TAB_STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.StaleAfter = d
		}
	}
	if v := getenv("GALLERY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GallerySize = n
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("WATCH_ASSETS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.WatchAssets = b
		}
	}
	if v := getenv("TARGET_URL"); v != "" {
		cfg.TargetURL = v
	}
	if v := getenv("TARGET_TASK"); v != "" {
		cfg.TargetTask = v
	}
	if v := getenv("HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = b
		}
	}
	if v := getenv("BROWSER_BIN"); v != "" {
		cfg.BrowserBinary = v
	}
	return cfg
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive, got %s", c.StaleAfter)
	}
	if c.GallerySize <= 0 {
		return fmt.Errorf("gallery-size must be positive, got %d", c.GallerySize)
	}
	return nil
}

// ListenAddr is the address the HTTP server binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// DashboardURL is the address dashboards are opened at.
func (c Config) DashboardURL(screenshots bool) string {
	url := fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	if screenshots {
		url += "/screenshots"
	}
	return url
}
