package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoDemoCollection string
	SiteURL             string
	MailgunAPIKey       string
	MailgunDomain       string
	MailgunAPIBase      string
	SignedTokenSecret   string
	ExpireTime          time.Duration
	APIRouteBearerKey   string
	Port                string
	RenderBaseURL       string
	EmailProvider       string
	SESSender           string
	PDFArchiveBucket    string
	SlackBotToken       string
	SlackInfoChannel    string
	SlackErrorChannel   string
	ChromePath          string
	PDFCacheTTL         time.Duration
	PDFSweepInterval    time.Duration
	PDFRenderTimeout    time.Duration
	LogLevel            string
	LogFormat           string
	StaticDir           string
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ParameterSource loads a YAML map of variables, e.g. from SSM.
type ParameterSource interface {
	LoadParameters(ctx context.Context, name string) (map[string]string, error)
}

var required = []string{
	"MONGODB_URI",
	"MONGODB_DB",
	"MONGODB_COLLECTION",
	"MONGODB_DEMO_COLLECTION",
	"SITE_URL",
	"MAILGUN_API_KEY",
	"MAILGUN_DOMAIN",
	"SIGNED_TOKEN_SECRET",
	"EXPIRE_TIME_SECONDS",
	"API_ROUTE_BEARER_KEY",
}

// FromEnv loads configuration from the process environment.
func FromEnv(ctx context.Context, params ParameterSource) (*Config, error) {
	return Load(ctx, os.LookupEnv, params)
}

// Load reads every variable through lookup. When CONFIG_SSM_PARAMETER is set and
// params is non-nil, the parameter fills variables missing from lookup.
func Load(ctx context.Context, lookup LookupFunc, params ParameterSource) (*Config, error) {
	if name, ok := lookup("CONFIG_SSM_PARAMETER"); ok && name != "" && params != nil {
		overlay, err := params.LoadParameters(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		lookup = withFallback(lookup, overlay)
	}

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	for _, key := range required {
		if get(key) == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
	}

	expire, err := strconv.Atoi(get("EXPIRE_TIME_SECONDS"))
	if err != nil || expire <= 0 {
		return nil, fmt.Errorf("EXPIRE_TIME_SECONDS must be a positive integer, got %q", get("EXPIRE_TIME_SECONDS"))
	}

	cfg := &Config{
		MongoURI:            get("MONGODB_URI"),
		MongoDatabase:       get("MONGODB_DB"),
		MongoCollection:     get("MONGODB_COLLECTION"),
		MongoDemoCollection: get("MONGODB_DEMO_COLLECTION"),
		SiteURL:             strings.TrimRight(get("SITE_URL"), "/"),
		MailgunAPIKey:       get("MAILGUN_API_KEY"),
		MailgunDomain:       get("MAILGUN_DOMAIN"),
		MailgunAPIBase:      get("MAILGUN_API_BASE"),
		SignedTokenSecret:   get("SIGNED_TOKEN_SECRET"),
		ExpireTime:          time.Duration(expire) * time.Second,
		APIRouteBearerKey:   get("API_ROUTE_BEARER_KEY"),
		Port:                orDefault(get("PORT"), "3000"),
		EmailProvider:       orDefault(get("EMAIL_PROVIDER"), "mailgun"),
		SESSender:           get("SES_SENDER"),
		PDFArchiveBucket:    get("PDF_ARCHIVE_BUCKET"),
		SlackBotToken:       get("SLACK_BOT_TOKEN"),
		SlackInfoChannel:    get("SLACK_INFO_CHANNEL"),
		SlackErrorChannel:   get("SLACK_ERROR_CHANNEL"),
		ChromePath:          get("CHROME_PATH"),
		LogLevel:            orDefault(get("LOG_LEVEL"), "info"),
		LogFormat:           orDefault(get("LOG_FORMAT"), "json"),
		StaticDir:           orDefault(get("STATIC_DIR"), "./public"),
	}
	cfg.RenderBaseURL = strings.TrimRight(orDefault(get("RENDER_BASE_URL"), "http://127.0.0.1:"+cfg.Port), "/")

	switch cfg.EmailProvider {
	case "mailgun", "ses":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be mailgun or ses, got %q", cfg.EmailProvider)
	}

	durations := []struct {
		key    string
		target *time.Duration
		def    time.Duration
	}{
		{"PDF_CACHE_TTL", &cfg.PDFCacheTTL, time.Hour},
		{"PDF_SWEEP_INTERVAL", &cfg.PDFSweepInterval, 15 * time.Minute},
		{"PDF_RENDER_TIMEOUT", &cfg.PDFRenderTimeout, 60 * time.Second},
	}
	for _, d := range durations {
		*d.target = d.def
		raw := get(d.key)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration, got %q", d.key, raw)
		}
		*d.target = parsed
	}

	return cfg, nil
}

func withFallback(lookup LookupFunc, overlay map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok && v != "" {
			return v, true
		}
		v, ok := overlay[key]
		return v, ok
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
