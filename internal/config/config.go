package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string

	BackendBaseURL      string
	BackendAPIToken     string
	BackendRateLimitRPS int
	BackendTimeoutMs    int

	// "en" or "he"; selects localized labels for prompts and errors.
	Language string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailProvider string
	MailLabel    string
	// Comma-separated sender addresses or domains; empty admits all mail.
	MailAllowedSenders string
	// Fetch window in days; mail older than this is never pulled.
	MailLookbackDays    int
	ListenerIntervalSec int
	ListenerFetchMax    int
	ListenerBatch       int
	ListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "movedesk.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		BackendBaseURL:      getEnv("MOVEDESK_API_BASE_URL", "https://api.movedesk.example/api/v1"),
		BackendAPIToken:     getEnv("MOVEDESK_API_TOKEN", ""),
		BackendRateLimitRPS: getEnvInt("MOVEDESK_RATE_LIMIT_RPS", 5),
		BackendTimeoutMs:    getEnvInt("MOVEDESK_TIMEOUT_MS", 30000),

		Language: getEnv("MOVEDESK_LANGUAGE", "en"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailProvider:        getEnv("MAIL_PROVIDER", "gmail"),
		MailLabel:           getEnv("MAIL_LABEL", "INBOX"),
		MailAllowedSenders:  getEnv("MAIL_ALLOWED_SENDERS", ""),
		MailLookbackDays:    getEnvInt("MAIL_LOOKBACK_DAYS", 30),
		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 30),
		ListenerFetchMax:    getEnvInt("LISTENER_FETCH_MAX", 20),
		ListenerBatch:       getEnvInt("LISTENER_PROCESS_BATCH", 20),
		ListenerAutoExport:  getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	if cfg.Language != "en" && cfg.Language != "he" {
		cfg.Language = "en"
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
