package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for slim containers

	"billing_notifier/internal/domain/message"

	"github.com/joho/godotenv"
)

const (
	defaultNextFitBaseURL = "https://integracao.nextfit.com.br/api/v1"
	defaultMessageAPIURL  = "https://app.mundodosbots.com.br/api/contacts"
)

// flowIDKeys maps each template kind to the variable holding its flow id.
var flowIDKeys = map[message.TemplateKind]string{
	message.KindDueToday:     "FLOW_ID_VENCENDO_HOJE",
	message.KindDueIn3Days:   "FLOW_ID_VENCENDO_3_DIAS",
	message.KindOverdue3Days: "FLOW_ID_VENCIDO_3_DIAS",
	message.KindOverdue5Days: "FLOW_ID_VENCIDO_5_DIAS",
	message.KindOverdue30Day: "FLOW_ID_VENCIDO_30_DIAS",
	message.KindBirthday:     "FLOW_ID_ANIVERSARIANTE",
}

// FieldSlotCount is the number of MESSAGE_FIELD_n destinations.
const FieldSlotCount = 5

// AppConfig holds all configuration for the application
type AppConfig struct {
	NextFitAPIKey     string
	NextFitBaseURL    string
	NextFitAPIVersion string
	PageSize          int
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestDelay      time.Duration
	HTTPTimeout       time.Duration
	DataDir           string

	MessageAPIURL   string
	MessageAPIToken string
	FlowIDs         map[message.TemplateKind]int
	// FieldSlots[i] is the contact field that receives slot i+1.
	FieldSlots           [FieldSlotCount]string
	SendMessages         bool
	ValidAccountStatuses []string

	LogLevel    string
	Environment string

	Location             *time.Location
	CronSpecRosterSync   string
	CronSpecDailyCheck   string
	RunRosterSyncOnStart bool

	DatabaseURL     string
	TelegramToken   string
	AdminTelegramID int64
}

// RosterPath is the location of the roster snapshot.
func (c *AppConfig) RosterPath() string { return c.DataDir + "/users.json" }

// ReportPath is the location of the latest run report.
func (c *AppConfig) ReportPath() string { return c.DataDir + "/accounts_today.json" }

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{FlowIDs: make(map[message.TemplateKind]int, len(flowIDKeys))}
	var err error

	cfg.NextFitAPIKey = getenv("NEXTFIT_API_KEY")
	if cfg.NextFitAPIKey == "" {
		return nil, fmt.Errorf("NEXTFIT_API_KEY is not set")
	}
	cfg.NextFitBaseURL = strings.TrimRight(withDefault(getenv("NEXTFIT_BASE_URL"), defaultNextFitBaseURL), "/")
	cfg.NextFitAPIVersion = withDefault(getenv("NEXTFIT_API_VERSION"), "1")

	if cfg.PageSize, err = intValue(getenv, "PAGE_SIZE", 30); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("invalid PAGE_SIZE: must be positive")
	}
	if cfg.MaxRetries, err = intValue(getenv, "MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("invalid MAX_RETRIES: must not be negative")
	}
	if cfg.RetryBackoff, err = durationValue(getenv, "RETRY_BACKOFF", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = durationValue(getenv, "REQUEST_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationValue(getenv, "HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	cfg.DataDir = strings.TrimRight(withDefault(getenv("DATA_DIR"), "./data"), "/")

	cfg.MessageAPIURL = withDefault(getenv("MESSAGE_API_URL"), defaultMessageAPIURL)
	cfg.MessageAPIToken = getenv("MESSAGE_API_TOKEN")
	for kind, key := range flowIDKeys {
		if cfg.FlowIDs[kind], err = intValue(getenv, key, 0); err != nil {
			return nil, err
		}
		if cfg.FlowIDs[kind] < 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", key)
		}
	}
	for i := range cfg.FieldSlots {
		cfg.FieldSlots[i] = strings.TrimSpace(getenv(fmt.Sprintf("MESSAGE_FIELD_%d", i+1)))
	}
	if cfg.SendMessages, err = boolValue(getenv, "SEND_MESSAGES", true); err != nil {
		return nil, err
	}
	cfg.ValidAccountStatuses = listValue(getenv("VALID_ACCOUNT_STATUSES"), []string{"Aberto", "EmAndamento"})

	cfg.LogLevel = strings.ToLower(withDefault(getenv("LOG_LEVEL"), "info"))
	cfg.Environment = strings.ToLower(withDefault(getenv("ENVIRONMENT"), "development"))

	tz := withDefault(getenv("TIMEZONE"), "America/Sao_Paulo")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.CronSpecRosterSync = withDefault(getenv("CRON_SPEC_ROSTER_SYNC"), "0 1 * * 0") // Sunday 01:00
	cfg.CronSpecDailyCheck = withDefault(getenv("CRON_SPEC_DAILY_CHECK"), "0 8 * * *")
	if cfg.RunRosterSyncOnStart, err = boolValue(getenv, "RUN_ROSTER_SYNC_ON_START", true); err != nil {
		return nil, err
	}

	cfg.DatabaseURL = getenv("DATABASE_URL")

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func intValue(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolValue(getenv func(string) string, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// durationValue accepts Go durations ("1500ms") or a bare number of seconds.
func durationValue(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s: must not be negative", key)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func listValue(raw string, def []string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
