package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"homescore/internal/cma"
	"homescore/internal/deal"
	"homescore/internal/model"
	"homescore/internal/preference"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	AllowActiveUnderContract  bool
	AllowComingSoon           bool
	DealDiscountThreshold     float64 `validate:"gt=0,lte=1"`
	MinComps                  int     `validate:"gte=1"`
	MaxComps                  int     `validate:"omitempty,gtefield=MinComps"`
	ConfidenceSaturationComps int     `validate:"gte=1"`
	MinConfidenceForAlert     float64 `validate:"gte=0,lte=1"`
	DecayFactor               float64 `validate:"gt=0,lt=1"`
	RadiusMiles               float64 `validate:"gt=0"`
	DaysBack                  int     `validate:"gt=0"`
	ReportTTL                 time.Duration
	ChipsTopN                 int `validate:"gte=0"`

	// Adjustments is dollars per unit keyed by cma adjustment feature.
	Adjustments map[string]decimal.Decimal `validate:"required"`

	DatabaseURL      string
	RedisAddr        string
	PebbleDir        string `validate:"required"`
	KafkaBootstrap   string
	DealAlertTopic   string `validate:"required"`
	InteractionTopic string `validate:"required"`
	AlertLogDir      string
	SnapshotDir      string `validate:"required"`
	MetricsAddr      string `validate:"required"`
	Workers          int    `validate:"gte=1,lte=256"`
	LogLevel         string `validate:"oneof=trace debug info warn warning error fatal panic"`
}

var adjustmentEnv = map[string]string{
	cma.AdjBedrooms:   "ADJUST_BEDROOM",
	cma.AdjBathrooms:  "ADJUST_BATHROOM",
	cma.AdjLivingArea: "ADJUST_LIVING_AREA",
	cma.AdjLotSize:    "ADJUST_LOT_SIZE",
	cma.AdjGarage:     "ADJUST_GARAGE",
	cma.AdjPool:       "ADJUST_POOL",
	cma.AdjYearBuilt:  "ADJUST_YEAR_BUILT",
}

// Load reads the .env file if present, then the environment, and validates
// the result. Malformed values are errors, not silent fallbacks.
func Load() (*Config, error) {
	// missing .env is fine; the process environment still applies
	_ = godotenv.Load()

	e := &env{}
	c := &Config{
		AllowActiveUnderContract:  e.boolean("ALLOW_ACTIVE_UNDER_CONTRACT", true),
		AllowComingSoon:           e.boolean("ALLOW_COMING_SOON", true),
		DealDiscountThreshold:     e.number("DEAL_DISCOUNT_THRESHOLD", 0.80),
		MinComps:                  e.integer("MIN_COMPS", 3),
		MaxComps:                  e.integer("MAX_COMPS", 10),
		ConfidenceSaturationComps: e.integer("CONFIDENCE_SATURATION_COMPS", 6),
		MinConfidenceForAlert:     e.number("MIN_CONFIDENCE_FOR_ALERT", 0.50),
		DecayFactor:               e.number("DECAY_FACTOR", preference.HalfLifeDecay(30)),
		RadiusMiles:               e.number("CMA_RADIUS_MILES", 1.0),
		DaysBack:                  e.integer("CMA_DAYS_BACK", 180),
		ReportTTL:                 e.duration("REPORT_TTL", 72*time.Hour),
		ChipsTopN:                 e.integer("CHIPS_TOP_N", 3),

		DatabaseURL:      e.str("DATABASE_URL", ""),
		RedisAddr:        e.str("REDIS_ADDR", ""),
		PebbleDir:        e.str("PEBBLE_DIR", "./data/homescore"),
		KafkaBootstrap:   e.str("KAFKA_BOOTSTRAP", ""),
		DealAlertTopic:   e.str("DEAL_ALERT_TOPIC", "homescore.deal-alerts"),
		InteractionTopic: e.str("INTERACTION_TOPIC", "homescore.interactions"),
		AlertLogDir:      e.str("ALERT_LOG_DIR", "./alerts"),
		SnapshotDir:      e.str("SNAPSHOT_DIR", "./data/snapshots"),
		MetricsAddr:      e.str("METRICS_ADDR", ":8080"),
		Workers:          e.integer("WORKERS", 4),
		LogLevel:         strings.ToLower(e.str("LOG_LEVEL", "info")),
	}
	defaults := cma.DefaultAdjustments()
	c.Adjustments = make(map[string]decimal.Decimal, len(adjustmentEnv))
	for feature, key := range adjustmentEnv {
		c.Adjustments[feature] = e.dec(key, defaults[feature])
	}

	if len(e.errs) > 0 {
		return nil, errors.Newf("config: %s", strings.Join(e.errs, "; "))
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, errors.Wrap(err, "config: validate")
	}
	return c, nil
}

// Window is the default CMA search window.
func (c *Config) Window() model.Window {
	return model.Window{RadiusMiles: c.RadiusMiles, DayRange: c.DaysBack}
}

func (c *Config) CMAPolicy() cma.Policy {
	p := cma.DefaultPolicy()
	p.AllowActiveUnderContract = c.AllowActiveUnderContract
	p.AllowComingSoon = c.AllowComingSoon
	p.MinComps = c.MinComps
	p.MaxComps = c.MaxComps
	p.ConfidenceSaturationComps = c.ConfidenceSaturationComps
	p.ReportTTL = c.ReportTTL
	p.Adjustments = cma.AdjustmentTable{}
	for k, v := range c.Adjustments {
		p.Adjustments[k] = v
	}
	return p
}

func (c *Config) DealPolicy() deal.Policy {
	return deal.Policy{DiscountThreshold: c.DealDiscountThreshold, MinConfidence: c.MinConfidenceForAlert}
}

func (c *Config) PreferencePolicy() preference.Policy {
	p := preference.DefaultPolicy()
	p.DecayFactor = c.DecayFactor
	p.ChipsTopN = c.ChipsTopN
	return p
}

// env reads typed values and records malformed ones.
type env struct {
	errs []string
}

func (e *env) str(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func (e *env) integer(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		e.errs = append(e.errs, key+": not an integer")
		return fallback
	}
	return n
}

func (e *env) number(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		e.errs = append(e.errs, key+": not a number")
		return fallback
	}
	return f
}

func (e *env) boolean(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		e.errs = append(e.errs, key+": not a boolean")
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		e.errs = append(e.errs, key+": not a duration")
		return fallback
	}
	return d
}

func (e *env) dec(key string, fallback decimal.Decimal) decimal.Decimal {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := decimal.NewFromString(strings.TrimSpace(val))
	if err != nil {
		e.errs = append(e.errs, key+": not a decimal")
		return fallback
	}
	return d
}
