package config

import (
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"homescore/internal/cma"
)

// chdirTemp keeps a developer's .env out of the test.
func chdirTemp(t *testing.T) {
	t.Helper()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !c.AllowActiveUnderContract || !c.AllowComingSoon || c.MinComps != 3 || c.DealDiscountThreshold != 0.80 {
		t.Fatalf("defaults = %+v", c)
	}
	if math.Abs(math.Pow(c.DecayFactor, 30)-0.5) > 1e-12 {
		t.Fatalf("decay factor %v does not halve in 30 days", c.DecayFactor)
	}
	p := c.CMAPolicy()
	if !p.Adjustments[cma.AdjBedrooms].Equal(cma.DefaultAdjustments()[cma.AdjBedrooms]) {
		t.Fatalf("bedroom adjustment = %s", p.Adjustments[cma.AdjBedrooms])
	}
	if p.ReportTTL != 72*time.Hour || c.Window().DayRange != 180 {
		t.Fatalf("policy = %+v window = %+v", p, c.Window())
	}
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ALLOW_COMING_SOON", "false")
	t.Setenv("MIN_COMPS", "4")
	t.Setenv("MAX_COMPS", "8")
	t.Setenv("ADJUST_POOL", "15000.50")
	t.Setenv("MIN_CONFIDENCE_FOR_ALERT", "0.7")
	t.Setenv("CHIPS_TOP_N", "5")
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.AllowComingSoon || c.CMAPolicy().MinComps != 4 || c.CMAPolicy().MaxComps != 8 {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.CMAPolicy().Adjustments[cma.AdjPool].String() != "15000.5" {
		t.Fatalf("pool adjustment = %s", c.CMAPolicy().Adjustments[cma.AdjPool])
	}
	if c.DealPolicy().MinConfidence != 0.7 || c.PreferencePolicy().ChipsTopN != 5 {
		t.Fatalf("deal/preference policy not applied")
	}
}

func TestLoadFromDotEnv(t *testing.T) {
	chdirTemp(t)
	if err := os.WriteFile(".env", []byte("DEAL_DISCOUNT_THRESHOLD=0.75\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DEAL_DISCOUNT_THRESHOLD") })
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DealDiscountThreshold != 0.75 {
		t.Fatalf("threshold = %v", c.DealDiscountThreshold)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"MIN_COMPS":               "three",
		"DECAY_FACTOR":            "1.5",
		"DEAL_DISCOUNT_THRESHOLD": "0",
		"ADJUST_BEDROOM":          "lots",
		"LOG_LEVEL":               "loud",
		"ALLOW_COMING_SOON":       "perhaps",
		"WORKERS":                 "0",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s accepted", key, val)
			}
		})
	}

	t.Run("max below min", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("MIN_COMPS", "5")
		t.Setenv("MAX_COMPS", "4")
		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "MaxComps") {
			t.Fatalf("want MaxComps validation error, got %v", err)
		}
	})
}
