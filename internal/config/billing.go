package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// BillingConfig carries the billing parameters that used to live as implicit
// module defaults: due/cutoff offsets from the start of the billing month and
// the surcharge rates applied by the penalty and disconnection workflows.
// Monetary values are kept as strings and parsed into exact decimals.
type BillingConfig struct {
	DueDays          int    `mapstructure:"dueDays"`
	CutoffDays       int    `mapstructure:"cutoffDays"`
	PenaltyRatePct   string `mapstructure:"penaltyRatePct"`
	ReconnectionFee  string `mapstructure:"reconnectionFee"`
	SeniorDiscountPc string `mapstructure:"seniorDiscountPct"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DueDays:          15,
		CutoffDays:       20,
		PenaltyRatePct:   "10.00",
		ReconnectionFee:  "500.00",
		SeniorDiscountPc: "20.00",
	}
}

// PenaltyRate returns the default penalty rate in percent.
func (c BillingConfig) PenaltyRate() decimal.Decimal {
	return mustDecimal(c.PenaltyRatePct)
}

// ReconnectFee returns the standard reconnection fee.
func (c BillingConfig) ReconnectFee() decimal.Decimal {
	return mustDecimal(c.ReconnectionFee)
}

// SeniorDiscountRate returns the senior-citizen discount in percent.
func (c BillingConfig) SeniorDiscountRate() decimal.Decimal {
	return mustDecimal(c.SeniorDiscountPc)
}

func mustDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		// validateBillingConfig rejects unparseable values before the
		// config is ever stored, so this only trips on zero-value misuse.
		panic(fmt.Sprintf("billing config: bad decimal %q: %v", raw, err))
	}
	return d
}

// BillingConfigHolder serves the current billing parameters and hot-reloads
// them when the config file changes.
type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/waterworks")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WATERWORKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.dueDays", defaults.DueDays)
	v.SetDefault("billing.cutoffDays", defaults.CutoffDays)
	v.SetDefault("billing.penaltyRatePct", defaults.PenaltyRatePct)
	v.SetDefault("billing.reconnectionFee", defaults.ReconnectionFee)
	v.SetDefault("billing.seniorDiscountPct", defaults.SeniorDiscountPc)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DueDays <= 0 {
		return errors.New("billing.dueDays must be positive")
	}
	if cfg.CutoffDays < cfg.DueDays {
		return errors.New("billing.cutoffDays must not precede dueDays")
	}
	for _, raw := range []string{cfg.PenaltyRatePct, cfg.ReconnectionFee, cfg.SeniorDiscountPc} {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("billing config: %q is not a decimal: %w", raw, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("billing config: %q must not be negative", raw)
		}
	}
	return nil
}
