// Package config loads the docshelf configuration: the shared core settings
// plus database, payment and ingestion options.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/docshelf/core/config"
	coredatabase "github.com/m3rciful/docshelf/core/database"
)

// Plan is one purchasable subscription option.
type Plan struct {
	Months int    `yaml:"months"`
	Price  int    `yaml:"price"`
	Label  string `yaml:"label"`
}

// PaymentsConfig describes Telegram Payments settings.
type PaymentsConfig struct {
	ProviderToken string `yaml:"provider_token" envconfig:"PAYMENTS_PROVIDER_TOKEN"`
	Currency      string `yaml:"currency" envconfig:"PAYMENTS_CURRENCY"`
	Plans         []Plan `yaml:"plans"`
	// SupportContact is shown to users when a payment cannot be settled.
	SupportContact string `yaml:"support_contact" envconfig:"PAYMENTS_SUPPORT_CONTACT"`
}

// IngestConfig tunes the admin document dialog.
type IngestConfig struct {
	PDFOnly     *bool `yaml:"pdf_only" envconfig:"INGEST_PDF_ONLY"`
	MaxTitleLen int   `yaml:"max_title_len" envconfig:"INGEST_MAX_TITLE_LEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Payments PaymentsConfig      `yaml:"payments"`
	Ingest   IngestConfig        `yaml:"ingest"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// DefaultPlans is used when the file lists none.
var DefaultPlans = []Plan{
	{Months: 1, Price: 100, Label: "1 month"},
	{Months: 3, Price: 250, Label: "3 months"},
	{Months: 12, Price: 900, Label: "12 months"},
}

const (
	defaultCurrency    = "XTR"
	defaultMaxTitleLen = 200
	maxPlanMonths      = 36
)

// Load reads configuration from path and the environment and validates it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	switch cfg.Database.DriverName() {
	case coredatabase.DriverPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = "disable"
		}
	case coredatabase.DriverSQLite:
		if strings.TrimSpace(cfg.Database.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", cfg.Database.Driver)
	}

	p := &cfg.Payments
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	if p.Currency != defaultCurrency && strings.TrimSpace(p.ProviderToken) == "" {
		return fmt.Errorf("payments.provider_token is required for currency %s", p.Currency)
	}
	if len(p.Plans) == 0 {
		p.Plans = append([]Plan(nil), DefaultPlans...)
	}
	seen := make(map[int]struct{}, len(p.Plans))
	for i, plan := range p.Plans {
		if plan.Months < 1 || plan.Months > maxPlanMonths {
			return fmt.Errorf("payments.plans[%d].months must be within 1..%d", i, maxPlanMonths)
		}
		if plan.Price <= 0 {
			return fmt.Errorf("payments.plans[%d].price must be > 0", i)
		}
		if _, dup := seen[plan.Months]; dup {
			return fmt.Errorf("payments.plans[%d]: duplicate plan for %d months", i, plan.Months)
		}
		seen[plan.Months] = struct{}{}
		if strings.TrimSpace(plan.Label) == "" {
			p.Plans[i].Label = fmt.Sprintf("%d months", plan.Months)
			if plan.Months == 1 {
				p.Plans[i].Label = "1 month"
			}
		}
	}

	if cfg.Ingest.PDFOnly == nil {
		on := true
		cfg.Ingest.PDFOnly = &on
	}
	if cfg.Ingest.MaxTitleLen <= 0 || cfg.Ingest.MaxTitleLen > defaultMaxTitleLen {
		cfg.Ingest.MaxTitleLen = defaultMaxTitleLen
	}
	return nil
}
