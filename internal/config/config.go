// Package config содержит логику чтения конфигурации сервиса библиотеки.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса библиотеки.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	RegistryAddress string `env:"REGISTRY_ADDRESS"`
	LoanPeriodDays  int    `env:"LOAN_PERIOD_DAYS"`
	FinePerDay      int64  `env:"FINE_PER_DAY"`
	FineGraceDays   int    `env:"FINE_GRACE_DAYS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRegistryAddress := cfg.RegistryAddress
	envLoanPeriodDays := cfg.LoanPeriodDays
	envFinePerDay := cfg.FinePerDay
	envFineGraceDays := cfg.FineGraceDays

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RegistryAddress, "r", "", "academic registry address")
	flag.IntVar(&cfg.LoanPeriodDays, "loan-days", 14, "loan period in days")
	flag.Int64Var(&cfg.FinePerDay, "fine-per-day", 1000, "fine per overdue day in UGX")
	flag.IntVar(&cfg.FineGraceDays, "fine-grace-days", 30, "days until an issued fine is payable")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRegistryAddress != "" {
		cfg.RegistryAddress = envRegistryAddress
	}
	// Числовая переменная окружения со значением 0 считается незаданной:
	// действует флаг или значение по умолчанию. Ноль не является допустимым
	// значением ни для одного из числовых параметров.
	if envLoanPeriodDays != 0 {
		cfg.LoanPeriodDays = envLoanPeriodDays
	}
	if envFinePerDay != 0 {
		cfg.FinePerDay = envFinePerDay
	}
	if envFineGraceDays != 0 {
		cfg.FineGraceDays = envFineGraceDays
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.LoanPeriodDays <= 0 {
		return nil, fmt.Errorf("loan period must be positive, got %d", cfg.LoanPeriodDays)
	}
	if cfg.FinePerDay < 0 {
		return nil, fmt.Errorf("fine per day must be non-negative, got %d", cfg.FinePerDay)
	}

	return cfg, nil
}
