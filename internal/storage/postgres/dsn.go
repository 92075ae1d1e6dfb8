package postgres

import (
	"fmt"

	"github.com/tourplanner/tourplanner-backend/config"
)

// DSN prefers an explicit DB_DSN and otherwise builds a keyword/value string
// from the individual settings.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name,
	)
}
