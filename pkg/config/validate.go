package config

import "fmt"

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" || c.JWT.Secret == "change-this-secret" {
		return fmt.Errorf("JWT_SECRET must be set to a non-default value")
	}
	if c.Engine.ProgressBreakpoint < 0 || c.Engine.ProgressBreakpoint >= c.Engine.AlertBreakpoint {
		return fmt.Errorf("ENGINE_PROGRESS_BREAKPOINT must be below ENGINE_ALERT_BREAKPOINT")
	}
	if c.Engine.AlertBreakpoint >= 100 {
		return fmt.Errorf("ENGINE_ALERT_BREAKPOINT must be below 100")
	}
	return nil
}
