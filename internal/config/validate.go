package config

import (
	"fmt"
	"strings"
)

// Notifier names accepted by reminder.notifier.
const (
	NotifierLog  = "log"
	NotifierNone = "none"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0 (got %s)", c.Auth.TokenTTL)
	}
	if c.Inventory.ExpiringSoonDays < 0 {
		return fmt.Errorf("inventory.expiring_soon_days must be >= 0 (got %d)", c.Inventory.ExpiringSoonDays)
	}
	if c.Reminder.Hour < 0 || c.Reminder.Hour > 23 {
		return fmt.Errorf("reminder.hour must be between 0 and 23 (got %d)", c.Reminder.Hour)
	}

	switch strings.ToLower(c.Reminder.Notifier) {
	case NotifierLog, NotifierNone:
	default:
		return fmt.Errorf("reminder.notifier must be %q or %q (got %q)", NotifierLog, NotifierNone, c.Reminder.Notifier)
	}

	if !c.Lookup.Disabled && c.Lookup.Timeout <= 0 {
		return fmt.Errorf("lookup.timeout must be > 0 (got %s)", c.Lookup.Timeout)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}

	return nil
}
