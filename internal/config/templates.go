package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# pricewatch configuration

[scraper]
# Attempts per retailer before a check is reported as failed
max_retries = 3
# Page load timeout per attempt
request_timeout = "30s"
# Wait after the page loads before reading prices
settle_delay = "2s"
# Pause after every successful retailer check
delay_between_requests = "2s"
# Retry n waits retry_base_delay * n
retry_base_delay = "1s"
# Browser user agent (empty uses the built-in default)
user_agent = ""
# Log matched selectors and raw price text
debug = false

[history]
# Keep a per-retailer history of price changes in the data file
enabled = true
# Oldest entries are dropped beyond this many
max_entries = 100

[storage]
# Defaults to products.json next to this file
data_file = ""
# Record every successful check in an SQLite archive
archive_enabled = true
# Defaults to observations.db next to this file
archive_path = ""

[notifications]
# Send alerts beyond the log when a product reaches its target
enabled = false

[notifications.webhook]
enabled = false
url = ""
timeout = "10s"

[notifications.shoutrrr]
enabled = false
# Service URLs, e.g. "ntfy://ntfy.sh/my-topic" or "telegram://token@telegram?chats=@channel"
urls = []
timeout = "10s"

[logging]
# debug, info, warn, error
level = "info"
# Write a rotating log file in addition to the console
file = true
# Defaults to logs/pricewatch.log next to this file
file_path = ""
`

// createTemplateConfig writes the commented default configuration to path.
func createTemplateConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
