package config

import (
	"fmt"
	"os"
)

// Template returns a commented wsocketd config with every key at its default.
func Template() string {
	return serviceTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serviceTemplate), 0o600)
}

const serviceTemplate = `node = "wsocketd"
addr = ":9200"
# empty disables the admin HTTP surface
admin_addr = ":9201"
# bearer token for POST admin routes; empty leaves them open
admin_token = ""

receive_buffer = 8192
min_read = 512
max_payload = 16777216
reject_empty = false

# "0s" disables keep-alive; timeout defaults to three times expiry
keepalive_expiry = "120s"
keepalive_timeout = "360s"

# preference order; an empty list disables compression
compression = ["zstd", "s2", "deflate"]
compression_threshold = 512
compression_level = 0

close_timeout = "5s"
dial_attempts = 5
backoff_initial = "250ms"
backoff_max = "5s"
`
