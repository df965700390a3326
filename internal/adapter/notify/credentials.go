package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"taskpilot/internal/domain"
)

// loadToken resolves a channel credential. The environment variable wins;
// otherwise the per-channel JSON file in the credentials directory is read
// and the named field extracted. A missing file maps to ErrNotFound so
// callers can treat the channel as simply not configured.
func loadToken(dir, file, field, envVar string) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.NewSubSystemError("notify", "loadToken", domain.ErrNotFound, file)
		}
		return "", fmt.Errorf("read credentials %s: %w", file, err)
	}

	var creds map[string]string
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parse credentials %s: %w", file, err)
	}
	token := creds[field]
	if token == "" {
		return "", fmt.Errorf("credentials %s: missing %q", file, field)
	}
	return token, nil
}
