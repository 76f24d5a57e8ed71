// Package ghoutput publishes run results as GitHub Actions step outputs.
package ghoutput

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Write appends key=value lines to the GITHUB_OUTPUT file at path.
// An empty path means the process is not running under GitHub Actions and nothing is written.
func Write(path string, values map[string]string) error {
	path = strings.TrimSpace(path)
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open github output %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&sb, "%s=%s\n", key, sanitize(values[key]))
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write github output: %w", err)
	}
	return nil
}

// sanitize encodes line breaks the way GitHub expects in single-line outputs.
func sanitize(value string) string {
	value = strings.ReplaceAll(value, "%", "%25")
	value = strings.ReplaceAll(value, "\r", "%0D")
	return strings.ReplaceAll(value, "\n", "%0A")
}
