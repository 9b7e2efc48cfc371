// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from plain-text files in a secrets
// directory. Only the key files the CLI understands are read; anything else
// in the directory is ignored.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// knownKeys lists the secret files the pipeline uses. The filename is the
// key name and the file contents (trimmed) are the value.
var knownKeys = []string{
	"gemini-api-key",
}

// Load reads the known key files from dir. Missing files and a missing
// directory are not errors; unreadable files produce a warning on stderr but
// do not abort.
func Load(dir string) (map[string]string, error) {
	secrets := make(map[string]string, len(knownKeys))
	for _, name := range knownKeys {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			}
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}
