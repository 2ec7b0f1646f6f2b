package config

import (
	"os"
	"strconv"
	"strings"
)

// LoadDotEnv applies KEY=VALUE pairs from the given .env-style files to
// the process environment. Missing files are skipped silently and a key
// already present in the real environment always wins over a file value.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		applyEnvLines(strings.Split(string(raw), "\n"))
	}
	return nil
}

func applyEnvLines(lines []string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, cleanEnvValue(value))
	}
}

// cleanEnvValue unwraps quoted values and drops trailing inline comments
// from bare ones. Double quotes get full escape handling, single quotes
// are taken literally.
func cleanEnvValue(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) >= 2 {
		last := len(value) - 1
		switch {
		case value[0] == '"' && value[last] == '"':
			if unquoted, err := strconv.Unquote(value); err == nil {
				return unquoted
			}
			return value[1:last]
		case value[0] == '\'' && value[last] == '\'':
			return value[1:last]
		}
	}
	if index := strings.Index(value, " #"); index >= 0 {
		value = strings.TrimSpace(value[:index])
	}
	return value
}
