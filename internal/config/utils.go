package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// lookupEnv returns the trimmed value of key. Blank values count as unset.
func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// parseEnv falls back to defaultVal when key is unset or does not parse.
func parseEnv[T any](key string, defaultVal T, parse func(string) (T, error)) T {
	value, ok := lookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := parse(value)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnv(key, defaultVal string) string {
	if value, ok := lookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	return parseEnv(key, defaultVal, strconv.Atoi)
}

func getEnvAsBool(key string, defaultVal bool) bool {
	return parseEnv(key, defaultVal, strconv.ParseBool)
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	return parseEnv(key, defaultVal, func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	})
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	return parseEnv(key, defaultVal, time.ParseDuration)
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	value, ok := lookupEnv(key)
	if !ok {
		return defaults
	}
	filtered := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return defaults
	}
	return filtered
}
