package config

import (
	"os"
	"strconv"
)

// GetenvStr returns the raw value of key.
func GetenvStr(key string) string {
	return os.Getenv(key)
}

// GetenvInt parses key as an int. It returns nil when the variable is unset.
func GetenvInt(key string) (*int, error) {
	s := GetenvStr(key)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetenvBool parses key as a bool. It returns nil when the variable is unset.
func GetenvBool(key string) (*bool, error) {
	s := GetenvStr(key)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v, err := GetenvInt(key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return defaultVal, nil
	}
	return *v, nil
}
