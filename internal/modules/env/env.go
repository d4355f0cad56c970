package env

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

var (
	ErrNotFound         = errors.New("environment variable with key not found")
	ErrConversionFailed = errors.New("failed to convert environment variable with key to value")
)

func errNotFound(key string) error {
	return fmt.Errorf("key: %s: %w", key, ErrNotFound)
}

func errConversionFailed(key string, typeName string) error {
	return fmt.Errorf("key: %s type: %s: %w", key, typeName, ErrConversionFailed)
}

func MustGetString(key string) string {
	if val, found := os.LookupEnv(key); found {
		return val
	}

	panic(errNotFound(key))
}

func MustGetInt(key string) int {
	envVal, found := os.LookupEnv(key)
	if !found {
		panic(errNotFound(key))
	}

	val, err := strconv.Atoi(envVal)
	if err != nil {
		panic(errConversionFailed(key, "int"))
	}

	return val
}

func MustGetURL(key string) *url.URL {
	val, found := os.LookupEnv(key)
	if !found {
		panic(errNotFound(key))
	}

	u, err := url.Parse(val)
	if err != nil {
		panic(errConversionFailed(key, "url.URL"))
	}

	return u
}

func MustGetDuration(key string) time.Duration {
	val, found := os.LookupEnv(key)
	if !found {
		panic(errNotFound(key))
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		panic(errConversionFailed(key, "time.Duration"))
	}

	return d
}

func GetBool(key string, fallback bool) bool {
	val, found := os.LookupEnv(key)
	if !found {
		return fallback
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		panic(errConversionFailed(key, "bool"))
	}

	return b
}

func GetInt(key string, fallback int) int {
	val, found := os.LookupEnv(key)
	if !found {
		return fallback
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		panic(errConversionFailed(key, "int"))
	}

	return i
}
