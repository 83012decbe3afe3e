package utils

import (
	"os"
	"strconv"
)

// GetEnv returns the value of the named environment variable, or def if it is unset or empty.
func GetEnv(name string, def string) string {
	if val := os.Getenv(name); len(val) > 0 {
		return val
	}

	return def
}

// GetEnvInt is like GetEnv for integer variables. A value that does not parse yields def.
func GetEnvInt(name string, def int) int {
	val, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return def
	}

	return val
}
