package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins a namespace and an id, e.g. "daily:2025-01-01".
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams joins a namespace and any number of parts, e.g. "scheduler:reset:2025-01-01".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, prefix)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}
