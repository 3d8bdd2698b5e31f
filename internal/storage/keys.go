package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateKey builds {prefix}/{yyyy}/{mm}/{dd}/{uuid}.{ext} for filename.
// The date partition uses now in UTC.
func GenerateKey(prefix, filename string, now time.Time) string {
	now = now.UTC()
	name := uuid.New().String() + strings.ToLower(path.Ext(filename))
	prefix = strings.Trim(prefix, "/")

	partition := fmt.Sprintf("%04d/%02d/%02d", now.Year(), int(now.Month()), now.Day())
	if prefix == "" {
		return partition + "/" + name
	}
	return prefix + "/" + partition + "/" + name
}

func JoinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}

// KeyFromURL strips base from url. The remainder must be a non-empty key.
func KeyFromURL(base, url string) (string, error) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%q: %w", url, ErrForeignURL)
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", fmt.Errorf("%q has no object key: %w", url, ErrForeignURL)
	}
	return key, nil
}
