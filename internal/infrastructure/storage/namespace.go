package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// Namespace derives the storage scope from the backend base URL: scheme and
// host, so sessions for different origins never share keys.
func Namespace(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("storage namespace: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("storage namespace: %q is not an absolute URL", baseURL)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}
