package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// insecureHosts are registries that can't present a real certificate,
// like the .local convention for cluster-internal registries
var insecureHosts = regexp.MustCompile(`^(localhost|127\.0\.0\.1|\[::1\]|[^/:]+\.local)(:\d+)?$`)

const pingTimeout = 15 * time.Second

// Host is the registry part of a repository ref, up to the first slash
func Host(repo string) string {
	host, _, _ := strings.Cut(repo, "/")
	return host
}

// PingEndpoint picks the scheme for a registry host
func PingEndpoint(host string) string {
	trimmed := strings.TrimSpace(host)
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if insecureHosts.MatchString(trimmed) {
		return "http://" + trimmed
	}
	return "https://" + trimmed
}

// Ping checks that the registry is reachable and the credentials work,
// before any image bytes are moved
func Ping(ctx context.Context, host string, username string, password string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PingEndpoint(host)+"/v2/", nil)
	if err != nil {
		return err
	}
	if username != "" || password != "" {
		req.SetBasicAuth(username, password)
	}
	client := &http.Client{Timeout: pingTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s unreachable: %w", host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return errors.New("registry unauthorized (check credentials)")
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("registry %s status %d: %s", host, resp.StatusCode, strings.TrimSpace(string(body)))
}
