package redis

import "strings"

// Every key lives under the "sh" namespace, followed by its kind.
const keyNamespace = "sh"

const (
	kindIdempotency = "idempotency"
	kindRateLimit   = "rate_limit"
	kindCache       = "cache"
	kindLock        = "lock"
)

func namespaced(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey names the stored response for an Idempotency-Key header.
func (c *Client) IdempotencyKey(scope, id string) string {
	return namespaced(kindIdempotency, scope, id)
}

// RateLimitKey names the fixed-window counter for scope.
func (c *Client) RateLimitKey(scope string) string {
	return namespaced(kindRateLimit, scope)
}

// CacheKey names a read-through cache entry; empty parts are skipped.
func (c *Client) CacheKey(parts ...string) string {
	return namespaced(kindCache, parts...)
}

// LockKey names a distributed lock.
func (c *Client) LockKey(name string) string {
	return namespaced(kindLock, name)
}
