package redis

import "strings"

const (
	guardPrefix     = "guard"
	rateLimitPrefix = "rate_limit"
	counterPrefix   = "counter"
	storagePrefix   = "storage"
)

var defaultKeyspace = keyspace{root: "cs"}

// keyspace joins key parts under one root, dropping empty parts.
type keyspace struct {
	root string
}

func (k keyspace) join(parts ...string) string {
	root := k.root
	if root == "" {
		root = defaultKeyspace.root
	}
	var b strings.Builder
	b.WriteString(root)
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

// GuardKey names a once-only side-effect marker.
func (c *Client) GuardKey(scope, id string) string {
	return c.keys.join(guardPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return c.keys.join(rateLimitPrefix, scope)
}

// CounterKey names a cached shared counter.
func (c *Client) CounterKey(name string) string {
	return c.keys.join(counterPrefix, name)
}

// StorageKey names one durable storage entry. An empty namespace is skipped.
func (c *Client) StorageKey(namespace, key string) string {
	return c.keys.join(storagePrefix, namespace, key)
}
