package redis

import "strings"

const keyNamespace = "ed"

// IdempotencyKey stores replayable responses, scoped by organizer and route.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key("rate_limit", scope)
}

// GuardKey claims one in-flight operation on a resource, e.g. a ticket refund.
func (c *Client) GuardKey(scope, id string) string {
	return key("guard", scope, id)
}

// LockKey names a process-wide lock such as the cron leader lock.
func (c *Client) LockKey(name string) string {
	return key("lock", name)
}

func key(kind string, parts ...string) string {
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
