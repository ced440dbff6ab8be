package ssrf

import (
	"os"
	"strconv"
	"strings"
)

// Policy configures how strict hostname validation is for a given caller.
// Tool-server operators run net_fetch against arbitrary agent-supplied
// URLs, so the default policy blocks everything private; Policy exists so a
// deployment can widen that for a specific, trusted use (an internal docs
// mirror, a sandboxed test harness) without turning SSRF protection off
// module-wide.
type Policy struct {
	// ExtraBlockedHosts supplements the built-in blocklist with
	// deployment-specific hostnames or suffixes (matched the same way as
	// the built-in dangerousSuffixes: exact match or suffix match).
	ExtraBlockedHosts map[string]bool

	// AllowPrivateIPs disables the private/internal IP-range check. The
	// hostname blocklist (localhost, *.internal, ...) still applies.
	AllowPrivateIPs bool
}

// DefaultPolicy blocks all private/internal hosts and IP ranges.
func DefaultPolicy() Policy {
	return Policy{}
}

// PolicyFromEnv reads FORGE_NET_FETCH_* environment overrides, mirroring
// providers.RetryPolicyFromEnv's pattern of env-driven policy construction.
// FORGE_NET_FETCH_EXTRA_BLOCKED_HOSTS is a comma-separated list of
// hostnames/suffixes to add to the default blocklist.
// FORGE_NET_FETCH_ALLOW_PRIVATE_IPS, if "true", disables IP-range checks.
func PolicyFromEnv() Policy {
	p := DefaultPolicy()
	if v, ok := os.LookupEnv("FORGE_NET_FETCH_EXTRA_BLOCKED_HOSTS"); ok {
		extra := map[string]bool{}
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if part != "" {
				extra[part] = true
			}
		}
		if len(extra) > 0 {
			p.ExtraBlockedHosts = extra
		}
	}
	if v, ok := os.LookupEnv("FORGE_NET_FETCH_ALLOW_PRIVATE_IPS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.AllowPrivateIPs = b
		}
	}
	return p
}

// matchesExtraBlockedHost reports whether normalized matches one of the
// policy's extra entries, either exactly or as a dotted suffix.
func (p Policy) matchesExtraBlockedHost(normalized string) bool {
	if p.ExtraBlockedHosts[normalized] {
		return true
	}
	for entry := range p.ExtraBlockedHosts {
		if strings.HasSuffix(normalized, "."+entry) {
			return true
		}
	}
	return false
}
