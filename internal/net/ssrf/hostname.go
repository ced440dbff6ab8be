package ssrf

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// blockedHostnames contains hostnames that are always blocked.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

// dangerousSuffixes contains hostname suffixes that indicate internal/local resources.
var dangerousSuffixes = []string{
	".localhost",
	".local",
	".internal",
}

// IsBlockedHostname checks if a hostname is blocked under DefaultPolicy.
func IsBlockedHostname(hostname string) bool {
	return IsBlockedHostnameWithPolicy(hostname, DefaultPolicy())
}

// IsBlockedHostnameWithPolicy checks if a hostname is blocked due to SSRF
// protection rules: the built-in blocklist, the built-in dangerous
// suffixes, and policy's ExtraBlockedHosts.
func IsBlockedHostnameWithPolicy(hostname string, policy Policy) bool {
	normalized := normalizeHostname(hostname)
	if normalized == "" {
		return false
	}

	if blockedHostnames[normalized] {
		return true
	}

	for _, suffix := range dangerousSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return true
		}
	}

	return policy.matchesExtraBlockedHost(normalized)
}

// ValidatePublicHostname validates hostname against DefaultPolicy.
func ValidatePublicHostname(hostname string) error {
	return ValidateHostname(hostname, DefaultPolicy())
}

// ValidateHostname validates that a hostname is safe for external requests
// under policy: not on the blocklist and, unless policy.AllowPrivateIPs is
// set, not resolving to a private/internal IP address.
func ValidateHostname(hostname string, policy Policy) error {
	normalized := normalizeHostname(hostname)
	if normalized == "" {
		return errors.New("invalid hostname: empty after normalization")
	}

	if IsBlockedHostnameWithPolicy(normalized, policy) {
		return NewSSRFBlockedError(fmt.Sprintf("blocked hostname: %s", hostname))
	}

	if policy.AllowPrivateIPs {
		return nil
	}

	if IsPrivateIPAddress(normalized) {
		return NewSSRFBlockedError("blocked: private/internal IP address")
	}

	ips, err := net.LookupIP(normalized)
	if err != nil {
		return fmt.Errorf("unable to resolve hostname: %s: %w", hostname, err)
	}

	if len(ips) == 0 {
		return fmt.Errorf("unable to resolve hostname: %s", hostname)
	}

	for _, ip := range ips {
		if IsPrivateIPAddress(ip.String()) {
			return NewSSRFBlockedError("blocked: resolves to private/internal IP address")
		}
	}

	return nil
}
