// Package privacy scrubs URLs and credentials from messages before they
// leave the machine in error reports.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// Any scheme: notification URLs carry tokens in the userinfo or host part.
	urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// ScrubMessage replaces every URL in message with an anonymized form.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
}

// AnonymizeURL keeps the scheme and a host category and hashes the rest, so
// equal URLs still group together in reports.
func AnonymizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	parts := []string{parsed.Scheme}
	if host := parsed.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := parsed.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		parts = append(parts, anonymizePath(parsed.Path))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s://%s-%x", parsed.Scheme, categorizeHost(parsed.Hostname()), hash[:6])
}

// RedactURL strips credentials, query and path, leaving scheme://host:port
// for log lines.
func RedactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "[redacted]"
	}
	return parsed.Scheme + "://" + parsed.Host
}

func categorizeHost(host string) string {
	switch {
	case host == "":
		return "no-host"
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case isIPAddress(host):
		return "public-ip"
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return "domain-" + parts[len(parts)-1]
	}
	return "unknown-host"
}

func anonymizePath(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "root"
	}

	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if isNumeric(segment) {
			out = append(out, "numeric")
			continue
		}
		hash := sha256.Sum256([]byte(segment))
		out = append(out, fmt.Sprintf("seg-%x", hash[:4]))
	}
	return strings.Join(out, "/")
}

func isPrivateIP(host string) bool {
	privateRanges := []string{
		"10.", "172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.", "172.22.", "172.23.",
		"172.24.", "172.25.", "172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"192.168.", "169.254.",
		"fc00:", "fd00:", "fe80:",
	}
	host = strings.ToLower(host)
	for _, prefix := range privateRanges {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}

func isIPAddress(host string) bool {
	return ipv4Pattern.MatchString(host) || strings.Contains(host, ":")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
