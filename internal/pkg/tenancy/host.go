package tenancy

import (
	"net"
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

var reservedSlugs = map[string]struct{}{
	"www":     {},
	"api":     {},
	"app":     {},
	"admin":   {},
	"mail":    {},
	"billing": {},
}

var validSlug = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// IsReserved reports whether slug is kept for platform hosts.
func IsReserved(slug string) bool {
	_, ok := reservedSlugs[strings.ToLower(slug)]
	return ok
}

// IsValidSlug reports whether slug is a usable DNS label that is not reserved.
func IsValidSlug(slug string) bool {
	return validSlug.MatchString(slug) && !IsReserved(slug)
}

// Slugify turns a company name into a DNS label: transliterated lowercase
// ascii letters and digits joined by single dashes, at most 63 characters.
func Slugify(name string) string {
	s := slug.Make(name)
	// slug keeps underscores, DNS labels do not
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	s = strings.Join(parts, "-")
	if len(s) > 63 {
		s = strings.TrimRight(s[:63], "-")
	}
	return s
}

// SlugFromHost extracts the tenant slug from host. It returns "" for the apex
// domain, reserved subdomains, nested subdomains and foreign hosts.
func SlugFromHost(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	baseDomain = strings.ToLower(strings.TrimSpace(baseDomain))
	if host == "" || baseDomain == "" || host == baseDomain {
		return ""
	}

	slug, ok := strings.CutSuffix(host, "."+baseDomain)
	if !ok || slug == "" || strings.Contains(slug, ".") {
		return ""
	}
	if !IsValidSlug(slug) {
		return ""
	}
	return slug
}

// Domain returns the portal host of slug.
func Domain(slug, baseDomain string) string {
	return slug + "." + baseDomain
}
