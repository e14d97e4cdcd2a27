package service

import (
	"net/url"
	"strings"
)

// redirectBase picks the base URL for gateway redirects. The request origin
// is used only when it is on the allow-list; anything else gets the
// canonical site URL so a forged Origin cannot redirect shoppers away.
type redirectBase struct {
	canonical string
	allowed   map[string]struct{}
}

func newRedirectBase(siteURL string, allowedOrigins []string) redirectBase {
	rb := redirectBase{
		canonical: strings.TrimRight(siteURL, "/"),
		allowed:   make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		if n, ok := normalizeOrigin(o); ok {
			rb.allowed[n] = struct{}{}
		}
	}
	return rb
}

func (rb redirectBase) resolve(origin string) string {
	n, ok := normalizeOrigin(origin)
	if !ok {
		return rb.canonical
	}
	if _, allowed := rb.allowed[n]; allowed {
		return n
	}
	return rb.canonical
}

// normalizeOrigin reduces an origin to scheme://host[:port], lower-cased.
func normalizeOrigin(origin string) (string, bool) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", false
	}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// absoluteURL resolves a catalog image path against base. Absolute http(s)
// URLs are returned unchanged.
func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	return base + "/" + strings.TrimLeft(ref, "/")
}
