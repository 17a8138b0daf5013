package http

import "net/url"

// ValidWebhookURL accepts only absolute http/https URLs with a host.
func ValidWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
