package engine

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var linkRegex = regexp.MustCompile(`(?i)(?:[a-z][a-z0-9+.\-]*://|www\.)[\p{L}\p{N}_\-.~:/?#\[\]@!$&'()*+,;=%]+`)

// ExtractLinks finds scheme:// and www. prefixed tokens.
func ExtractLinks(text string) []string {
	if text == "" {
		return nil
	}
	return linkRegex.FindAllString(text, -1)
}

// Hostname lower-cases the link and strips scheme, credentials, path and port.
// Internationalized names are returned in their ASCII form.
func Hostname(link string) string {
	host := strings.ToLower(link)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	return asciiHost(host)
}

func asciiHost(host string) string {
	if ascii, err := idna.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

func domainListed(host string, domains []string) bool {
	for _, d := range domains {
		if d == "" {
			continue
		}
		if host == asciiHost(strings.ToLower(strings.TrimSpace(d))) {
			return true
		}
	}
	return false
}
