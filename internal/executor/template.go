package executor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandURL substitutes every {name} placeholder with the component-encoded
// value of params[name], or an empty string when absent. It returns the expanded
// URL and the parameters that were not consumed by the template.
func ExpandURL(rawURL string, params domain.Params) (string, domain.Params) {
	rest := params.Clone()
	expanded := placeholderRE.ReplaceAllStringFunc(rawURL, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := params[name]
		delete(rest, name)
		if !ok {
			return ""
		}
		return encodeComponent(v.String())
	})
	return expanded, rest
}

// encodeComponent escapes s for use anywhere in a URL, so a value can never
// introduce path segments or query parameters of its own.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// AppendQuery appends params to u as a query string, joining with '&' when
// u already has one.
func AppendQuery(u string, params domain.Params) string {
	if len(params) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v.String())
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}
