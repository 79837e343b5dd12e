package directive

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// ParseLoose extracts key/value pairs from malformed JSON-ish text such as
// {order_id: 17, 'rush': true}. It never panics; on internal failure it
// returns the pairs collected so far.
func ParseLoose(span string) (params domain.Params) {
	params = domain.Params{}
	defer func() {
		if recover() != nil {
			return
		}
	}()

	body := strings.TrimSpace(span)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")

	for _, pair := range splitOutsideQuotes(body) {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key := unquote(k)
		if key == "" {
			continue
		}
		params[key] = Coerce(unquote(v))
	}
	return params
}

// Coerce maps a raw fallback value onto a ParamValue: fully numeric text
// becomes a number, exactly true or false a bool, anything else a string.
func Coerce(raw string) domain.ParamValue {
	switch raw {
	case "true":
		return domain.BoolParam(true)
	case "false":
		return domain.BoolParam(false)
	}
	if f, ok := parseNumber(raw); ok {
		return domain.NumberParam(f)
	}
	return domain.StringParam(raw)
}

// decimalRE accepts plain decimal notation only; strconv alone would also
// take 1_000, hex floats and Inf.
var decimalRE = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func parseNumber(raw string) (float64, bool) {
	if !decimalRE.MatchString(raw) {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// splitOutsideQuotes splits on commas that are not inside single or double quotes.
func splitOutsideQuotes(s string) []string {
	var parts []string
	var quote rune
	start := 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return strings.Trim(s, `"'`)
}
