// Package directive extracts action directives from model output.
//
// A directive looks like
//
//	[USE_ACTION: get_order] [PARAMETERS: {"order_id": "A-17"}]
//
// Markers are matched case-insensitively. The parameter block is the first
// '{' after [PARAMETERS: up to the first '}' after it; nested objects are not
// supported.
package directive

import (
	"encoding/json"
	"strings"

	"github.com/alexiscuevases/ondesk/internal/domain"
)

// Marker text as taught to the model.
const (
	ActionMarker         = "[USE_ACTION: "
	ParametersMarker     = "[PARAMETERS:"
	EndConversationToken = "[END_CONVERSATION]"
)

const (
	actionToken     = "[use_action:"
	parametersToken = "[parameters:"
)

// Parse returns the directive in text, or nil when there is none.
func Parse(text string) *domain.Directive {
	id, ok := findActionID(text)
	if !ok {
		return nil
	}

	d := &domain.Directive{ActionID: id, Parameters: domain.Params{}}
	if span, ok := findParamsSpan(text); ok {
		d.Parameters = parseParams(span)
	}
	return d
}

// findActionID returns the trimmed id of the first complete action marker.
func findActionID(text string) (string, bool) {
	from := 0
	for {
		i := indexFold(text[from:], actionToken)
		if i < 0 {
			return "", false
		}
		start := from + i + len(actionToken)
		end := strings.IndexByte(text[start:], ']')
		if end < 0 {
			return "", false
		}
		if id := strings.TrimSpace(text[start : start+end]); id != "" {
			return id, true
		}
		from = start
	}
}

// findParamsSpan returns "{...}" following the first [PARAMETERS: marker.
func findParamsSpan(text string) (string, bool) {
	i := indexFold(text, parametersToken)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(parametersToken):]
	open := strings.IndexByte(rest, '{')
	if open < 0 {
		return "", false
	}
	closing := strings.IndexByte(rest[open:], '}')
	if closing < 0 {
		return "", false
	}
	return rest[open : open+closing+1], true
}

func parseParams(span string) domain.Params {
	var raw map[string]any
	if err := json.Unmarshal([]byte(span), &raw); err == nil {
		params := make(domain.Params, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok && (s == "true" || s == "false") {
				params[k] = domain.BoolParam(s == "true")
				continue
			}
			params[k] = domain.ParamFromAny(v)
		}
		return params
	}
	return ParseLoose(span)
}

// StripMarkers removes action and parameter markers from text.
func StripMarkers(text string) string {
	for {
		i := indexFold(text, actionToken)
		if i < 0 {
			break
		}
		end := strings.IndexByte(text[i:], ']')
		if end < 0 {
			break
		}
		text = text[:i] + text[i+end+1:]
	}
	for {
		i := indexFold(text, parametersToken)
		if i < 0 {
			break
		}
		end := strings.IndexByte(text[i:], ']')
		if brace := strings.IndexByte(text[i:], '}'); brace >= 0 {
			if after := strings.IndexByte(text[i+brace:], ']'); after >= 0 {
				end = brace + after
			}
		}
		if end < 0 {
			break
		}
		text = text[:i] + text[i+end+1:]
	}
	return strings.TrimSpace(text)
}

// indexFold is strings.Index with ASCII case folding. It indexes the
// original string, so offsets stay valid for slicing.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
