package directive

import "strings"

// HasEndConversation reports whether text carries the closing sentinel.
func HasEndConversation(text string) bool {
	return indexFold(text, EndConversationToken) >= 0
}

// StripEndConversation removes every closing sentinel and trims the result.
func StripEndConversation(text string) string {
	for {
		i := indexFold(text, EndConversationToken)
		if i < 0 {
			return strings.TrimSpace(text)
		}
		text = text[:i] + text[i+len(EndConversationToken):]
	}
}
