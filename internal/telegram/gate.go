package telegram

import (
	"strconv"
	"strings"
)

// Authorize reports whether chatID may record transactions. An empty
// allow-list means open mode: every chat is accepted.
func Authorize(chatID int64, allowedChatID string) bool {
	allowed := strings.TrimSpace(allowedChatID)
	if allowed == "" {
		return true
	}
	return strconv.FormatInt(chatID, 10) == allowed
}

// IsMyID reports whether the message asks for the chat id. The reply
// bypasses the allow-list so an operator can discover the id to bind.
func IsMyID(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return normalized == "/myid" || normalized == "myid"
}
