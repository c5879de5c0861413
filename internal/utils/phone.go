package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Accepts 0XXXXXXXXX (local) or 255XXXXXXXXX (international)
var mobileMoneyPattern = regexp.MustCompile(`^(0\d{9}|255\d{9})$`)

// NormalizeMobileNumber validates a mobile money number and returns it in
// international form. Local numbers get their leading 0 replaced with 255.
func NormalizeMobileNumber(input string) (string, error) {
	phone := strings.TrimSpace(input)
	if !mobileMoneyPattern.MatchString(phone) {
		return "", fmt.Errorf("invalid mobile number %q", input)
	}
	if strings.HasPrefix(phone, "0") {
		return "255" + phone[1:], nil
	}
	return phone, nil
}

// CustomerPhone extracts the bare phone number from a conversation id
// such as "whatsapp:+255712345678" or "255712345678@s.whatsapp.net".
func CustomerPhone(conversationID string) string {
	phone := strings.TrimPrefix(conversationID, "whatsapp:")
	if at := strings.Index(phone, "@"); at >= 0 {
		phone = phone[:at]
	}
	return strings.TrimPrefix(phone, "+")
}

// IsGroupOrBroadcast reports whether a conversation id is a group chat or
// a status broadcast, which the bot never answers.
func IsGroupOrBroadcast(conversationID string) bool {
	return strings.HasSuffix(conversationID, "@g.us") || conversationID == "status@broadcast"
}
