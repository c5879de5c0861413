package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DeepLinkPrefix starts the text a table QR code pre-fills
const DeepLinkPrefix = "START|"

var ErrInvalidDeepLink = errors.New("deep link has no restaurant")

// DeepLink is the decoded START|R=<restaurant>|T=<table> payload
type DeepLink struct {
	RestaurantID string `mapstructure:"R"`
	TableNumber  string `mapstructure:"T"`
}

// IsDeepLink reports whether text is a QR entry
func IsDeepLink(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), DeepLinkPrefix)
}

// ParseDeepLink decodes the key=value parts of a QR entry
func ParseDeepLink(text string) (DeepLink, error) {
	var link DeepLink

	fields := map[string]interface{}{}
	payload := strings.TrimPrefix(strings.TrimSpace(text), DeepLinkPrefix)
	for _, part := range strings.Split(payload, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &link,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return link, err
	}
	if err := decoder.Decode(fields); err != nil {
		return link, fmt.Errorf("failed to decode deep link: %w", err)
	}

	if link.RestaurantID == "" {
		return link, ErrInvalidDeepLink
	}
	return link, nil
}

// Normalize maps a reply to the action token of the last rendered screen.
// Exact keys win, then numeric forms like "01", " 2 " or "3."; anything
// else is passed through trimmed. Deep links are never rewritten.
func Normalize(text string, menuOptions map[string]string) string {
	trimmed := strings.TrimSpace(text)
	if IsDeepLink(trimmed) || len(menuOptions) == 0 {
		return trimmed
	}

	if action, ok := menuOptions[strings.ToLower(trimmed)]; ok {
		return action
	}

	numeric := strings.TrimSpace(strings.TrimRight(trimmed, ".)"))
	if n, err := strconv.Atoi(numeric); err == nil {
		if action, ok := menuOptions[strconv.Itoa(n)]; ok {
			return action
		}
	}

	return trimmed
}
