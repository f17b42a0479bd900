// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package config

import (
	"fmt"
	"net/url"
)

func validateURLScheme(rawURL, fieldName string, schemes ...string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	valid := false
	for _, s := range schemes {
		if parsedURL.Scheme == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%s scheme must be one of %v, got: %q", fieldName, schemes, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

func validateStreamURL(rawURL string) error {
	return validateURLScheme(rawURL, "STREAM_URL", "ws", "wss")
}

func validateHTTPURL(rawURL, fieldName string) error {
	return validateURLScheme(rawURL, fieldName, "http", "https")
}

func validateNATSURL(rawURL string) error {
	return validateURLScheme(rawURL, "RELAY_NATS_URL", "nats", "tls", "ws", "wss")
}
