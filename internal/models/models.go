package models

import (
	"encoding/json"
	"time"
)

// Admin login
type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Scrub preview
type ScrubResponse struct {
	Event       json.RawMessage `json:"event,omitempty"`
	Dropped     bool            `json:"dropped"`
	DropReason  string          `json:"dropReason,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	WouldAlert  bool            `json:"wouldAlert"`
}

// Alert cache management
type ResetCacheResponse struct {
	Cleared int `json:"cleared"`
}

// Public configuration for the browser SDK
type PublicConfigResponse struct {
	SentryDSN        string  `json:"sentryDsn,omitempty"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release,omitempty"`
	TracesSampleRate float64 `json:"tracesSampleRate"`
	Tunnel           string  `json:"tunnel,omitempty"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
