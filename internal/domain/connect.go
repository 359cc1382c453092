package domain

import "time"

// OAuth connect states as seen by the client polling for completion.
const (
	ConnectStatusPending   = "pending"
	ConnectStatusConnected = "connected"
	ConnectStatusError     = "error"
	ConnectStatusExpired   = "expired"
)

// ConnectErrorClass buckets connect failures so each gets its own remediation.
type ConnectErrorClass string

const (
	ErrorPopupBlocked ConnectErrorClass = "popup_blocked"
	ErrorNetwork      ConnectErrorClass = "network_error"
	ErrorAuthConfig   ConnectErrorClass = "auth_config_error"
	ErrorTimeout      ConnectErrorClass = "timeout_error"
	ErrorUnknown      ConnectErrorClass = "unknown"
)

var remediations = map[ConnectErrorClass]string{
	ErrorPopupBlocked: "Allow pop-ups for EasyFlip and try again, or open the link manually.",
	ErrorNetwork:      "Check your internet connection and try again.",
	ErrorAuthConfig:   "eBay integration is not configured correctly. Please contact support.",
	ErrorTimeout:      "eBay did not respond in time. Finish signing in, then check the connection status.",
	ErrorUnknown:      "Something went wrong while connecting to eBay. Please try again.",
}

// Remediation is the user-facing next step for a failure class.
func (c ConnectErrorClass) Remediation() string {
	if m, ok := remediations[c]; ok {
		return m
	}
	return remediations[ErrorUnknown]
}

// ConnectStart is returned when an authorization flow begins.
type ConnectStart struct {
	AuthURL   string    `json:"auth_url"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConnectStatus is the single completion signal for a flow.
type ConnectStatus struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
