package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSettingsNotFound   = errors.New("notification settings not found")
	ErrSettingsConflict   = errors.New("notification settings already exist for owner")
	ErrUnsupportedChannel = errors.New("unsupported channel")
	ErrInvalidOwnerType   = errors.New("invalid owner type")
	ErrInvalidTransition  = errors.New("invalid delivery status transition")
	ErrLogEntryNotFound   = errors.New("delivery log entry not found")
	ErrForbidden          = errors.New("not allowed to access these settings")
)

type ErrorCategory string

const (
	CategoryConnectivity         ErrorCategory = "connectivity_error"
	CategoryAuth                 ErrorCategory = "auth_error"
	CategoryInvalidRecipient     ErrorCategory = "invalid_recipient_error"
	CategoryProviderServer       ErrorCategory = "provider_server_error"
	CategoryUnknown              ErrorCategory = "unknown_error"
	CategoryConfigurationMissing ErrorCategory = "configuration_missing"
	CategoryDecryption           ErrorCategory = "decryption_error"
)

var categoryMessages = map[ErrorCategory]string{
	CategoryConnectivity:         "Could not reach the provider. Check the host, port and network access.",
	CategoryAuth:                 "The provider rejected the credentials. Check the configured username, token or secret.",
	CategoryInvalidRecipient:     "The recipient address was rejected by the provider.",
	CategoryProviderServer:       "The provider is unavailable or rate limiting requests. Try again later.",
	CategoryConfigurationMissing: "The channel is not configured for this owner.",
	CategoryDecryption:           "A stored credential could not be decrypted. Re-enter it in the settings.",
	CategoryUnknown:              "The notification could not be delivered.",
}

// UserMessage is the human readable text shown by the API for a category.
func (c ErrorCategory) UserMessage() string {
	if m, ok := categoryMessages[c]; ok {
		return m
	}
	return categoryMessages[CategoryUnknown]
}

// ProviderError is the only error shape a channel provider hands back to callers.
type ProviderError struct {
	Channel  Channel
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Channel, e.Category)
	}
	return fmt.Sprintf("%s: %s: %s", e.Channel, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func NewProviderError(ch Channel, category ErrorCategory, err error) *ProviderError {
	pe := &ProviderError{Channel: ch, Category: category, Err: err}
	if err != nil {
		pe.Message = err.Error()
	}
	return pe
}

// CategoryOf returns the category carried by err, or CategoryUnknown.
func CategoryOf(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryUnknown
}
