package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/packetd/internal/aggregator"
	"github.com/rpggio/packetd/internal/domain/packet"
	"github.com/rpggio/packetd/internal/notify"
)

var (
	// ErrForbidden indicates an admin command from a non-admin caller.
	ErrForbidden = errors.New("forbidden")
	// ErrNoCaller indicates a command without a caller id.
	ErrNoCaller = errors.New("missing caller id")
	// ErrUnknownMethod indicates a command name the handler does not know.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidParams indicates command parameters that do not decode.
	ErrInvalidParams = errors.New("invalid params")
)

// APIError represents a command error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to command error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, ErrForbidden):
		return &APIError{Code: "FORBIDDEN", Message: "admin command", RecoveryHint: "Ask an admin to run it"}
	case errors.Is(err, ErrNoCaller):
		return &APIError{Code: "NO_CALLER", Message: "caller id is required", RecoveryHint: "Send X-User-Id"}
	case errors.Is(err, ErrUnknownMethod):
		return &APIError{Code: "UNKNOWN_METHOD", Message: err.Error(), RecoveryHint: "Call help for the command list"}
	case errors.Is(err, ErrInvalidParams), errors.Is(err, packet.ErrInvalidInput):
		return &APIError{Code: "INVALID_PARAMS", Message: err.Error()}
	case errors.Is(err, packet.ErrPacketNotFound):
		return &APIError{Code: "PACKET_NOT_FOUND", Message: "packet not found or not yours", RecoveryHint: "Check the number with packets"}
	case errors.Is(err, packet.ErrPacketEmpty):
		return &APIError{Code: "PACKET_EMPTY", Message: "packet has no messages"}
	case errors.Is(err, packet.ErrUserNotFound):
		return &APIError{Code: "USER_NOT_FOUND", Message: "user not found"}
	case errors.Is(err, notify.ErrNoSubscribers):
		return &APIError{Code: "NOT_CONNECTED", Message: "no open stream for this user", RecoveryHint: "Open the user stream and retry"}
	case errors.Is(err, notify.ErrDeliveryRejected), errors.Is(err, aggregator.ErrNotify):
		return &APIError{Code: "DELIVERY_FAILED", Message: err.Error()}
	case errors.Is(err, aggregator.ErrStore):
		return &APIError{Code: "STORE_UNAVAILABLE", Message: "packet store unavailable", RecoveryHint: "Retry later"}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
