package validators

import (
	"strings"

	"github.com/swapwatch/swapwatch-backend/internal/utils"
)

const (
	// MinThreshold and MaxThreshold bound the USD push-notification threshold.
	MinThreshold = 0.0
	MaxThreshold = 1_000_000.0
	// MaxExtensionHours caps a single lifetime extension.
	MaxExtensionHours = 48
	// DefaultExtensionHours is applied when an extension request carries no
	// hours field.
	DefaultExtensionHours = 24
)

type CreateRoomRequest struct {
	Code      string                   `json:"code"`
	CreatedBy string                   `json:"createdBy"`
	Config    *CreateRoomConfigRequest `json:"config"`

	// Threshold and TelegramWebhook are accepted at the top level as an
	// alias for the nested config object; the nested fields win when both
	// forms are present.
	Threshold       *float64 `json:"threshold"`
	TelegramWebhook string   `json:"telegramWebhook"`
}

// CreateRoomConfigRequest is the nested config object of a room creation
// request.
type CreateRoomConfigRequest struct {
	Threshold       *float64 `json:"threshold"`
	TelegramWebhook string   `json:"telegramWebhook"`
}

type ExtendRoomRequest struct {
	Hours *int `json:"hours"`
}

type UpdateConfigRequest struct {
	Threshold       *float64 `json:"threshold"`
	TelegramWebhook *string  `json:"telegramWebhook"`
}

type RoomValidator struct {
	*Validator
}

func NewRoomValidator() *RoomValidator {
	return &RoomValidator{Validator: NewValidator()}
}

// ValidateCreateRoomRequest normalizes and validates a room creation
// request. The code is required and lowercased; the remaining fields are
// optional. The returned request always carries the config flattened at the
// top level, whichever form the client sent.
func (rv *RoomValidator) ValidateCreateRoomRequest(reqBody *CreateRoomRequest) *CreateRoomRequest {
	rv.Check(reqBody != nil, "body", "request body is empty")
	if rv.HasErrors() {
		return nil
	}

	code := rv.ValidateRoomCode(reqBody.Code)

	threshold := reqBody.Threshold
	rawWebhook := reqBody.TelegramWebhook
	if reqBody.Config != nil {
		if reqBody.Config.Threshold != nil {
			threshold = reqBody.Config.Threshold
		}
		if reqBody.Config.TelegramWebhook != "" {
			rawWebhook = reqBody.Config.TelegramWebhook
		}
	}

	rv.validateThreshold(threshold)

	webhook := strings.TrimSpace(rawWebhook)
	if webhook != "" {
		rv.CheckError(utils.ValidateTelegramWebhookURL(webhook), "telegramWebhook", "")
	}

	if rv.HasErrors() {
		return nil
	}

	return &CreateRoomRequest{
		Code:            code,
		Threshold:       threshold,
		TelegramWebhook: webhook,
		CreatedBy:       strings.TrimSpace(reqBody.CreatedBy),
	}
}

// ValidateRoomCode checks a room code coming from a request body or a path
// parameter and returns its canonical lowercase form.
func (rv *RoomValidator) ValidateRoomCode(code string) string {
	code = strings.TrimSpace(code)
	rv.Check(code != "", "code", "room code is required")
	if code != "" {
		rv.Check(utils.IsRoomCode(code), "code", "room code can only contain letters, digits and dashes")
	}
	return strings.ToLower(code)
}

// ValidateExtendRoomRequest returns the effective extension hours. An absent
// body or hours field falls back to the default; an explicit zero or
// negative value is rejected.
func (rv *RoomValidator) ValidateExtendRoomRequest(reqBody *ExtendRoomRequest) int {
	if reqBody == nil || reqBody.Hours == nil {
		return DefaultExtensionHours
	}

	hours := *reqBody.Hours
	rv.Check(hours > 0, "hours", "hours must be greater than 0")
	rv.Check(hours <= MaxExtensionHours, "hours", "hours cannot be greater than 48")

	if rv.HasErrors() {
		return 0
	}
	return hours
}

// ValidateUpdateConfigRequest validates a config patch. An empty patch is
// valid and leaves the config untouched; a pointer to the empty string
// clears the webhook.
func (rv *RoomValidator) ValidateUpdateConfigRequest(reqBody *UpdateConfigRequest) *UpdateConfigRequest {
	rv.Check(reqBody != nil, "body", "request body is empty")
	if rv.HasErrors() {
		return nil
	}

	rv.validateThreshold(reqBody.Threshold)

	webhook := reqBody.TelegramWebhook
	if webhook != nil {
		trimmed := strings.TrimSpace(*webhook)
		if trimmed != "" {
			rv.CheckError(utils.ValidateTelegramWebhookURL(trimmed), "telegramWebhook", "")
		}
		webhook = &trimmed
	}

	if rv.HasErrors() {
		return nil
	}

	return &UpdateConfigRequest{
		Threshold:       reqBody.Threshold,
		TelegramWebhook: webhook,
	}
}

func (rv *RoomValidator) validateThreshold(threshold *float64) {
	if threshold == nil {
		return
	}
	rv.Check(*threshold >= MinThreshold, "threshold", "threshold cannot be negative")
	rv.Check(*threshold <= MaxThreshold, "threshold", "threshold cannot be greater than 1000000")
}
