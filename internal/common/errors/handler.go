package errors

import "time"

// UserFacing is what top-level consumers (dashboard, narration) are allowed
// to show. Raw internal errors must never reach an end user untranslated.
type UserFacing struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Available bool      `json:"available"`
	Timestamp time.Time `json:"timestamp"`
}

var userMessages = map[ErrorCode]string{
	ErrCodeTransportFailed:     "The analytics service is temporarily unreachable.",
	ErrCodeRemoteError:         "The analytics service rejected the request.",
	ErrCodeSessionCreateFailed: "Could not start an analytics session.",
	ErrCodeSubmitFailed:        "The question could not be submitted.",
	ErrCodeEmptyResponse:       "The analytics service returned no data.",
	ErrCodeQueryFailed:         "The analytics service could not answer this question.",
	ErrCodePollTimeout:         "The analytics service took too long to answer.",
	ErrCodeNoFallback:          "No demo data is available for this view.",
}

// Translate converts any pipeline error into its user-facing rendering.
// Unknown errors collapse into a generic "feature unavailable" state.
func Translate(err error) UserFacing {
	code := CodeOf(err)
	msg, ok := userMessages[code]
	if !ok {
		msg = "This feature is currently unavailable."
	}
	return UserFacing{
		Code:      string(code),
		Message:   msg,
		Available: false,
		Timestamp: time.Now().UTC(),
	}
}
