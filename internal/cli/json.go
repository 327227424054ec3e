package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/pkg/sshutil"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound     = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      = "CONFIG_INVALID"
	ErrCodeSSHHostKey         = "SSH_HOST_KEY"
	ErrCodeSSHConnectionFail  = "SSH_CONNECTION_FAILED"
	ErrCodeScanFailed         = "SCAN_FAILED"
	ErrCodeCollectFailed      = "COLLECT_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
	ErrCodeWeatherUnavailable = "WEATHER_UNAVAILABLE"
	ErrCodePublishFailed      = "PUBLISH_FAILED"
	ErrCodeCommandFailed      = "COMMAND_FAILED"
	ErrCodeUnknown            = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	env := JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	}
	return writeJSONEnvelope(w, env)
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	// A host key mismatch gets its own code wherever it sits in the chain.
	var mismatch *sshutil.HostKeyMismatchError
	if stderrors.As(err, &mismatch) {
		return &JSONError{
			Code:       ErrCodeSSHHostKey,
			Message:    mismatch.Error(),
			Suggestion: mismatch.Suggestion(),
			Details: map[string]interface{}{
				"host":        mismatch.Hostname,
				"known_hosts": mismatch.KnownHosts,
			},
		}
	}

	var pErr *errors.Error
	if stderrors.As(err, &pErr) {
		out := &JSONError{
			Code:       mapErrorCode(pErr.Code, pErr.Message),
			Message:    pErr.Message,
			Suggestion: pErr.Suggestion,
		}
		if pErr.Cause != nil {
			out.Details = map[string]interface{}{"cause": errors.Oneline(pErr.Cause)}
		}
		return out
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "couldn't find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrSSH:
		return ErrCodeSSHConnectionFail
	case errors.ErrScan:
		return ErrCodeScanFailed
	case errors.ErrCollect:
		return ErrCodeCollectFailed
	case errors.ErrParse:
		return ErrCodeParseFailed
	case errors.ErrWeather:
		return ErrCodeWeatherUnavailable
	case errors.ErrPublish:
		return ErrCodePublishFailed
	case errors.ErrExec:
		return ErrCodeCommandFailed
	}

	return ErrCodeUnknown
}
