package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineMode_DefaultValue(t *testing.T) {
	oldMode := machineMode
	defer func() { machineMode = oldMode }()

	machineMode = false
	assert.False(t, MachineMode())

	machineMode = true
	assert.True(t, MachineMode())
}

func TestWriteJSONSuccess_BasicData(t *testing.T) {
	var buf bytes.Buffer

	err := WriteJSONSuccess(&buf, map[string]string{"key": "value"})
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.True(t, env.Success)
	assert.Nil(t, env.Error)
	dataMap, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", dataMap["key"])
}

func TestWriteJSONSuccess_NilData(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSONSuccess(&buf, nil))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Nil(t, env.Data)
	assert.Nil(t, env.Error)
	assert.NotContains(t, buf.String(), `"data"`)
}

func TestWriteJSONError_AllFields(t *testing.T) {
	var buf bytes.Buffer

	details := map[string]string{"host": "192.168.1.40"}
	err := WriteJSONError(&buf, ErrCodeSSHConnectionFail, "Connection timed out", "Check network connectivity", details)
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeSSHConnectionFail, env.Error.Code)
	assert.Equal(t, "Connection timed out", env.Error.Message)
	assert.Equal(t, "Check network connectivity", env.Error.Suggestion)

	detailsMap, ok := env.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "192.168.1.40", detailsMap["host"])
}

func TestWriteJSONFromError_GenericError(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteJSONFromError(&buf, fmt.Errorf("something went wrong")))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeUnknown, env.Error.Code)
	assert.Equal(t, "something went wrong", env.Error.Message)
}

func TestWriteJSONFromError_StructuredErrorWithCause(t *testing.T) {
	var buf bytes.Buffer

	cause := fmt.Errorf("dial tcp 10.0.0.9:22: connect: connection refused")
	pErr := errors.WrapWithCode(cause, errors.ErrSSH, "Can't connect to 10.0.0.9", "Is sshd running?")
	require.NoError(t, WriteJSONFromError(&buf, pErr))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeSSHConnectionFail, env.Error.Code)
	assert.Equal(t, "Can't connect to 10.0.0.9", env.Error.Message)
	assert.Equal(t, "Is sshd running?", env.Error.Suggestion)

	details, ok := env.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, cause.Error(), details["cause"])
}

func TestWriteJSONFromError_WrappedStructuredError(t *testing.T) {
	inner := errors.New(errors.ErrParse, "Script printed nothing", "")
	result := ErrorToJSON(fmt.Errorf("collect: %w", inner))

	require.NotNil(t, result)
	assert.Equal(t, ErrCodeParseFailed, result.Code)
	assert.Equal(t, "Script printed nothing", result.Message)
}

func TestErrorToJSON_NilReturnsNil(t *testing.T) {
	assert.Nil(t, ErrorToJSON(nil))
}

func TestErrorToJSON_AllInternalErrorCodes(t *testing.T) {
	tests := []struct {
		internalCode string
		message      string
		wantCode     string
	}{
		{errors.ErrConfig, "Specified config file not found: x.yaml", ErrCodeConfigNotFound},
		{errors.ErrConfig, "Couldn't find your home directory", ErrCodeConfigNotFound},
		{errors.ErrConfig, "scan.port 0 is out of range", ErrCodeConfigInvalid},
		{errors.ErrSSH, "SSH handshake failed", ErrCodeSSHConnectionFail},
		{errors.ErrScan, "2 malformed scan target(s)", ErrCodeScanFailed},
		{errors.ErrCollect, "Uploading script failed", ErrCodeCollectFailed},
		{errors.ErrParse, "Temperature \"warm\" is not an integer", ErrCodeParseFailed},
		{errors.ErrWeather, "NWS hourly forecast failed", ErrCodeWeatherUnavailable},
		{errors.ErrPublish, "Can't connect to MQTT broker", ErrCodePublishFailed},
		{errors.ErrExec, "Command didn't finish in time", ErrCodeCommandFailed},
		{"SOMETHING_ELSE", "whatever", ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.message, func(t *testing.T) {
			result := ErrorToJSON(errors.New(tt.internalCode, tt.message, "some suggestion"))

			require.NotNil(t, result)
			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.message, result.Message)
			assert.Equal(t, "some suggestion", result.Suggestion)
			assert.Nil(t, result.Details)
		})
	}
}

func TestErrorToJSON_HostKeyMismatch(t *testing.T) {
	mismatch := &sshutil.HostKeyMismatchError{
		Hostname:     "192.168.1.40",
		ReceivedType: "ssh-ed25519",
		KnownHosts:   "/home/pi/.ssh/known_hosts",
	}
	err := errors.WrapWithCode(mismatch, errors.ErrSSH, "SSH handshake with 192.168.1.40 failed", "")

	result := ErrorToJSON(err)
	require.NotNil(t, result)
	assert.Equal(t, ErrCodeSSHHostKey, result.Code)
	assert.Equal(t, mismatch.Suggestion(), result.Suggestion)

	details, ok := result.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "192.168.1.40", details["host"])
	assert.Equal(t, "/home/pi/.ssh/known_hosts", details["known_hosts"])
}
