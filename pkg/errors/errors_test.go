package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
)

func TestErrorChainLookup(t *testing.T) {
	base := SessionInvalid("abc", "404 from server")
	wrapped := fmt.Errorf("tools/list: %w", base)

	mcpErr, ok := AsMCPError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeSessionInvalid, mcpErr.Code())
	assert.True(t, IsCategory(wrapped, CategorySession))
	assert.True(t, IsConnectionFatal(wrapped))
	assert.False(t, IsConnectionFatal(Timeout("ping", time.Second)))

	_, ok = AsMCPError(stderrors.New("plain"))
	assert.False(t, ok)
	_, ok = AsMCPError(nil)
	assert.False(t, ok)
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := TransportError("streamable-http", "send", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	data, ok := err.Data().(*TransportErrorData)
	require.True(t, ok)
	assert.Equal(t, "send", data.Operation)
	assert.True(t, IsConnectionFatal(err))
}

func TestFromJSONRPCError(t *testing.T) {
	err := FromJSONRPCError(protocol.MethodCallTool, &protocol.Error{Code: protocol.MethodNotFound, Message: "unknown tool"})
	assert.Equal(t, CodeMethodNotFound, err.Code())
	assert.Equal(t, CategoryRemote, err.Category())
	assert.Equal(t, protocol.MethodCallTool, err.Context().Method)

	// A server may reuse one of our local codes; that must not make it look
	// like a local transport failure.
	err = FromJSONRPCError("ping", &protocol.Error{Code: protocol.ErrorCode(CodeTransportError), Message: "upstream down"})
	assert.Equal(t, CategoryRemote, err.Category())
	assert.False(t, IsConnectionFatal(err))

	assert.Nil(t, FromJSONRPCError("x", nil))
}

func TestToJSONRPCError(t *testing.T) {
	rpcErr := ToJSONRPCError(ElicitationBusy("prompt-1"))
	assert.Equal(t, protocol.ErrorCode(CodeElicitationBusy), rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "prompt-1")

	rpcErr = ToJSONRPCError(stderrors.New("boom"))
	assert.Equal(t, protocol.InternalError, rpcErr.Code)
	assert.Nil(t, ToJSONRPCError(nil))
}

func TestInvalidAnswer(t *testing.T) {
	err := InvalidAnswer([]FieldViolation{
		{Field: "age", Description: "must be >= 18"},
		{Field: "email", Description: "is required"},
	})
	assert.Equal(t, CategoryValidation, err.Category())
	assert.Equal(t, "answer does not match the requested schema: age: must be >= 18; email: is required", err.Error())
}

func TestMarshalJSON(t *testing.T) {
	err := CatalogRefreshError("tools", stderrors.New("timeout"))

	raw, jerr := json.Marshal(err)
	require.NoError(t, jerr)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "catalog", out["category"])
	assert.Equal(t, "timeout", out["cause"])
	assert.Equal(t, map[string]interface{}{"kind": "tools"}, out["data"])
}

func TestRegistry(t *testing.T) {
	info, ok := GetErrorCodeInfo(CodeNotConnected)
	require.True(t, ok)
	assert.Equal(t, "NotConnected", info.Name)
	assert.Equal(t, "UnknownError", GetErrorCodeName(12345))
}
