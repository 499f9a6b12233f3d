package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripRequest(t *testing.T) {
	e, err := NewRequest(NewIntID(1), "tools/list", map[string]string{"cursor": "abc"})
	require.NoError(t, err)

	data, err := Serialize(e)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, KindRequest, parsed.Kind)
	assert.Equal(t, "tools/list", parsed.Request.Method)
	n, ok := parsed.Request.ID.Int()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestRoundTripStringID(t *testing.T) {
	e, err := NewRequest(NewStringID("req-7"), "ping", nil)
	require.NoError(t, err)

	data, err := Serialize(e)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed.Request.ID.IsString())
	assert.Equal(t, "req-7", parsed.Request.ID.String())
}

func TestRoundTripNotification(t *testing.T) {
	e, err := NewNotification("notifications/initialized", nil)
	require.NoError(t, err)

	data, err := Serialize(e)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, KindNotification, parsed.Kind)
	assert.Equal(t, "notifications/initialized", parsed.Notification.Method)
}

func TestRoundTripResultResponse(t *testing.T) {
	e, err := NewResultResponse(NewIntID(2), map[string]bool{"ok": true})
	require.NoError(t, err)

	data, err := Serialize(e)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, KindResponse, parsed.Kind)
	assert.Nil(t, parsed.Response.Error)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(parsed.Response.Result, &body))
	assert.True(t, body["ok"])
}

func TestRoundTripErrorResponse(t *testing.T) {
	e := NewErrorResponse(NewIntID(3), NewMethodNotFoundError("tool/list", []string{"tools/list"}))

	data, err := Serialize(e)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.NotNil(t, parsed.Response.Error)
	assert.Equal(t, CodeMethodNotFound, parsed.Response.Error.Code)
	assert.Nil(t, parsed.Response.Result)
}

func TestResponseCannotCarryBoth(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":-32000,"message":"x"}}`))
	assert.Error(t, err)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.Error(t, err)
	errObj, ok := err.(*ErrorObject)
	require.True(t, ok)
	assert.Equal(t, CodeParse, errObj.Code)
}

func TestParseNeitherMethodNorID(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"2.0"}`))
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	e, _ := NewRequest(NewIntID(5), "ping", nil)
	kind, method, id := Classify(e)
	assert.Equal(t, KindRequest, kind)
	assert.Equal(t, "ping", method)
	n, _ := id.Int()
	assert.Equal(t, int64(5), n)
}
