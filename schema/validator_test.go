package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	v := New()
	raw := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	require.NoError(t, v.Validate(raw))
}

func TestValidateRejectsMalformedSchema(t *testing.T) {
	v := New()
	raw := json.RawMessage(`{"type":"not-a-real-type"}`)
	require.Error(t, v.Validate(raw))
}

func TestValidatePayloadAcceptsMatchingDocument(t *testing.T) {
	v := New()
	sch := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	payload := json.RawMessage(`{"name":"ada"}`)
	require.NoError(t, v.ValidatePayload(sch, payload))
}

func TestValidatePayloadRejectsMismatchedDocument(t *testing.T) {
	v := New()
	sch := json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
	payload := json.RawMessage(`{}`)
	require.Error(t, v.ValidatePayload(sch, payload))
}

func TestValidatePayloadSkipsEmptySchema(t *testing.T) {
	v := New()
	require.NoError(t, v.ValidatePayload(nil, json.RawMessage(`{"anything":true}`)))
}
