package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIDReturnsUniqueValues(t *testing.T) {
	a := NewID()
	b := NewID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestContextWithStepCopiesWithoutMutatingReceiver(t *testing.T) {
	base := Context{TraceID: "t1", Flows: []string{"checkout"}}
	derived := base.WithStep("charge-card")

	require.Equal(t, "charge-card", derived.Step)
	require.Empty(t, base.Step)
	require.Equal(t, base.TraceID, derived.TraceID)
}

func TestFieldsKeyValsFlattensToPairs(t *testing.T) {
	kv := Fields{"a": 1}.KeyVals()
	require.Len(t, kv, 2)
	require.Equal(t, "a", kv[0])
	require.Equal(t, 1, kv[1])
}
