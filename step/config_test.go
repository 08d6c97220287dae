package step

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitAcceptsBareTopicOrStructuredForm(t *testing.T) {
	var bare Emit
	require.NoError(t, json.Unmarshal([]byte(`"order.created"`), &bare))
	require.Equal(t, Emit{Topic: "order.created"}, bare)

	var structured Emit
	require.NoError(t, json.Unmarshal([]byte(`{"topic":"order.created","label":"created","conditional":true}`), &structured))
	require.Equal(t, Emit{Topic: "order.created", Label: "created", Conditional: true}, structured)
}

func TestConfigAccessorsDispatchByKind(t *testing.T) {
	noop := Config{Kind: KindNoop, Noop: &NoopConfig{
		Name:              "gateway",
		VirtualEmits:      []string{"a"},
		VirtualSubscribes: []string{"b"},
	}}
	require.Equal(t, "gateway", noop.Name())
	require.Equal(t, []Emit{{Topic: "a"}}, noop.Emits())
	require.Equal(t, []string{"b"}, noop.Subscribes())
	require.False(t, noop.Executable())

	cron := Config{Kind: KindCron, Cron: &CronConfig{Name: "nightly", CronExpression: "0 0 * * *"}}
	require.True(t, cron.Executable())
	require.Nil(t, cron.Subscribes())
}
