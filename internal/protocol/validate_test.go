package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorysim.ai/internal/protocol"
)

func TestValidateClient_Samples(t *testing.T) {
	base, err := protocol.ValidateClient([]byte(`{"type":"HELLO","protocol_version":"1.0","role":"player","name":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeHello, base.Type)

	_, err = protocol.ValidateClient([]byte(`{"type":"INPUT","protocol_version":"1.0","direction":[0.5,0,-1]}`))
	require.NoError(t, err)

	_, err = protocol.ValidateClient([]byte(`{"type":"INPUT","protocol_version":"1.0","direction":[0,0,0],"action":"LEVEL_UP_FACILITY","target":"smelter-1"}`))
	require.NoError(t, err)

	_, err = protocol.ValidateClient([]byte(`{"type":"EVENT_BATCH_REQ","protocol_version":"1.0","req_id":"r1","since_cursor":0,"limit":50}`))
	require.NoError(t, err)
}

func TestValidateClient_Rejects(t *testing.T) {
	cases := map[string]string{
		"direction too long": `{"type":"INPUT","protocol_version":"1.0","direction":[0,0,0,0]}`,
		"direction range":    `{"type":"INPUT","protocol_version":"1.0","direction":[2,0,0]}`,
		"unknown action":     `{"type":"INPUT","protocol_version":"1.0","direction":[0,0,0],"action":"FLY"}`,
		"unknown role":       `{"type":"HELLO","protocol_version":"1.0","role":"admin"}`,
		"server type":        `{"type":"FRAME","protocol_version":"1.0"}`,
		"not json":           `{`,
	}
	for name, raw := range cases {
		_, err := protocol.ValidateClient([]byte(raw))
		assert.Error(t, err, name)
	}
}
