package platform

import (
	"bytes"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nlowe/hamqtt"
)

// fragment wraps an entity's discovery contribution in an object and decodes it.
func fragment(t *testing.T, entity hamqtt.Entity, deviceID string) map[string]any {
	t.Helper()

	var b bytes.Buffer
	e := jsontext.NewEncoder(&b)

	require.NoError(t, e.WriteToken(jsontext.BeginObject))
	require.NoError(t, entity.ContributeDiscovery(e, deviceID))
	require.NoError(t, e.WriteToken(jsontext.EndObject))

	var result map[string]any
	require.NoError(t, json.Unmarshal(b.Bytes(), &result))

	return result
}

// discard encodes into a buffer nobody reads, for contributions whose output is not under test.
func discard() *jsontext.Encoder {
	e := jsontext.NewEncoder(&bytes.Buffer{})
	_ = e.WriteToken(jsontext.BeginObject)

	return e
}
