package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{
			"type": "work",
			"source": "oclc",
			"attempts": 2,
			"data": {
				"title": "Moby Dick",
				"identifiers": [{"type": "isbn", "value": "9780140449136"}]
			}
		}`),
	}

	require.NoError(t, msg.ParseEnvelope())
	assert.Equal(t, "work", msg.GetRecordType())
	assert.Equal(t, "oclc", msg.GetSource())
	assert.Equal(t, 2, msg.GetAttempts())

	identifiers := msg.Envelope.Identifiers()
	require.Len(t, identifiers, 1)
	assert.Equal(t, "9780140449136", identifiers[0].Value)
}

func TestParseEnvelopeInvalidJSON(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{not json`)}
	assert.Error(t, msg.ParseEnvelope())
	assert.Nil(t, msg.Envelope)
}

func TestRecordTypeFallsBackToHeaders(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"record_type": "instance", "source": "hathi"},
	}
	assert.Equal(t, "instance", msg.GetRecordType())
	assert.Equal(t, "hathi", msg.GetSource())
	assert.Equal(t, 0, msg.GetAttempts())
}

func TestParseRoutesReclusterAheadOfEnvelope(t *testing.T) {
	// The recluster payload also unmarshals as a record envelope, so Parse
	// must populate Recluster, not Envelope.
	msg := &IncomingMessage{
		Headers: map[string]string{"type": "recluster"},
		Value:   []byte(`{"type": "recluster", "identifier": "work-1"}`),
	}

	require.NoError(t, msg.Parse())
	require.NotNil(t, msg.Recluster)
	assert.Equal(t, "work-1", msg.Recluster.Identifier)
	assert.Nil(t, msg.Envelope)
}

func TestParseRoutesRecordEnvelope(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"type": "work", "data": {"title": "Moby Dick"}}`),
	}

	require.NoError(t, msg.Parse())
	require.NotNil(t, msg.Envelope)
	assert.Equal(t, "work", msg.Envelope.Type)
	assert.Nil(t, msg.Recluster)
}

func TestParseInvalidPayload(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{not json`)}
	assert.Error(t, msg.Parse())
	assert.Nil(t, msg.Envelope)
	assert.Nil(t, msg.Recluster)
}

func TestIsReclusterByHeader(t *testing.T) {
	msg := &IncomingMessage{
		Headers: map[string]string{"type": "recluster"},
		Value:   []byte(`{}`),
	}
	assert.True(t, msg.IsRecluster())
}

func TestIsReclusterByPayload(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"type": "recluster", "identifier": "work-1"}`),
	}
	assert.True(t, msg.IsRecluster())

	rec, err := msg.ParseRecluster()
	require.NoError(t, err)
	assert.Equal(t, "work-1", rec.Identifier)
}

func TestIsReclusterRejectsOtherMessages(t *testing.T) {
	msg := &IncomingMessage{
		Value: []byte(`{"type": "work", "data": {"title": "Moby Dick"}}`),
	}
	assert.False(t, msg.IsRecluster())

	// Identifier-less control messages are not recluster requests.
	msg = &IncomingMessage{Value: []byte(`{"type": "recluster"}`)}
	assert.False(t, msg.IsRecluster())
}
