package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeListUpdated(t *testing.T) {
	payload := []byte(`{
		"event_id": "evt-1",
		"user_id": "owner-1",
		"list_id": "list-9",
		"before": [{"id": "1", "name": "Sabão"}],
		"after": [{"id": "1", "name": "Sabão"}, {"id": "2", "name": "Esponja"}]
	}`)

	event, err := DecodeListUpdated(payload)
	require.NoError(t, err)

	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "owner-1", event.UserID)
	assert.Len(t, event.Before, 1)
	assert.Len(t, event.After, 2)
}

func TestDecodeListUpdatedMissingUserID(t *testing.T) {
	_, err := DecodeListUpdated([]byte(`{"before": [], "after": []}`))
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestDecodeListUpdatedMalformedJSON(t *testing.T) {
	_, err := DecodeListUpdated([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeFeedback(t *testing.T) {
	payload := []byte(`{
		"list_owner_id": "owner-1",
		"type": "doubt",
		"text": "Qual marca?",
		"name": "João"
	}`)

	event, err := DecodeFeedback(payload)
	require.NoError(t, err)

	assert.Equal(t, "owner-1", event.ListOwnerID)
	assert.Equal(t, FeedbackDoubt, event.Type)
	assert.Equal(t, "Qual marca?", event.Text)
	assert.Equal(t, "João", event.Name)
}

func TestDecodeFeedbackValidation(t *testing.T) {
	_, err := DecodeFeedback([]byte(`{"type": "doubt", "text": "oi"}`))
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = DecodeFeedback([]byte(`{"list_owner_id": "owner-1", "type": "doubt"}`))
	assert.ErrorIs(t, err, ErrMissingFeedbackText)
}
