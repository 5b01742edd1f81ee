package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/events"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push/test"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventsTestRouter(listEnqueuer, feedbackEnqueuer *test.MockEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewEventsHandler(listEnqueuer, feedbackEnqueuer, nil)
	router := gin.New()
	router.POST("/v1/events/list-updated", handler.HandleListUpdated)
	router.POST("/v1/events/feedback", handler.HandleFeedback)
	return router
}

func TestHandleListUpdatedAccepted(t *testing.T) {
	listEnqueuer := &test.MockEnqueuer{}
	router := newEventsTestRouter(listEnqueuer, &test.MockEnqueuer{})

	recorder := performJSONRequest(router, http.MethodPost, "/v1/events/list-updated", gin.H{
		"user_id": "owner-1",
		"before":  []gin.H{},
		"after":   []gin.H{{"id": "1", "name": "Detergente"}},
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, listEnqueuer.Payloads, 1)

	// 入队的 payload 必须能按事件格式解码,且带上了生成的事件 ID
	event, err := events.DecodeListUpdated(listEnqueuer.Payloads[0])
	require.NoError(t, err)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "owner-1", event.UserID)
}

func TestHandleListUpdatedKeepsProvidedEventID(t *testing.T) {
	listEnqueuer := &test.MockEnqueuer{}
	router := newEventsTestRouter(listEnqueuer, &test.MockEnqueuer{})

	recorder := performJSONRequest(router, http.MethodPost, "/v1/events/list-updated", gin.H{
		"event_id": "evt-custom",
		"user_id":  "owner-1",
		"before":   []gin.H{},
		"after":    []gin.H{},
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var response UnifiedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	data := response.Data.(map[string]interface{})
	assert.Equal(t, "evt-custom", data["event_id"])
	assert.Equal(t, "pending", data["status"])
}

func TestHandleListUpdatedMissingUserID(t *testing.T) {
	listEnqueuer := &test.MockEnqueuer{}
	router := newEventsTestRouter(listEnqueuer, &test.MockEnqueuer{})

	recorder := performJSONRequest(router, http.MethodPost, "/v1/events/list-updated", gin.H{
		"before": []gin.H{},
		"after":  []gin.H{},
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, listEnqueuer.Payloads)
}

func TestHandleFeedbackAccepted(t *testing.T) {
	feedbackEnqueuer := &test.MockEnqueuer{}
	router := newEventsTestRouter(&test.MockEnqueuer{}, feedbackEnqueuer)

	recorder := performJSONRequest(router, http.MethodPost, "/v1/events/feedback", gin.H{
		"list_owner_id": "owner-1",
		"type":          "doubt",
		"text":          "Qual marca?",
		"name":          "João",
	})

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, feedbackEnqueuer.Payloads, 1)

	event, err := events.DecodeFeedback(feedbackEnqueuer.Payloads[0])
	require.NoError(t, err)
	assert.Equal(t, "owner-1", event.ListOwnerID)
	assert.NotEmpty(t, event.EventID)
}

func TestHandleFeedbackMissingText(t *testing.T) {
	feedbackEnqueuer := &test.MockEnqueuer{}
	router := newEventsTestRouter(&test.MockEnqueuer{}, feedbackEnqueuer)

	recorder := performJSONRequest(router, http.MethodPost, "/v1/events/feedback", gin.H{
		"list_owner_id": "owner-1",
		"type":          "suggestion",
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, feedbackEnqueuer.Payloads)
}
