package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/status"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStatusStore 内存状态存储
type fakeStatusStore struct {
	statuses map[string]*status.MessageStatus
	history  map[string][]*status.MessageStatus
	err      error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		statuses: make(map[string]*status.MessageStatus),
		history:  make(map[string][]*status.MessageStatus),
	}
}

func (f *fakeStatusStore) SaveStatus(ctx context.Context, messageStatus *status.MessageStatus) error {
	if f.err != nil {
		return f.err
	}
	f.statuses[messageStatus.MessageID] = messageStatus
	return nil
}

func (f *fakeStatusStore) GetStatus(ctx context.Context, messageID string) (*status.MessageStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.statuses[messageID], nil
}

func (f *fakeStatusStore) GetStatusHistory(ctx context.Context, messageID string) ([]*status.MessageStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[messageID], nil
}

func (f *fakeStatusStore) UpdateStatus(ctx context.Context, messageID, newStatus, errorMessage string) error {
	if f.err != nil {
		return f.err
	}
	if existing, found := f.statuses[messageID]; found {
		existing.Status = newStatus
		existing.Error = errorMessage
	}
	return nil
}

func (f *fakeStatusStore) GetPendingStatuses(ctx context.Context, triggers []string) ([]*status.MessageStatus, error) {
	return nil, f.err
}

func (f *fakeStatusStore) CleanupOldStatuses(ctx context.Context, olderThan time.Duration) error {
	return f.err
}

func newStatusTestRouter(store status.StatusStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewStatusHandler(store)
	router := gin.New()
	router.GET("/v1/status/:message_id", handler.HandleGetStatus)
	return router
}

func TestHandleGetStatusReturnsStatusAndHistory(t *testing.T) {
	store := newFakeStatusStore()
	store.statuses["manual_1_ab"] = &status.MessageStatus{
		MessageID: "manual_1_ab",
		Trigger:   "manual",
		Status:    status.StatusSuccess,
	}
	store.history["manual_1_ab"] = []*status.MessageStatus{
		{MessageID: "manual_1_ab", Status: status.StatusPending},
		{MessageID: "manual_1_ab", Status: status.StatusSuccess},
	}
	router := newStatusTestRouter(store)

	recorder := performJSONRequest(router, http.MethodGet, "/v1/status/manual_1_ab", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response UnifiedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	data := response.Data.(map[string]interface{})
	current := data["status"].(map[string]interface{})
	assert.Equal(t, status.StatusSuccess, current["status"])

	history := data["history"].([]interface{})
	require.Len(t, history, 2)
	first := history[0].(map[string]interface{})
	assert.Equal(t, status.StatusPending, first["status"])
}

func TestHandleGetStatusUnknownMessage(t *testing.T) {
	router := newStatusTestRouter(newFakeStatusStore())

	recorder := performJSONRequest(router, http.MethodGet, "/v1/status/manual_404_zz", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
