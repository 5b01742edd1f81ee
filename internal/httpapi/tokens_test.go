package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push/test"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenTestRouter(registry *test.MockRegistry) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewTokenHandler(registry)
	router := gin.New()
	router.POST("/v1/users/:id/tokens", handler.HandleRegister)
	router.GET("/v1/users/:id/tokens", handler.HandleList)
	router.DELETE("/v1/users/:id/tokens", handler.HandleRemove)
	router.DELETE("/v1/users/:id/tokens/all", handler.HandleClear)
	return router
}

func performJSONRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestHandleRegisterToken(t *testing.T) {
	registry := test.NewMockRegistry()
	router := newTokenTestRouter(registry)

	recorder := performJSONRequest(router, http.MethodPost, "/v1/users/u1/tokens",
		gin.H{"token": "tok-abc"})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"tok-abc"}, registry.Sets["u1"])
}

// 重复注册同一 token 不产生第二个集合成员
func TestHandleRegisterTokenTwiceKeepsSingleEntry(t *testing.T) {
	registry := test.NewMockRegistry()
	router := newTokenTestRouter(registry)

	first := performJSONRequest(router, http.MethodPost, "/v1/users/u1/tokens",
		gin.H{"token": "tok-abc"})
	second := performJSONRequest(router, http.MethodPost, "/v1/users/u1/tokens",
		gin.H{"token": "tok-abc"})

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 2, registry.AddCalls)
	assert.Equal(t, []string{"tok-abc"}, registry.Sets["u1"])
}

func TestHandleRegisterTokenMissingBody(t *testing.T) {
	router := newTokenTestRouter(test.NewMockRegistry())

	recorder := performJSONRequest(router, http.MethodPost, "/v1/users/u1/tokens", gin.H{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleListTokens(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b"}
	router := newTokenTestRouter(registry)

	recorder := performJSONRequest(router, http.MethodGet, "/v1/users/u1/tokens", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response UnifiedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	data := response.Data.(map[string]interface{})
	assert.EqualValues(t, 2, data["count"])
}

func TestHandleRemoveTokens(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b"}
	router := newTokenTestRouter(registry)

	recorder := performJSONRequest(router, http.MethodDelete, "/v1/users/u1/tokens",
		gin.H{"tokens": []string{"tok-a", "tok-missing"}})

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []string{"tok-b"}, registry.Sets["u1"])
}

func TestHandleRemoveTokensRequiresNonEmptyList(t *testing.T) {
	router := newTokenTestRouter(test.NewMockRegistry())

	recorder := performJSONRequest(router, http.MethodDelete, "/v1/users/u1/tokens",
		gin.H{"tokens": []string{}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandleClearTokens(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b"}
	router := newTokenTestRouter(registry)

	recorder := performJSONRequest(router, http.MethodDelete, "/v1/users/u1/tokens/all", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, registry.Sets["u1"])
}
