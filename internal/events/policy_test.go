package events

import (
	"strings"
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateBody(t *testing.T) {
	testCases := []struct {
		name      string
		text      string
		maxLength int
		expected  string
	}{
		{
			name:      "短文本原样返回",
			text:      "Detergente",
			maxLength: 100,
			expected:  "Detergente",
		},
		{
			name:      "恰好等于上限不截断",
			text:      strings.Repeat("a", 100),
			maxLength: 100,
			expected:  strings.Repeat("a", 100),
		},
		{
			name:      "超过上限截断并追加省略号",
			text:      strings.Repeat("a", 101),
			maxLength: 100,
			expected:  strings.Repeat("a", 100) + "...",
		},
		{
			name:      "上限为零不截断",
			text:      strings.Repeat("a", 500),
			maxLength: 0,
			expected:  strings.Repeat("a", 500),
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, TruncateBody(testCase.text, testCase.maxLength))
		})
	}
}

func TestTruncateBodyCountsRunesNotBytes(t *testing.T) {
	// 每个字符 2 字节,按字符计数时 5 个字符不触发截断
	text := "çãéíó"
	assert.Equal(t, text, TruncateBody(text, 5))

	truncated := TruncateBody(text, 3)
	assert.Equal(t, "çãé...", truncated)
}

func TestFindNewItem(t *testing.T) {
	before := []ListItem{{ID: "1", Name: "Sabão"}, {ID: "2", Name: "Esponja"}}

	t.Run("检测到新增条目", func(t *testing.T) {
		after := append(append([]ListItem{}, before...), ListItem{ID: "3", Name: "Detergente"})

		item, found := FindNewItem(before, after)
		require.True(t, found)
		assert.Equal(t, "3", item.ID)
		assert.Equal(t, "Detergente", item.Name)
	})

	t.Run("按ID而不是位置比较", func(t *testing.T) {
		// 新条目插在开头,位置对比会误判
		after := []ListItem{{ID: "9", Name: "Amaciante"}, {ID: "1", Name: "Sabão"}, {ID: "2", Name: "Esponja"}}

		item, found := FindNewItem(before, after)
		require.True(t, found)
		assert.Equal(t, "9", item.ID)
	})

	t.Run("条目改名不算新增", func(t *testing.T) {
		after := []ListItem{{ID: "1", Name: "Sabão em pó"}, {ID: "2", Name: "Esponja"}}

		_, found := FindNewItem(before, after)
		assert.False(t, found)
	})

	t.Run("删除条目不算新增", func(t *testing.T) {
		after := []ListItem{{ID: "1", Name: "Sabão"}}

		_, found := FindNewItem(before, after)
		assert.False(t, found)
	})

	t.Run("同时增删数量不变不算新增", func(t *testing.T) {
		after := []ListItem{{ID: "1", Name: "Sabão"}, {ID: "7", Name: "Vassoura"}}

		_, found := FindNewItem(before, after)
		assert.False(t, found)
	})
}

func TestBuildListUpdateRequest(t *testing.T) {
	event := &ListUpdatedEvent{
		EventID: "evt-1",
		UserID:  "owner-1",
		Before:  []ListItem{},
		After:   []ListItem{{ID: "1", Name: "Detergente"}},
	}

	request, found := BuildListUpdateRequest(event, 100)
	require.True(t, found)

	assert.Equal(t, "evt-1", request.MessageID)
	assert.Equal(t, "owner-1", request.TargetUserID)
	assert.Equal(t, TitleNewItem, request.Title)
	assert.Equal(t, `O item "Detergente" foi adicionado à sua lista.`, request.Body)
	assert.Equal(t, push.TriggerItemAdded, request.Trigger)
}

func TestBuildListUpdateRequestNoNewItem(t *testing.T) {
	event := &ListUpdatedEvent{
		UserID: "owner-1",
		Before: []ListItem{{ID: "1", Name: "Sabão"}},
		After:  []ListItem{{ID: "1", Name: "Sabão líquido"}},
	}

	_, found := BuildListUpdateRequest(event, 100)
	assert.False(t, found)
}

func TestBuildListUpdateRequestTruncatesItemName(t *testing.T) {
	longName := strings.Repeat("x", 150)
	event := &ListUpdatedEvent{
		UserID: "owner-1",
		Before: []ListItem{},
		After:  []ListItem{{ID: "1", Name: longName}},
	}

	request, found := BuildListUpdateRequest(event, 100)
	require.True(t, found)
	assert.Contains(t, request.Body, strings.Repeat("x", 100)+"...")
}

func TestFeedbackTitle(t *testing.T) {
	testCases := []struct {
		name         string
		feedbackType string
		senderName   string
		expected     string
	}{
		{"建议类型用固定标题", FeedbackSuggestion, "Maria", TitleNewSuggestion},
		{"疑问带署名时插入署名", FeedbackDoubt, "João", "Nova Dúvida de João"},
		{"疑问无署名时用兜底标题", FeedbackDoubt, "", TitleFallback},
		{"未知类型用兜底标题", "complaint", "Ana", TitleFallback},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, FeedbackTitle(testCase.feedbackType, testCase.senderName))
		})
	}
}

func TestBuildFeedbackRequest(t *testing.T) {
	event := &FeedbackEvent{
		EventID:     "evt-2",
		ListOwnerID: "owner-1",
		Type:        FeedbackDoubt,
		Text:        "Qual marca de detergente?",
		Name:        "João",
	}

	request := BuildFeedbackRequest(event, 100)

	assert.Equal(t, "evt-2", request.MessageID)
	assert.Equal(t, "owner-1", request.TargetUserID)
	assert.Equal(t, "Nova Dúvida de João", request.Title)
	assert.Equal(t, "Qual marca de detergente?", request.Body)
	assert.Equal(t, push.TriggerFeedback, request.Trigger)
}

func TestBuildFeedbackRequestTruncatesText(t *testing.T) {
	event := &FeedbackEvent{
		ListOwnerID: "owner-1",
		Type:        FeedbackSuggestion,
		Text:        strings.Repeat("b", 120),
	}

	request := BuildFeedbackRequest(event, 100)
	assert.Equal(t, strings.Repeat("b", 100)+"...", request.Body)
}
