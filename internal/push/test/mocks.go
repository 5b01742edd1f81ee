package test

import (
	"context"
	"sync"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
)

// ---- Channel Mock ----

// MockChannel 可编程的推送通道
// ErrByToken 为每个 token 预设投递结果,未预设的 token 投递成功
type MockChannel struct {
	NameVal    string
	ErrByToken map[string]error

	mu        sync.Mutex
	SendCalls int
	SentTo    []string
	LastLoad  push.Payload
}

func (m *MockChannel) Name() string {
	if m.NameVal == "" {
		return "mock"
	}
	return m.NameVal
}

func (m *MockChannel) Send(ctx context.Context, token string, payload push.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls++
	m.LastLoad = payload

	if err, found := m.ErrByToken[token]; found {
		return err
	}

	m.SentTo = append(m.SentTo, token)
	return nil
}

// ---- Registry Mock ----

// MockRegistry 内存 token 注册表
// 记录写操作次数,用于断言"无副作用"类行为
type MockRegistry struct {
	mu     sync.Mutex
	Sets   map[string][]string
	ListE  error
	WriteE error

	RemoveCalls int
	ClearCalls  int
	AddCalls    int
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{Sets: make(map[string][]string)}
}

func (r *MockRegistry) AddToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AddCalls++
	if r.WriteE != nil {
		return r.WriteE
	}

	for _, existing := range r.Sets[userID] {
		if existing == token {
			return nil
		}
	}
	r.Sets[userID] = append(r.Sets[userID], token)
	return nil
}

func (r *MockRegistry) RemoveTokens(ctx context.Context, userID string, tokens []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RemoveCalls++
	if r.WriteE != nil {
		return 0, r.WriteE
	}

	doomed := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		doomed[token] = true
	}

	var kept []string
	removed := 0
	for _, existing := range r.Sets[userID] {
		if doomed[existing] {
			removed++
			continue
		}
		kept = append(kept, existing)
	}
	r.Sets[userID] = kept
	return removed, nil
}

func (r *MockRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ListE != nil {
		return nil, r.ListE
	}
	return append([]string(nil), r.Sets[userID]...), nil
}

func (r *MockRegistry) ClearTokens(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ClearCalls++
	if r.WriteE != nil {
		return r.WriteE
	}
	delete(r.Sets, userID)
	return nil
}

// TotalWrites 累计写操作次数
func (r *MockRegistry) TotalWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.AddCalls + r.RemoveCalls + r.ClearCalls
}

// ---- UserResolver Mock ----

// MockUserResolver 固定用户集合的档案解析
type MockUserResolver struct {
	Known map[string]bool
	Err   error
}

func (u *MockUserResolver) Exists(ctx context.Context, userID string) (bool, error) {
	if u.Err != nil {
		return false, u.Err
	}
	return u.Known[userID], nil
}

// ---- Store Mock ----

// MockStore 内存分发记录存储
type MockStore struct {
	mu      sync.Mutex
	Records []push.Record
	Trimmed int
	Err     error
}

func (s *MockStore) SaveRecord(ctx context.Context, rec push.Record) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = append(s.Records, rec)
	return nil
}

func (s *MockStore) Trim(ctx context.Context) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trimmed++
	return 0, nil
}

// ---- Enqueuer Mock ----

// MockEnqueuer 内存事件队列生产者
type MockEnqueuer struct {
	mu       sync.Mutex
	Payloads [][]byte
	Err      error
}

func (q *MockEnqueuer) Enqueue(ctx context.Context, payload []byte) error {
	if q.Err != nil {
		return q.Err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Payloads = append(q.Payloads, payload)
	return nil
}

func (q *MockEnqueuer) Close() {}
