package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/isekai-engine/pkg/skill"
)

// Canned replies used when no func is configured for an agent. They are valid
// for every agent's JSON contract so the mock provider can run a full turn.
var defaultMockResponses = map[Agent]string{
	AgentParser: `{"text":"Nhân vật thận trọng tiến về phía trước","risk_level":2,"consequence_hint":"Có thể phát hiện điều mới","action_type":"explore","feasibility":"possible","requires_modification":""}`,
	AgentPlanner: `{"beats":[` +
		`{"description":"Sương sớm phủ kín khu rừng","tension":3,"purpose":"setup","estimated_words":200,"scene_type":"exploration","mood":"quiet"},` +
		`{"description":"Tiếng động lạ vang lên sau rặng cây","tension":6,"purpose":"rising","estimated_words":300,"scene_type":"discovery","mood":"tense"},` +
		`{"description":"Nhân vật quyết định bước tiếp","tension":4,"purpose":"resolution","estimated_words":200,"scene_type":"exploration","mood":"hopeful"}],` +
		`"chapter_tension":5,"pacing":"medium","emotional_arc":"từ bình yên đến tò mò","new_characters":[],"world_changes":[]}`,
	AgentSimulator: `{"consequences":[{"description":"Khu rừng ghi nhớ bước chân người lạ","severity":2,"affects":"world"}],` +
		`"relationship_changes":[],"world_impacts":[],"identity_alignment":{"drift":"","alignment_shift":1,"reason":"hành động phù hợp bản tính"},` +
		`"foreshadowing":["Một ánh mắt dõi theo từ xa"],"new_entities":[],"new_facts":[]}`,
	AgentWriter: `{"title":"Sương Sớm","prose":"Sương sớm phủ kín khu rừng. Lâm Phong bước chậm, lắng nghe từng nhịp thở của cây cỏ. Sau rặng trúc, một tiếng động khẽ vang lên, rồi im bặt.",` +
		`"summary":"Nhân vật tiến vào khu rừng sương và nghe thấy tiếng động lạ.",` +
		`"choices":[{"text":"Lần theo tiếng động","risk_level":3,"consequence_hint":"Có thể gặp nguy hiểm","action_type":"explore"},` +
		`{"text":"Ẩn mình quan sát","risk_level":1,"consequence_hint":"An toàn nhưng chậm","action_type":"explore"},` +
		`{"text":"Lao thẳng vào rặng trúc","risk_level":5,"consequence_hint":"Liều lĩnh","action_type":"combat"}]}`,
	AgentCritic:     `{"score":8,"approved":true,"feedback":"Ổn","issues":[],"rewrite_instructions":""}`,
	AgentOnboarding: `{"name":"Mắt Sương","description":"Nhìn thấy dấu vết mà sương mù che giấu.","mechanic":"Đọc dấu vết còn sót lại trong không khí","activation_condition":"Khi tập trung tĩnh lặng","limitation":"Mắt mờ đi sau mỗi lần dùng","category":"perception"}`,
}

// MockLLM is a mock implementation of LLMService for testing and offline play.
type MockLLM struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	GenerateFunc  func(ctx context.Context, req GenerateRequest) (string, error)
	// AgentFuncs override GenerateFunc for one agent.
	AgentFuncs map[Agent]func(ctx context.Context, req GenerateRequest) (string, error)

	// Track calls for testing
	InitModelCalls []string
	GenerateCalls  []GenerateRequest

	mu sync.Mutex // protects all fields above
}

var _ LLMService = (*MockLLM)(nil)

func NewMockLLM() *MockLLM {
	return &MockLLM{
		AgentFuncs: make(map[Agent]func(ctx context.Context, req GenerateRequest) (string, error)),
	}
}

func (m *MockLLM) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	m.InitModelCalls = append(m.InitModelCalls, modelName)
	fn := m.InitModelFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}
	return nil
}

// Generate records the call and dispatches to the agent func, then
// GenerateFunc, then the canned reply. The lock is released before the func
// runs so funcs may inspect the mock.
func (m *MockLLM) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	fn := m.AgentFuncs[req.Agent]
	if fn == nil {
		fn = m.GenerateFunc
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return defaultMockResponses[req.Agent], nil
}

// SetAgentResponses scripts an agent's replies in order. The last reply
// repeats once the script runs out.
func (m *MockLLM) SetAgentResponses(agent Agent, responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	m.AgentFuncs[agent] = func(ctx context.Context, req GenerateRequest) (string, error) {
		if len(responses) == 0 {
			return "", nil
		}
		r := responses[min(i, len(responses)-1)]
		i++
		return r, nil
	}
}

// SetAgentError makes every call for agent fail with err.
func (m *MockLLM) SetAgentError(agent Agent, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AgentFuncs[agent] = func(ctx context.Context, req GenerateRequest) (string, error) {
		return "", err
	}
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLM) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// CallsFor returns the recorded requests of one agent.
func (m *MockLLM) CallsFor(agent Agent) []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GenerateRequest
	for _, c := range m.GenerateCalls {
		if c.Agent == agent {
			out = append(out, c)
		}
	}
	return out
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLM) GetCalls() ([]string, []GenerateRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)
	genCalls := make([]GenerateRequest, len(m.GenerateCalls))
	copy(genCalls, m.GenerateCalls)
	return initCalls, genCalls
}

// Reset clears all call tracking
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = nil
	m.GenerateCalls = nil
}

// MockEmbedder is a skill.Embedder for tests. Without EmbedFunc it returns
// the hash embedding.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	Calls     []string

	mu sync.Mutex
}

var _ skill.Embedder = (*MockEmbedder)(nil)

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	fn := m.EmbedFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return skill.HashEmbedding(text), nil
}

// CallCount returns the number of Embed calls.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
