// llm.Provider 的测试模拟实现。
//
// 支持固定结果、错误注入与调用记录，供库使用方和本仓库的
// 外部包测试复用。与 llm 包内部测试的本地桩不同，本包可以
// 被任何不在 llm 导入环上的包导入。
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Aiuj/faciliter-lib-go/llm"
)

var _ llm.Provider = (*MockProvider)(nil)

// MockCall 记录一次 Completion 调用
type MockCall struct {
	Request *llm.ChatRequest
	Time    time.Time
}

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.RWMutex

	name    string
	result  *llm.ChatResult
	err     error
	healthy bool

	supportsTools  bool
	supportsSearch bool

	// completionFunc 设置后完全接管 Completion 行为
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error)

	calls []MockCall
}

// NewMockProvider 创建默认健康、返回固定内容的模拟提供者
func NewMockProvider(name string) *MockProvider {
	if name == "" {
		name = "mock"
	}
	return &MockProvider{
		name:          name,
		healthy:       true,
		supportsTools: true,
		result: &llm.ChatResult{
			Provider:  name,
			Content:   "mock response",
			ToolCalls: []llm.ToolCall{},
		},
	}
}

// SetResult 设置 Completion 返回的固定结果
func (m *MockProvider) SetResult(res *llm.ChatResult) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = res
	return m
}

// SetError 注入 Completion 错误；传 nil 清除
func (m *MockProvider) SetError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// SetHealthy 控制 HealthCheck 结果
func (m *MockProvider) SetHealthy(healthy bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = healthy
	return m
}

// SetCompletionFunc 用自定义函数接管 Completion
func (m *MockProvider) SetCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// SetSupports 控制能力探测结果
func (m *MockProvider) SetSupports(tools, search bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supportsTools = tools
	m.supportsSearch = search
	return m
}

// Completion 实现 llm.Provider
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Request: req, Time: time.Now()})
	fn := m.completionFunc
	err := m.err
	res := m.result
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, llm.NewError(llm.ErrUpstreamError, m.name, "mock has no result configured")
	}

	// 返回副本，避免客户端的归一化改写共享状态
	out := *res
	if out.Model == "" {
		out.Model = req.Model
	}
	return &out, nil
}

// HealthCheck 实现 llm.Provider
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &llm.HealthStatus{
		Healthy:   m.healthy,
		Provider:  m.name,
		Timestamp: time.Now(),
	}, nil
}

// Name 实现 llm.Provider
func (m *MockProvider) Name() string { return m.name }

// SupportsNativeFunctionCalling 实现 llm.Provider
func (m *MockProvider) SupportsNativeFunctionCalling() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportsTools
}

// SupportsSearchGrounding 实现 llm.Provider
func (m *MockProvider) SupportsSearchGrounding() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportsSearch
}

// Calls 返回所有调用记录的副本
func (m *MockProvider) Calls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回 Completion 被调用的次数
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastRequest 返回最近一次请求，无调用时返回 nil
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录与注入的错误
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.err = nil
	m.completionFunc = nil
}
