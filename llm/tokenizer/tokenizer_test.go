// 分词器选择与估算测试。
package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// stubTokenizer 用于注册表测试。
type stubTokenizer struct {
	name string
}

func (s *stubTokenizer) CountTokens(string) (int, error)      { return 1, nil }
func (s *stubTokenizer) CountMessages([]Message) (int, error) { return 1, nil }
func (s *stubTokenizer) Name() string                         { return s.name }

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimator("gemini-2.5-flash")

	// 空文本
	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 纯 ASCII: ~4 字符/token
	n, err = e.CountTokens("hello world, this is a test.")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	// 纯 CJK: ~1.5 字符/token
	n, err = e.CountTokens("你好世界")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 极短文本至少算 1 个 token
	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEstimator_CountMessages(t *testing.T) {
	e := NewEstimator("gemini-2.5-flash")

	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "What is the capital of France?"},
	}

	n, err := e.CountMessages(messages)
	require.NoError(t, err)

	// 每条消息 +4 开销, 会话结束 +3
	content1, _ := e.CountTokens(messages[0].Content)
	content2, _ := e.CountTokens(messages[1].Content)
	assert.Equal(t, content1+content2+4*2+3, n)
}

func TestEstimator_CountMessages_Empty(t *testing.T) {
	e := NewEstimator("any")
	n, err := e.CountMessages(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
		ok    bool
	}{
		{"gpt-4.1-mini", "o200k_base", true},
		{"gpt-4o", "o200k_base", true},
		{"gpt-4", "cl100k_base", true},
		// 最长前缀优先: gpt-4.1 不能落到 gpt-4 的编码
		{"gpt-4.1-mini-2025-04-14", "o200k_base", true},
		{"gpt-4-0613", "cl100k_base", true},
		{"text-embedding-3-small", "cl100k_base", true},
		{"gemini-2.5-flash", "", false},
		{"llama3.1", "", false},
	}

	for _, tt := range tests {
		enc, ok := encodingForModel(tt.model)
		assert.Equal(t, tt.ok, ok, "model %s", tt.model)
		if tt.ok {
			assert.Equal(t, tt.want, enc, "model %s", tt.model)
		}
	}
}

func TestForModel_SelectsBackend(t *testing.T) {
	// OpenAI 家族 → tiktoken
	tok := ForModel("gpt-4.1-mini")
	assert.Equal(t, "tiktoken[o200k_base]", tok.Name())

	tok = ForModel("gpt-4-turbo")
	assert.Equal(t, "tiktoken[cl100k_base]", tok.Name())

	// 未知模型 → 估算器
	tok = ForModel("gemini-2.5-flash")
	assert.Equal(t, "estimator", tok.Name())
}

func TestForModel_RegistryWinsOverBuiltin(t *testing.T) {
	custom := &stubTokenizer{name: "custom"}
	Register("gpt-4o-audio", custom)

	tok := ForModel("gpt-4o-audio")
	assert.Equal(t, "custom", tok.Name())
}

func TestForModel_LongestPrefixWins(t *testing.T) {
	Register("llama", &stubTokenizer{name: "short"})
	Register("llama-3", &stubTokenizer{name: "long"})

	tok := ForModel("llama-3-70b")
	assert.Equal(t, "long", tok.Name())

	tok = ForModel("llama-2-7b")
	assert.Equal(t, "short", tok.Name())
}

// TestEstimator_MonotonicProperty 追加任意文本不会使估算值变小。
func TestEstimator_MonotonicProperty(t *testing.T) {
	e := NewEstimator("any")

	rapid.Check(t, func(t *rapid.T) {
		base := rapid.String().Draw(t, "base")
		suffix := rapid.String().Draw(t, "suffix")

		n1, err := e.CountTokens(base)
		require.NoError(t, err)
		n2, err := e.CountTokens(base + suffix)
		require.NoError(t, err)

		if n2 < n1 {
			t.Fatalf("appending %q to %q shrank the estimate: %d -> %d", suffix, base, n1, n2)
		}
	})
}

// TestEstimator_MoreMessagesMoreTokens 消息越多估算值越大。
func TestEstimator_MoreMessagesMoreTokens(t *testing.T) {
	e := NewEstimator("any")

	rapid.Check(t, func(t *rapid.T) {
		contents := rapid.SliceOfN(rapid.String(), 1, 8).Draw(t, "contents")

		msgs := make([]Message, 0, len(contents))
		for _, c := range contents {
			msgs = append(msgs, Message{Role: "user", Content: c})
		}

		full, err := e.CountMessages(msgs)
		require.NoError(t, err)
		shorter, err := e.CountMessages(msgs[:len(msgs)-1])
		require.NoError(t, err)

		if full <= shorter {
			t.Fatalf("dropping a message did not reduce the estimate: %d vs %d", full, shorter)
		}
	})
}
