package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken 为 OpenAI 家族模型提供精确计数。
type Tiktoken struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// 模型编码将模型名称映射到其 tiktoken 编码。
var modelEncodings = map[string]string{
	"gpt-4.1":                "o200k_base",
	"gpt-4.1-mini":           "o200k_base",
	"gpt-4.1-nano":           "o200k_base",
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"o1":                     "o200k_base",
	"o3":                     "o200k_base",
	"o4-mini":                "o200k_base",
	"gpt-4-turbo":            "cl100k_base",
	"gpt-4":                  "cl100k_base",
	"gpt-3.5-turbo":          "cl100k_base",
	"text-embedding-3-large": "cl100k_base",
	"text-embedding-3-small": "cl100k_base",
}

// encodingForModel 返回模型的 tiktoken 编码, 精确匹配优先,
// 其次取最长前缀匹配。
func encodingForModel(model string) (string, bool) {
	if enc, ok := modelEncodings[model]; ok {
		return enc, true
	}
	var (
		best    string
		bestLen int
	)
	for prefix, enc := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = enc
			bestLen = len(prefix)
		}
	}
	return best, bestLen > 0
}

// NewTiktoken 为给定型号创建以 tiktoken 为底的分词器。
// 未知模型默认使用 o200k_base 编码。
func NewTiktoken(model string) *Tiktoken {
	enc, ok := encodingForModel(model)
	if !ok {
		enc = "o200k_base"
	}
	return &Tiktoken{
		model:    model,
		encoding: enc,
	}
}

// init lazily 初始化 tiktoken 编码(可以在第一次使用时下载数据).
func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	tokens := t.enc.Encode(text, nil, nil)
	return len(tokens), nil
}

func (t *Tiktoken) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		tokens := t.enc.Encode(msg.Content, nil, nil)
		total += len(tokens)
		roleTokens := t.enc.Encode(msg.Role, nil, nil)
		total += len(roleTokens)
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
