package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer是统一的代号计数界面.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// 全局分词器注册表.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// Register 为给定的模型名称注册分词器, 覆盖内置选择。
func Register(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// ForModel 返回给定模型的分词器, 永不失败:
//
//  1. 注册表精确匹配或最长前缀匹配;
//  2. OpenAI 家族模型使用 tiktoken;
//  3. 其他模型回退到字符估算器。
func ForModel(model string) Tokenizer {
	if t := lookupRegistered(model); t != nil {
		return t
	}
	if _, ok := encodingForModel(model); ok {
		return NewTiktoken(model)
	}
	return NewEstimator(model)
}

// lookupRegistered 返回注册表中的精确或最长前缀匹配, 无匹配时返回 nil。
func lookupRegistered(model string) Tokenizer {
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t
	}

	// 最长前缀优先, 避免 "gpt-4.1" 误匹配 "gpt-4"。
	var (
		best    Tokenizer
		bestLen int
	)
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = t
			bestLen = len(prefix)
		}
	}
	return best
}
