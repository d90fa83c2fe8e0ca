package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Provider 定义统一的嵌入提供者接口。每个服务商一个实现，
// 负责文本列表到向量列表的翻译；观测由装饰器统一承担。
type Provider interface {
	// Embed 为给定文本生成嵌入向量，输出顺序与输入一致。
	Embed(ctx context.Context, texts []string) (*Result, error)

	// Name 返回提供者名称。
	Name() string

	// Dimensions 返回输出向量维度，未知时为 0。
	Dimensions() int
}

// Result 是跨服务商统一的嵌入结果。Vectors[i] 对应输入 texts[i]。
type Result struct {
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model"`
	Vectors  [][]float64    `json:"vectors"`
	Usage    EmbeddingUsage `json:"usage"`
}

// EmbeddingUsage 记录一次嵌入请求的 token 用量。
// 部分服务商不返回计数，此时为零值。
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Dimension 是可同时从数字与字符串反序列化的维度值，
// 便于配置文件里写 1024 或 "1024"。
type Dimension int

// UnmarshalJSON 接受 JSON 数字或数字字符串。
func (d *Dimension) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	return d.parse(s)
}

// UnmarshalYAML 接受 YAML 数字或数字字符串。
func (d *Dimension) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(strings.TrimSpace(node.Value))
}

// UnmarshalText 供环境变量加载器使用，语义同 UnmarshalJSON。
func (d *Dimension) UnmarshalText(text []byte) error {
	s := strings.Trim(strings.TrimSpace(string(text)), `"`)
	return d.parse(s)
}

func (d *Dimension) parse(s string) error {
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid embedding dimension %q: %w", s, err)
	}
	if n < 0 {
		return fmt.Errorf("invalid embedding dimension %d: must be non-negative", n)
	}
	*d = Dimension(n)
	return nil
}

// MarshalJSON 以数字输出。
func (d Dimension) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(d))
}

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

// EmbedBatch 将输入切成批次并以有界并发并行嵌入，聚合为单个 Result：
// 向量保持输入顺序，用量逐批累加。任一批次失败即整体失败，
// 其余批次随组内 context 取消。
//
// batchSize 与 concurrency 非正时取内置默认值。
func EmbedBatch(ctx context.Context, p Provider, texts []string, batchSize, concurrency int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	if len(texts) <= batchSize {
		return p.Embed(ctx, texts)
	}

	numBatches := (len(texts) + batchSize - 1) / batchSize
	partials := make([]*Result, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := 0; i < numBatches; i++ {
		start := i * batchSize
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			res, err := p.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			partials[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		Provider: p.Name(),
		Vectors:  make([][]float64, 0, len(texts)),
	}
	for _, part := range partials {
		out.Vectors = append(out.Vectors, part.Vectors...)
		out.Usage.PromptTokens += part.Usage.PromptTokens
		out.Usage.TotalTokens += part.Usage.TotalTokens
		if out.Model == "" {
			out.Model = part.Model
		}
	}
	return out, nil
}
