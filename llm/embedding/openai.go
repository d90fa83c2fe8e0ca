package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/tlsutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
)

const (
	openaiDefaultBaseURL = "https://api.openai.com"
	openaiDefaultModel   = "text-embedding-3-large"
	openaiDefaultDims    = 3072
	defaultTimeout       = 30 * time.Second
)

// OpenAIProvider 通过 OpenAI 兼容的 /v1/embeddings 生成嵌入。
// 配合 BaseURL 可接入任意兼容网关。
type OpenAIProvider struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI 创建 OpenAI 兼容的嵌入提供者。
func NewOpenAI(cfg Config) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openaiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openaiDefaultModel
	}
	if cfg.Dimensions == 0 && cfg.Model == openaiDefaultModel {
		cfg.Dimensions = openaiDefaultDims
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIProvider{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(cfg.Timeout),
	}
}

func (p *OpenAIProvider) Name() string    { return "openai-embedding" }
func (p *OpenAIProvider) Dimensions() int { return int(p.cfg.Dimensions) }

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 为给定文本生成嵌入。向量按响应中的 index 归位，
// 保证输出顺序与输入一致。
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return nil, llm.NewError(llm.ErrInvalidRequest, p.Name(), "texts must not be empty")
	}

	body := openaiEmbedRequest{
		Input:      texts,
		Model:      p.cfg.Model,
		Dimensions: int(p.cfg.Dimensions),
	}

	var oaResp openaiEmbedResponse
	err := providers.DoJSONRequest(ctx, p.client, http.MethodPost, p.cfg.BaseURL+"/v1/embeddings",
		func(r *http.Request) { providers.BearerTokenHeaders(r, p.cfg.APIKey) },
		body, &oaResp, p.Name())
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(texts))
	for _, d := range oaResp.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}

	model := oaResp.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &Result{
		Provider: p.Name(),
		Model:    model,
		Vectors:  vectors,
		Usage: EmbeddingUsage{
			PromptTokens: oaResp.Usage.PromptTokens,
			TotalTokens:  oaResp.Usage.TotalTokens,
		},
	}, nil
}
