package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Aiuj/faciliter-lib-go/internal/tlsutil"
	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiDefaultModel   = "gemini-embedding-001"
)

// GeminiProvider 通过 Google Gemini API 生成嵌入。
// 端点形如 /v1beta/models/{model}:embedContent，鉴权用 x-goog-api-key 头。
type GeminiProvider struct {
	cfg    Config
	client *http.Client
}

// NewGemini 创建 Gemini 嵌入提供者。
func NewGemini(cfg Config) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &GeminiProvider{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(cfg.Timeout),
	}
}

func (p *GeminiProvider) Name() string    { return "gemini-embedding" }
func (p *GeminiProvider) Dimensions() int { return int(p.cfg.Dimensions) }

type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContentEmbedding struct {
	Values []float64 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiContentEmbedding `json:"embedding"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiContentEmbedding `json:"embeddings"`
}

// Embed 为给定文本生成嵌入。单条输入走 embedContent，
// 多条输入走 batchEmbedContents。
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return nil, llm.NewError(llm.ErrInvalidRequest, p.Name(), "texts must not be empty")
	}
	if len(texts) == 1 {
		return p.embedSingle(ctx, texts[0])
	}
	return p.embedBatch(ctx, texts)
}

func (p *GeminiProvider) embedSingle(ctx context.Context, text string) (*Result, error) {
	body := p.buildRequest(text)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent", p.cfg.BaseURL, p.cfg.Model)

	var gResp geminiEmbedResponse
	if err := p.doRequest(ctx, endpoint, body, &gResp); err != nil {
		return nil, err
	}

	return &Result{
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Vectors:  [][]float64{gResp.Embedding.Values},
	}, nil
}

func (p *GeminiProvider) embedBatch(ctx context.Context, texts []string) (*Result, error) {
	requests := make([]geminiEmbedRequest, len(texts))
	for i, text := range texts {
		requests[i] = p.buildRequest(text)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents", p.cfg.BaseURL, p.cfg.Model)

	var gResp geminiBatchEmbedResponse
	if err := p.doRequest(ctx, endpoint, geminiBatchEmbedRequest{Requests: requests}, &gResp); err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(gResp.Embeddings))
	for i, emb := range gResp.Embeddings {
		vectors[i] = emb.Values
	}
	return &Result{
		Provider: p.Name(),
		Model:    p.cfg.Model,
		Vectors:  vectors,
	}, nil
}

func (p *GeminiProvider) buildRequest(text string) geminiEmbedRequest {
	return geminiEmbedRequest{
		Model:                "models/" + p.cfg.Model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		OutputDimensionality: int(p.cfg.Dimensions),
	}
}

func (p *GeminiProvider) doRequest(ctx context.Context, endpoint string, body, out any) error {
	return providers.DoJSONRequest(ctx, p.client, http.MethodPost, endpoint,
		func(r *http.Request) { r.Header.Set("x-goog-api-key", p.cfg.APIKey) },
		body, out, p.Name())
}
