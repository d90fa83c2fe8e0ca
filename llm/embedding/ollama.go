package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Aiuj/faciliter-lib-go/llm"
	"github.com/Aiuj/faciliter-lib-go/llm/providers"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434"
	ollamaDefaultModel   = "nomic-embed-text"
)

// OllamaProvider 通过 Ollama 原生 /api/embed 生成嵌入。
type OllamaProvider struct {
	cfg    Config
	client *http.Client
}

// NewOllama 创建 Ollama 嵌入提供者。
func NewOllama(cfg Config) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if !strings.Contains(cfg.BaseURL, "://") {
		cfg.BaseURL = "http://" + cfg.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	// 本地 HTTP 服务，无需 TLS 加固传输层。
	return &OllamaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OllamaProvider) Name() string    { return "ollama-embedding" }
func (p *OllamaProvider) Dimensions() int { return int(p.cfg.Dimensions) }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embed 为给定文本生成嵌入。
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return nil, llm.NewError(llm.ErrInvalidRequest, p.Name(), "texts must not be empty")
	}

	body := ollamaEmbedRequest{Model: p.cfg.Model, Input: texts}

	var oResp ollamaEmbedResponse
	err := providers.DoJSONRequest(ctx, p.client, http.MethodPost, p.cfg.BaseURL+"/api/embed",
		func(*http.Request) {}, body, &oResp, p.Name())
	if err != nil {
		return nil, err
	}

	model := oResp.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &Result{
		Provider: p.Name(),
		Model:    model,
		Vectors:  oResp.Embeddings,
		Usage: EmbeddingUsage{
			PromptTokens: oResp.PromptEvalCount,
			TotalTokens:  oResp.PromptEvalCount,
		},
	}, nil
}
