// =============================================================================
// faciliter 命令行入口
// =============================================================================
// 演示 CLI，串起配置加载、统一聊天门面、响应缓存与追踪装配
//
// 使用方法:
//
//	faciliter chat -prompt "你好"              # 一次性聊天
//	faciliter chat -config config.yaml -prompt "..." -provider gemini
//	faciliter health                           # 提供者可达性探测
//	faciliter version                          # 显示版本信息
//
// =============================================================================
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Aiuj/faciliter-lib-go/cache"
	"github.com/Aiuj/faciliter-lib-go/config"
	"github.com/Aiuj/faciliter-lib-go/llm/factory"
	"github.com/Aiuj/faciliter-lib-go/tracing"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 💬 chat 命令
// =============================================================================

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prompt := fs.String("prompt", "", "Prompt to send")
	model := fs.String("model", "", "Override model name")
	provider := fs.String("provider", "", "Override provider name")
	noCache := fs.Bool("no-cache", false, "Bypass the response cache")
	timeout := fs.Duration("timeout", 2*time.Minute, "Request timeout")
	fs.Parse(args)

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "chat: -prompt is required")
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	logger := config.NewLogger(cfg.Log)
	defer logger.Sync()

	// 追踪装配永不失败，错误配置只会降级为空管道
	providers := tracing.Setup(&cfg.Tracing, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(ctx)
	}()

	client, err := factory.NewClient(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}

	store, err := cache.NewOrNil(cfg.Cache, logger)
	if err != nil {
		logger.Warn("cache unavailable, continuing without it", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	key := responseKey(cfg.LLM.Provider, cfg.LLM.Model, *prompt)
	if !*noCache {
		if cached, found, err := store.GetString(ctx, key); err == nil && found {
			fmt.Println(cached)
			fmt.Fprintln(os.Stderr, "(cached)")
			return
		}
	}

	answer, err := client.ChatText(ctx, *prompt)
	if err != nil {
		logger.Fatal("chat failed", zap.Error(err))
	}

	if !*noCache {
		if err := store.SetString(ctx, key, answer); err != nil {
			logger.Warn("failed to cache response", zap.Error(err))
		}
	}

	fmt.Println(answer)
}

// responseKey 对 提供者|模型|提示词 做哈希，避免把原文放进键名。
func responseKey(provider, model, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + prompt))
	return "chat:" + hex.EncodeToString(sum[:16])
}

// =============================================================================
// 🩺 health 命令
// =============================================================================

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	timeout := fs.Duration("timeout", 10*time.Second, "Probe timeout")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	p, err := factory.New(cfg.LLM, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create provider: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status, err := p.HealthCheck(ctx)
	if err != nil || status == nil || !status.Healthy {
		fmt.Printf("✗ %s unhealthy", p.Name())
		switch {
		case err != nil:
			fmt.Printf(": %v", err)
		case status != nil && status.Details != "":
			fmt.Printf(": %s", status.Details)
		}
		fmt.Println()
		os.Exit(1)
	}

	fmt.Printf("✓ %s healthy (%s)\n", p.Name(), status.Latency)
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func printVersion() {
	fmt.Printf("faciliter %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`faciliter - unified LLM facade demo CLI

Usage:
  faciliter chat -prompt "..." [flags]   Send one prompt and print the answer
  faciliter health [-config FILE]        Probe the configured provider
  faciliter version                      Show version information
  faciliter help                         Show this help

Chat flags:
  -config FILE     YAML config path (optional, env vars still apply)
  -model NAME      Override the model
  -provider NAME   Override the provider (gemini, ollama, openai, ...)
  -no-cache        Bypass the Redis response cache
  -timeout DUR     Request timeout (default 2m)`)
}
