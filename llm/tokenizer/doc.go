// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于补齐服务商未返回的用量统计。
package tokenizer
