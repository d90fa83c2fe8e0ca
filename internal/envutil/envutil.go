// Package envutil 提供环境变量驱动的配置填充。
//
// 与按前缀拼接键名的方案不同，这里的 `env` 标签写完整变量名，
// 并支持逗号分隔的候选列表（取第一个非空值），例如：
//
//	type Config struct {
//	    APIKey string `env:"OPENAI_API_KEY,LLM_API_KEY"`
//	}
//
// 时长字段同时接受 time.ParseDuration 语法（"30s"、"5m"）
// 与裸整数秒（"300"）。
package envutil

import (
	"encoding"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Apply 将环境变量写入 cfg（必须是结构体指针）中带 `env` 标签的字段。
// 未设置的环境变量不会覆盖字段现值，因此调用前先填默认值。
func Apply(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("envutil: Apply expects a struct pointer, got %T", cfg)
	}
	return applyStruct(v.Elem())
}

func applyStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 跳过未导出字段；匿名嵌入结构体例外，其导出成员仍可设置
		if fieldType.PkgPath != "" && !fieldType.Anonymous {
			continue
		}

		// 嵌套结构体直接递归（标签写的是完整变量名，无需前缀）
		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := applyStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		name, value, ok := lookup(strings.Split(envTag, ","))
		if !ok {
			continue
		}

		if err := setField(field, value); err != nil {
			return fmt.Errorf("envutil: parse %s: %w", name, err)
		}
	}

	return nil
}

// lookup 返回候选列表中第一个非空环境变量的名字和值。
func lookup(names []string) (string, string, bool) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if value := os.Getenv(name); value != "" {
			return name, value, true
		}
	}
	return "", "", false
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	// 自定义文本解析优先（如 embedding.Dimension 的带引号数值归一化）
	if field.CanAddr() {
		if tu, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return tu.UnmarshalText([]byte(value))
		}
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// ParseDuration 解析时长，接受 time.ParseDuration 语法或裸整数秒。
func ParseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// ParseBool 解析布尔值，在 strconv.ParseBool 基础上额外接受
// yes/no/on/off（不区分大小写）。
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// String 返回候选列表中第一个非空环境变量的值，全部未设置时返回 fallback。
func String(fallback string, names ...string) string {
	if _, value, ok := lookup(names); ok {
		return value
	}
	return fallback
}

// Bool 同 String，解析失败或未设置时返回 fallback。
func Bool(fallback bool, names ...string) bool {
	if _, value, ok := lookup(names); ok {
		if b, err := ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Int 同 String，解析失败或未设置时返回 fallback。
func Int(fallback int, names ...string) int {
	if _, value, ok := lookup(names); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

// Duration 同 String，解析失败或未设置时返回 fallback。
func Duration(fallback time.Duration, names ...string) time.Duration {
	if _, value, ok := lookup(names); ok {
		if d, err := ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
