// 环境变量配置填充测试。
package envutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type innerConfig struct {
	Host string `env:"ENVUTIL_TEST_HOST"`
	Port int    `env:"ENVUTIL_TEST_PORT"`
}

type outerConfig struct {
	innerConfig

	Name     string        `env:"ENVUTIL_TEST_NAME"`
	Fallback string        `env:"ENVUTIL_TEST_PRIMARY,ENVUTIL_TEST_SECONDARY"`
	Enabled  bool          `env:"ENVUTIL_TEST_ENABLED"`
	Ratio    float64       `env:"ENVUTIL_TEST_RATIO"`
	TTL      time.Duration `env:"ENVUTIL_TEST_TTL"`
	Timeout  time.Duration `env:"ENVUTIL_TEST_TIMEOUT"`
	Tags     []string      `env:"ENVUTIL_TEST_TAGS"`
	Skipped  string        `env:"-"`
	NoTag    string
}

func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	})
}

func TestApply(t *testing.T) {
	setEnv(t, map[string]string{
		"ENVUTIL_TEST_HOST":      "redis.internal",
		"ENVUTIL_TEST_PORT":      "6380",
		"ENVUTIL_TEST_NAME":      "facade",
		"ENVUTIL_TEST_SECONDARY": "from-secondary",
		"ENVUTIL_TEST_ENABLED":   "true",
		"ENVUTIL_TEST_RATIO":     "0.75",
		"ENVUTIL_TEST_TTL":       "300",
		"ENVUTIL_TEST_TIMEOUT":   "5s",
		"ENVUTIL_TEST_TAGS":      "a, b ,c",
	})

	cfg := outerConfig{Name: "default", Skipped: "keep", NoTag: "keep"}
	require.NoError(t, Apply(&cfg))

	// 嵌套结构体使用完整变量名
	assert.Equal(t, "redis.internal", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)

	assert.Equal(t, "facade", cfg.Name)
	// 候选列表取第一个非空值
	assert.Equal(t, "from-secondary", cfg.Fallback)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0.75, cfg.Ratio)
	// 裸整数按秒解析
	assert.Equal(t, 300*time.Second, cfg.TTL)
	// 标准时长语法照常解析
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	// `env:"-"` 与无标签字段不受影响
	assert.Equal(t, "keep", cfg.Skipped)
	assert.Equal(t, "keep", cfg.NoTag)
}

func TestApply_FallbackPrecedence(t *testing.T) {
	setEnv(t, map[string]string{
		"ENVUTIL_TEST_PRIMARY":   "from-primary",
		"ENVUTIL_TEST_SECONDARY": "from-secondary",
	})

	var cfg outerConfig
	require.NoError(t, Apply(&cfg))
	assert.Equal(t, "from-primary", cfg.Fallback)
}

func TestApply_UnsetKeepsDefaults(t *testing.T) {
	cfg := outerConfig{Name: "default", TTL: time.Minute}
	require.NoError(t, Apply(&cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, time.Minute, cfg.TTL)
}

func TestApply_ParseError(t *testing.T) {
	setEnv(t, map[string]string{"ENVUTIL_TEST_PORT": "not-a-number"})

	var cfg outerConfig
	err := Apply(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENVUTIL_TEST_PORT")
}

func TestApply_RequiresStructPointer(t *testing.T) {
	var cfg outerConfig
	assert.Error(t, Apply(cfg))
	assert.Error(t, Apply(42))
}

// sizeValue 实现 encoding.TextUnmarshaler，验证自定义解析优先于按类型解析。
type sizeValue int

func (s *sizeValue) UnmarshalText(text []byte) error {
	switch string(text) {
	case "small":
		*s = 1
	case "large":
		*s = 10
	default:
		return fmt.Errorf("unknown size %q", text)
	}
	return nil
}

func TestApply_TextUnmarshaler(t *testing.T) {
	setEnv(t, map[string]string{"ENVUTIL_TEST_SIZE": "large"})

	var cfg struct {
		Size sizeValue `env:"ENVUTIL_TEST_SIZE"`
	}
	require.NoError(t, Apply(&cfg))
	assert.Equal(t, sizeValue(10), cfg.Size)

	os.Setenv("ENVUTIL_TEST_SIZE", "medium")
	err := Apply(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENVUTIL_TEST_SIZE")
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"300", 300 * time.Second},
		{"0", 0},
		{"5m", 5 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{" 60 ", 60 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	trueValues := []string{"true", "TRUE", "1", "yes", "Yes", "on", "ON", " t "}
	for _, v := range trueValues {
		got, err := ParseBool(v)
		require.NoError(t, err, "input %q", v)
		assert.True(t, got, "input %q", v)
	}

	falseValues := []string{"false", "0", "no", "off", "F"}
	for _, v := range falseValues {
		got, err := ParseBool(v)
		require.NoError(t, err, "input %q", v)
		assert.False(t, got, "input %q", v)
	}

	_, err := ParseBool("maybe")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	setEnv(t, map[string]string{
		"ENVUTIL_TEST_STR":  "value",
		"ENVUTIL_TEST_BOOL": "yes",
		"ENVUTIL_TEST_INT":  "42",
		"ENVUTIL_TEST_DUR":  "90",
	})

	assert.Equal(t, "value", String("fb", "ENVUTIL_TEST_STR"))
	assert.Equal(t, "fb", String("fb", "ENVUTIL_TEST_MISSING"))
	assert.Equal(t, "value", String("fb", "ENVUTIL_TEST_MISSING", "ENVUTIL_TEST_STR"))

	assert.True(t, Bool(false, "ENVUTIL_TEST_BOOL"))
	assert.True(t, Bool(true, "ENVUTIL_TEST_MISSING"))

	assert.Equal(t, 42, Int(7, "ENVUTIL_TEST_INT"))
	assert.Equal(t, 7, Int(7, "ENVUTIL_TEST_MISSING"))

	assert.Equal(t, 90*time.Second, Duration(time.Minute, "ENVUTIL_TEST_DUR"))
	assert.Equal(t, time.Minute, Duration(time.Minute, "ENVUTIL_TEST_MISSING"))
}
