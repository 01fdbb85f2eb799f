package inspectra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	t.Run("仅正则", func(t *testing.T) {
		p := parsePattern(`nginx(?:/([\d.]+))?`)
		require.NotNil(t, p.regex)
		assert.Equal(t, `nginx(?:/([\d.]+))?`, p.str)
		assert.Equal(t, 100, p.confidence)
		assert.Empty(t, p.version)
	})

	t.Run("携带版本模板和置信度", func(t *testing.T) {
		p := parsePattern(`jquery-([\d.]+)\.js\;version:\1\;confidence:50`)
		assert.Equal(t, `jquery-([\d.]+)\.js`, p.str)
		assert.Equal(t, `\1`, p.version)
		assert.Equal(t, 50, p.confidence)
	})

	t.Run("未知附加键保留", func(t *testing.T) {
		p := parsePattern(`foo\;bar:baz\;confidence:80`)
		assert.Equal(t, 80, p.confidence)
		require.NotNil(t, p.extras)
		assert.Equal(t, "baz", p.extras["bar"])
	})

	t.Run("非法置信度保持默认", func(t *testing.T) {
		p := parsePattern(`foo\;confidence:abc`)
		assert.Equal(t, 100, p.confidence)
	})

	t.Run("空规则串匹配任意值", func(t *testing.T) {
		p := parsePattern("")
		assert.True(t, p.matchString("anything"))
		assert.True(t, p.matchString(""))
	})
}

func TestParsePatternFailClosed(t *testing.T) {
	// 非法正则编译失败后规则永远不命中
	p := parsePattern(`foo(bar\;version:\1`)
	assert.Nil(t, p.regex)
	assert.False(t, p.matchString("foobar"))
	assert.False(t, p.matchString(""))
	assert.Empty(t, p.resolveVersions("foobar"))
}

func TestMatchStringCaseInsensitive(t *testing.T) {
	p := parsePattern("WordPress")
	assert.True(t, p.matchString("wordpress"))
	assert.True(t, p.matchString("WORDPRESS 6.0"))
	assert.False(t, p.matchString("drupal"))
}

func TestResolveVersions(t *testing.T) {
	t.Run("反向引用", func(t *testing.T) {
		p := parsePattern(`nginx(?:/([\d.]+))?\;version:\1`)
		assert.Equal(t, []string{"1.18.0"}, p.resolveVersions("nginx/1.18.0"))
	})

	t.Run("无版本模板", func(t *testing.T) {
		p := parsePattern(`nginx(?:/([\d.]+))?`)
		assert.Empty(t, p.resolveVersions("nginx/1.18.0"))
	})

	t.Run("条件表达式取真值", func(t *testing.T) {
		p := parsePattern(`example-(swf|js)\;version:\1?5:4`)
		assert.Equal(t, []string{"5"}, p.resolveVersions("example-swf"))
	})

	t.Run("条件表达式取假值", func(t *testing.T) {
		p := parsePattern(`example(-swf)?\;version:\1?5:4`)
		assert.Equal(t, []string{"4"}, p.resolveVersions("example"))
	})

	t.Run("非版本号格式丢弃", func(t *testing.T) {
		p := parsePattern(`ver-([\w.-]+)\;version:\1`)
		assert.Empty(t, p.resolveVersions("ver-1.18.0-beta"))
		assert.Equal(t, []string{"1.18.0"}, p.resolveVersions("ver-1.18.0"))
	})

	t.Run("捕获组未命中得到空版本", func(t *testing.T) {
		p := parsePattern(`nginx(?:/([\d.]+))?\;version:\1`)
		assert.Empty(t, p.resolveVersions("nginx"))
	})

	t.Run("按发现顺序去重", func(t *testing.T) {
		p := parsePattern(`v([\d.]+)\;version:\1`)
		versions := p.resolveVersions("v2.1 v1.0 v2.1 v3.0")
		assert.Equal(t, []string{"2.1", "1.0", "3.0"}, versions)
	})
}

func TestBestVersion(t *testing.T) {
	assert.Equal(t, "2.10.0", bestVersion([]string{"2.9.1", "2.10.0", "1.0"}))
	assert.Equal(t, "", bestVersion(nil))
	assert.Equal(t, "3.0", bestVersion([]string{"3.0"}))
}
