package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptNamesEveryField(t *testing.T) {
	fields := []string{"氏名", "生年月日", "保険会社名"}
	p := BuildPrompt(fields)

	assert.Contains(t, p, "氏名, 生年月日, 保険会社名")
	assert.Contains(t, p, "JSON")
	assert.Contains(t, p, "空文字")
	assert.True(t, strings.HasSuffix(p, `{"氏名": "", "生年月日": "", "保険会社名": ""}`))
}

func TestExampleJSONIsValidAndOrdered(t *testing.T) {
	fields := []string{"b<&>", `q"uote`, "a"}
	ex := ExampleJSON(fields)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(ex), &m))
	assert.Len(t, m, 3)
	assert.Less(t, strings.Index(ex, "b<&>"), strings.Index(ex, `q\"uote`))
	assert.Less(t, strings.Index(ex, `q\"uote`), strings.Index(ex, `"a"`))
}
