package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BuildPrompt names every field, asks for a single JSON object with empty
// strings for unknown fields, and anchors the format with an example.
func BuildPrompt(fields []string) string {
	var b strings.Builder
	b.WriteString("以下の保険見積書から ")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString(" を抽出し、**必ず**指定されたJSON形式で返してください。\n")
	b.WriteString("不明な項目は空文字にしてください。項目を省略しないでください。\n")
	b.WriteString("JSONオブジェクトのみを返し、説明文やコードブロックは付けないでください。\n")
	b.WriteString("JSON形式の例: ")
	b.WriteString(ExampleJSON(fields))
	return b.String()
}

// BuildTextPayload wraps the extracted document text for the user turn.
func BuildTextPayload(text string) string {
	return "見積書の本文:\n" + strings.TrimSpace(text)
}

// ExampleJSON renders {"f1": "", "f2": ""} in field order.
func ExampleJSON(fields []string) string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Write(marshalString(f))
		b.WriteString(`: ""`)
	}
	b.WriteByte('}')
	return b.String()
}

func marshalString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
