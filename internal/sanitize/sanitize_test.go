package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain code passes through",
			raw:  `print("Average mobile_speed: 42.0")`,
			want: `print("Average mobile_speed: 42.0")`,
		},
		{
			name: "tagged fence",
			raw:  "Here you go:\n```javascript\nvar result = 1;\nprint(result);\n```\nHope that helps!",
			want: "var result = 1;\nprint(result);",
		},
		{
			name: "untagged fence",
			raw:  "```\nprint(1)\n```",
			want: "print(1)",
		},
		{
			name: "multiple fences joined in order",
			raw:  "```js\nvar a = 1;\n```\nthen\n```python\nprint(a)\n```",
			want: "var a = 1;\n\nprint(a)",
		},
		{
			name: "crlf normalized",
			raw:  "```js\r\nvar a = 1;\r\nprint(a);\r\n```",
			want: "var a = 1;\nprint(a);",
		},
		{
			name: "bare language line",
			raw:  "javascript\nprint(1)",
			want: "print(1)",
		},
		{
			name: "language line inside fence",
			raw:  "```\npython\nprint(1)\n```",
			want: "print(1)",
		},
		{
			name: "unterminated fence",
			raw:  "```js\nprint(1)",
			want: "print(1)",
		},
		{
			name: "lone language word kept",
			raw:  "js",
			want: "js",
		},
		{
			name: "whitespace only",
			raw:  "  \n\t ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.raw))
		})
	}
}

func FuzzCodeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"",
		"print(1)",
		"```js\nprint(1)\n```",
		"```\n```\n```",
		"javascript\njs\n\npython\nx",
		"a\r```\nb",
		"\r\r\n```py \nprint(2)```",
		"``````",
		"`````js\n1\n``",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		once := Code(raw)
		if twice := Code(once); twice != once {
			t.Fatalf("not idempotent:\nraw:   %q\nonce:  %q\ntwice: %q", raw, once, twice)
		}
	})
}
