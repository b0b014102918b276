package sandbox

import "testing"

func TestCleanCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "plain code untouched",
			code: "print(1+1)",
			want: "print(1+1)",
		},
		{
			name: "surrounding whitespace trimmed",
			code: "  print(1+1)\n\n",
			want: "print(1+1)",
		},
		{
			name: "fenced block with language marker",
			code: "```python\nprint(df.head())\n```",
			want: "print(df.head())",
		},
		{
			name: "fenced block without language marker",
			code: "```\nprint(df.head())\n```",
			want: "print(df.head())",
		},
		{
			name: "fenced block without closing fence",
			code: "```python\nprint(df.head())",
			want: "print(df.head())",
		},
		{
			name: "fenced block with escaped newlines",
			code: `` + "```python" + `\nprint(1)\nprint(2)\n` + "```",
			want: "print(1)\nprint(2)",
		},
		{
			name: "escaped tab inside fence",
			code: "```python\n" + `if x:\n\tprint(x)` + "\n```",
			want: "if x:\n\tprint(x)",
		},
		{
			name: "escaped quotes inside fence",
			code: "```python\n" + `print(\"hi\")` + "\n" + `print(\'lo\')` + "\n```",
			want: `print("hi")` + "\n" + `print('lo')`,
		},
		{
			name: "escaped backslash inside fence",
			code: "```python\n" + `print("a\\\\b")` + "\n```",
			// \n and \t are consumed first, then double backslashes
			// collapse. The table is a pinned contract.
			want: `print("a\\b")`,
		},
		{
			name: "unfenced code is never unescaped",
			code: `print("line\nbreak")`,
			want: `print("line\nbreak")`,
		},
		{
			name: "empty input",
			code: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCode(tt.code); got != tt.want {
				t.Errorf("CleanCode(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
