package security

import (
	"strings"
	"testing"
)

// TestSanitize_StripsTags はタグが除去され本文のみ残ることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "Asha Kumar",
			want:  "Asha Kumar",
		},
		{
			name:  "強調タグが除去される",
			input: "<b>12</b> Lotus Lane",
			want:  "12 Lotus Lane",
		},
		{
			name:  "前後の空白が除去される",
			input: "  Cash on delivery \n",
			want:  "Cash on delivery",
		},
		{
			name:  "アンパサンドは元の文字のまま保存される",
			input: "Tom & Jerry",
			want:  "Tom & Jerry",
		},
		{
			name:  "空文字列は空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_ForbiddenTags はscriptやイベント属性が残らないことを検証する。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		`<script>alert('xss')</script>Asha`,
		`<img src="x" onerror="alert(1)">Asha`,
		`<a href="javascript:alert(1)">Asha</a>`,
		`<iframe src="https://evil.example.com"></iframe>Asha`,
		`&lt;script&gt;alert(1)&lt;/script&gt;Asha`,
		`&amp;lt;img src=x onerror=alert(1)&amp;gt;Asha`,
	}
	for _, in := range inputs {
		got := sanitizer.Sanitize(in)
		for _, bad := range []string{"<script", "onerror", "javascript:", "<iframe", "<img", "<a"} {
			if strings.Contains(got, bad) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", in, got, bad)
			}
		}
		if !strings.Contains(got, "Asha") {
			t.Errorf("Sanitize(%q) = %q, should keep text content", in, got)
		}
	}
}

// TestSanitize_Idempotent はサニタイズ済みの値を再度サニタイズしても変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		"<p>12 <em>Lotus</em> Lane</p>",
		"Tom & Jerry",
		"a < b",
		`&lt;script&gt;alert(1)&lt;/script&gt;Asha`,
		`&amp;lt;b&amp;gt;Asha&amp;lt;/b&amp;gt;`,
		"&amp;amp;amp;amp;amp;amp;amp;amp;amp;lt;i&gt;deep",
	}
	for _, in := range inputs {
		once := sanitizer.Sanitize(in)
		twice := sanitizer.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize(Sanitize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

// エンティティでエンコードされたタグも復元後に除去されること
func TestSanitize_EntityEncodedMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.Sanitize("&lt;script&gt;alert(1)&lt;/script&gt;Asha")
	if strings.Contains(got, "<") {
		t.Errorf("Sanitize returned raw markup: %q", got)
	}
	if !strings.Contains(got, "Asha") {
		t.Errorf("Sanitize(...) = %q, should keep text content", got)
	}
}
