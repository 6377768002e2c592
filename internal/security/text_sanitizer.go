// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述（氏名、住所、支払方法など）から
// HTMLタグを除去し、管理画面やAPI応答でのXSSリスクを防ぐ。
// bluemondayのStrictPolicyを使用し、すべてのタグと属性を除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 8

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため元の文字へ戻すが、
// 戻した結果にタグが現れることがあるので、出力が変わらなくなるまで繰り返す。
// 収束しない場合は山括弧とアンパサンドを落とす。
func (s *textSanitizer) Sanitize(raw string) string {
	out := strings.TrimSpace(raw)
	for i := 0; i < maxSanitizePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(out)))
		if next == out {
			return out
		}
		out = next
	}
	return strings.NewReplacer("<", "", ">", "", "&", "").Replace(out)
}
