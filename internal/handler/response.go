package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う（詳細はログのみ）
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// redirectOnError はドメインエラーをerrorクエリ付きのリダイレクトに変換する。
// APIError以外のエラー（永続化の失敗など）は500を返す。
func redirectOnError(w http.ResponseWriter, r *http.Request, path string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		http.Redirect(w, r, middleware.WithQuery(path, "error", apiErr.Code), http.StatusSeeOther)
		return
	}
	handleServiceError(w, err)
}

// redirectWithNotice はnoticeクエリ付きでリダイレクトする。
func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, notice string) {
	http.Redirect(w, r, middleware.WithQuery(path, "notice", notice), http.StatusSeeOther)
}

// validateForm はフォーム構造体を検証し、失敗した場合は不正なフィールド名を含むVALIDATION_FAILEDエラーを返す。
func validateForm(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return model.NewValidationError(strings.Join(fields, ", "))
}

// formValue はフォーム値の前後空白を除去して返す。
func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

// formDescriptor はフォーム画面の代わりに返すJSON。
type formDescriptor struct {
	Form   string   `json:"form"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
	Error  string   `json:"error,omitempty"`
	Notice string   `json:"notice,omitempty"`

	// CSRFToken はフォーム送信時にcsrf_tokenとして返す値。
	CSRFToken string `json:"csrf_token,omitempty"`
}

// newFormDescriptor はリダイレクトで渡されたerror/noticeクエリを含むフォーム記述子を生成する。
func newFormDescriptor(r *http.Request, form, action string, fields ...string) formDescriptor {
	q := r.URL.Query()
	return formDescriptor{
		Form:   form,
		Action: action,
		Fields: fields,
		Error:  q.Get("error"),
		Notice: q.Get("notice"),

		CSRFToken: middleware.CSRFToken(r.Context()),
	}
}
