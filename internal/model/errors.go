// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, membership, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredential   = "AUTH_INVALID_CREDENTIAL"
	ErrCodeRateLimited         = "AUTH_RATE_LIMITED"
	ErrCodeCodeInvalid         = "AUTH_CODE_INVALID"
	ErrCodeProfileConflict     = "PROFILE_CONFLICT"
	ErrCodeNotAuthorized       = "NOT_AUTHORIZED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeInvalidSearchQuery  = "INVALID_SEARCH_QUERY"
)

// NewInvalidCredentialError は認証失敗エラーを生成する。
// 自動リトライはせず、呼び出し側が再入力を促す。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewRateLimitedError は認証プロバイダーによるレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "認証の試行回数が上限に達しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCodeInvalidError はワンタイムコードが無効（期限切れ・使用済み・不明）な場合のエラーを生成する。
func NewCodeInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCodeInvalid,
		Message:  "確認リンクが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "ログイン画面から確認リンクを再送信してください。",
	}
}

// NewProfileConflictError は同一emailで異なる外部IDのプロフィールが既に存在する場合の
// エラーを生成する。自動マージは行わず、手動での解決を要求する。
func NewProfileConflictError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileConflict,
		Message:  fmt.Sprintf("このメールアドレスは別のアカウントで既に登録されています: %s", email),
		Category: "auth",
		Action:   "以前と同じログイン方法をご利用いただくか、サポートにお問い合わせください。",
	}
}

// NewNotAuthorizedError はセッションは有効だが権限が不足している場合のエラーを生成する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  "このページにアクセスする権限がありません。",
		Category: "auth",
		Action:   "ダッシュボードに戻ってください。",
	}
}

// NewUpstreamUnavailableError はデータストアまたは認証プロバイダーの
// タイムアウト・5xxを表す一時的エラーを生成する。
// 重複書き込みを避けるため、システム側では自動リトライしない。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "外部サービスが一時的に利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(profileID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", profileID),
		Category: "validation",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidSearchQueryError は検索クエリが無効な場合のエラーを生成する。
func NewInvalidSearchQueryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSearchQuery,
		Message:  "検索キーワードを入力してください。",
		Category: "validation",
		Action:   "メールアドレスの一部を入力して検索してください。",
	}
}
