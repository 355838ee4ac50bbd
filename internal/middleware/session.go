// Package middleware はHTTPミドルウェアを提供する。
package middleware

import "net/http"

// sessionCookieName はプロバイダーのアクセストークンを保持するCookieの名前。
const sessionCookieName = "session_token"

// SessionCookieConfig はセッションCookieの属性設定。
type SessionCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// WriteSessionCookie はプロバイダーのアクセストークンをHTTP Only Cookieに書き込む。
// トークン自体が唯一のセッション状態であり、サーバー側にセッションストアは持たない。
func WriteSessionCookie(w http.ResponseWriter, token string, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを失効させる。
func ClearSessionCookie(w http.ResponseWriter, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadSessionToken はリクエストからセッショントークンを読み取る。
// Cookieが存在しない場合は空文字列を返す。
func ReadSessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
