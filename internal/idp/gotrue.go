package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/memberport/internal/model"
)

// MetricsCollector はプロバイダー呼び出しレイテンシの記録先。
type MetricsCollector interface {
	RecordProviderLatency(operation string, duration time.Duration)
}

// GoTrueConfig はGoTrue互換プロバイダーの設定。
type GoTrueConfig struct {
	BaseURL string // 例: https://xxxx.supabase.co/auth/v1
	APIKey  string
	Timeout time.Duration

	// レイテンシ記録先。nilの場合は何も記録しない
	Metrics MetricsCollector

	// テスト用にオーバーライド可能なHTTPクライアント
	HTTPClient *http.Client
}

// GoTrueProvider はGoTrue互換HTTP APIによる認証プロバイダー実装。
// リトライ・内部状態は一切持たない。
type GoTrueProvider struct {
	config  GoTrueConfig
	client  *http.Client
	metrics MetricsCollector
}

// NewGoTrueProvider はGoTrueProviderを生成する。
func NewGoTrueProvider(config GoTrueConfig) *GoTrueProvider {
	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GoTrueProvider{config: config, client: client, metrics: config.Metrics}
}

// observeLatency は操作開始からの経過時間を記録する。失敗した呼び出しも含む。
func (p *GoTrueProvider) observeLatency(operation string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordProviderLatency(operation, time.Since(start))
}

// tokenResponse はトークン系エンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        userResponse `json:"user"`
}

// userResponse はプロバイダーのユーザー表現。
type userResponse struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	UserMetadata json.RawMessage `json:"user_metadata"`
}

// userMetadata は登録時メタデータ。存在しないキーはnilのまま残る。
type userMetadata struct {
	Name            *string `json:"name"`
	Username        *string `json:"username"`
	AlternateEmail  *string `json:"alternate_email"`
	DiscordNickname *string `json:"discord_nickname"`
	GGPokerUsername *string `json:"ggpoker_username"`
}

// AuthenticateWithPassword はemailとパスワードで認証しセッションを発行する。
func (p *GoTrueProvider) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	defer p.observeLatency("password_grant", time.Now())

	body := map[string]string{"email": email, "password": password}

	var resp tokenResponse
	if err := p.post(ctx, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, fmt.Errorf("password grant failed: %w", err)
	}

	return sessionFromToken(&resp)
}

// RequestPasswordless はマジックリンクの送信をプロバイダーに依頼する。
func (p *GoTrueProvider) RequestPasswordless(ctx context.Context, email, redirectTo string) error {
	defer p.observeLatency("magiclink", time.Now())

	body := map[string]string{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}

	if err := p.post(ctx, "/magiclink", "", body, nil); err != nil {
		return fmt.Errorf("magiclink request failed: %w", err)
	}
	return nil
}

// ExchangeCode はワンタイムコードをセッションに交換する。
func (p *GoTrueProvider) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	defer p.observeLatency("verify", time.Now())

	body := map[string]string{"type": "magiclink", "token": code}

	var resp tokenResponse
	if err := p.post(ctx, "/verify", "", body, &resp); err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	return sessionFromToken(&resp)
}

// CurrentIdentity はアクセストークンから現在のアイデンティティを取得する。
func (p *GoTrueProvider) CurrentIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	defer p.observeLatency("user", time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	p.setHeaders(req, accessToken)

	respBody, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current identity: %w", err)
	}

	var user userResponse
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("empty user id in response")
	}

	identity := identityFromUser(&user)
	return &identity, nil
}

// SignOut はプロバイダー側のセッションを失効させる。
func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	defer p.observeLatency("logout", time.Now())

	if err := p.post(ctx, "/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out failed: %w", err)
	}
	return nil
}

// post はJSONボディをPOSTし、レスポンスをoutにデコードする。outがnilの場合はボディを捨てる。
func (p *GoTrueProvider) post(ctx context.Context, path, accessToken string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.setHeaders(req, accessToken)

	respBody, err := p.do(req)
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// do はリクエストを実行し、HTTPステータスをAPIErrorの分類に写像する。
// タイムアウト・接続エラー・5xxはUPSTREAM_UNAVAILABLEとして区別される。
func (p *GoTrueProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("provider timeout: %w", model.NewUpstreamUnavailableError())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("provider timeout: %w", model.NewUpstreamUnavailableError())
		}
		return nil, fmt.Errorf("provider request failed (%v): %w", err, model.NewUpstreamUnavailableError())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("provider rate limit: %w", model.NewRateLimitedError())
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider returned status %d: %w", resp.StatusCode, model.NewUpstreamUnavailableError())
	default:
		// 400/401/404等: 認証情報またはコードが無効
		return nil, classifyAuthFailure(req.URL.Path, resp.StatusCode, body)
	}
}

// classifyAuthFailure は4xxレスポンスをエンドポイントに応じたAuthFailureに分類する。
// プロバイダーの理由は不透明なまま、分類コードだけを呼び出し側に渡す。
func classifyAuthFailure(path string, statusCode int, body []byte) error {
	if len(body) > 512 {
		body = body[:512]
	}
	if strings.HasSuffix(path, "/verify") {
		return fmt.Errorf("provider returned status %d: %s: %w", statusCode, string(body), model.NewCodeInvalidError())
	}
	return fmt.Errorf("provider returned status %d: %s: %w", statusCode, string(body), model.NewInvalidCredentialError())
}

// setHeaders はAPIキーと（あれば）Bearerトークンを設定する。
func (p *GoTrueProvider) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", p.config.APIKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// sessionFromToken はトークンレスポンスをSessionに変換する。
func sessionFromToken(resp *tokenResponse) (*Session, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	if resp.User.ID == "" {
		return nil, fmt.Errorf("empty user id in response")
	}

	return &Session{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		Identity:    identityFromUser(&resp.User),
	}, nil
}

// identityFromUser はプロバイダーのユーザー表現をIdentityに変換する。
// メタデータの欠けているキーはnilのまま残し、マージ時に既存値を維持できるようにする。
func identityFromUser(user *userResponse) Identity {
	var meta userMetadata
	if len(user.UserMetadata) > 0 {
		// メタデータの形式不正は致命的ではないため無視する
		_ = json.Unmarshal(user.UserMetadata, &meta)
	}

	return Identity{
		ID:    user.ID,
		Email: user.Email,
		Metadata: RegistrationMeta{
			Name:            meta.Name,
			Username:        meta.Username,
			AlternateEmail:  meta.AlternateEmail,
			DiscordNickname: meta.DiscordNickname,
			GGPokerUsername: meta.GGPokerUsername,
		},
	}
}

// compile-time interface check
var _ Provider = (*GoTrueProvider)(nil)
