package notification

import (
	"fmt"
	"log"
	"strings"
)

// TokenVerifier はハンドシェイクで提示されたトークンを検証する外部コラボレーター。
type TokenVerifier interface {
	// Verify はトークンを検証し、認証済みユーザーIDを返す。
	Verify(token string) (string, error)
}

// Session は認証済みのライブ接続試行を表す。
// Gate.Authenticateの成功時にのみ生成される。
type Session struct {
	userID string
}

// UserID は認証済みユーザーIDを返す。
func (s Session) UserID() string {
	return s.userID
}

// Gate はライブ接続をRegistryに登録する前に認証を行う。
type Gate struct {
	verifier TokenVerifier
	registry *Registry
}

// NewGate は新しいGateを生成する。
func NewGate(verifier TokenVerifier, registry *Registry) *Gate {
	return &Gate{verifier: verifier, registry: registry}
}

// Authenticate はハンドシェイクのメタデータで渡された認証情報を検証する。
// 先頭の "Bearer " は取り除いてから検証する。
// 認証情報が空の場合はErrMissingCredential、検証に失敗した場合はErrInvalidCredentialを返す。
// 退会済みユーザーのトークンであっても検証に成功すれば接続を許可する。
func (g *Gate) Authenticate(credential string) (Session, error) {
	token := strings.TrimSpace(credential)
	if token == "Bearer" {
		token = ""
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Session{}, ErrMissingCredential
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if userID == "" {
		return Session{}, ErrInvalidCredential
	}
	return Session{userID: userID}, nil
}

// Admit は認証済みセッションの接続をRegistryに登録する。
func (g *Gate) Admit(s Session, connectionID string) error {
	if s.userID == "" {
		return ErrMissingCredential
	}
	g.registry.Register(s.userID, connectionID)
	log.Printf("[Gate] 接続を登録しました: user=%s conn=%s", s.userID, connectionID)
	return nil
}

// Release は切断された接続をRegistryから取り除く。
// 登録が完了していない接続に対して呼ばれても問題ない。
func (g *Gate) Release(s Session, connectionID string) {
	g.registry.Unregister(s.userID, connectionID)
	log.Printf("[Gate] 接続を解除しました: user=%s conn=%s", s.userID, connectionID)
}
