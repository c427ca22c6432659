package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nao1215/swish/internal/config"
	"github.com/nao1215/swish/pkg/event"
	"github.com/nao1215/swish/pkg/middleware"
)

// Repository はサーバーが必要とする永続化層。
type Repository interface {
	Store
	UserDirectory
	// UpsertUser はユーザーの表示情報を作成または更新する。
	UpsertUser(ctx context.Context, u User) error
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサービスの設定。
	cfg *config.Config
	// repo は通知とユーザー表示情報の永続化層。
	repo Repository
	// registry はユーザーごとのライブ接続の対応表。
	registry *Registry
	// gate はライブ接続の認証を行う。
	gate *Gate
	// hub はWebSocket接続を保持し、フレームを送信する。
	hub *Hub
	// factory は通知の生成と配信を行う。
	factory *Factory
	// query は通知の照会と既読管理を行う。
	query *Query
	// upgrader はHTTP接続をWebSocketに切り替える。
	upgrader websocket.Upgrader
}

// NewServer は新しい通知サーバーを生成する。
// Registry、Hub、Dispatcherはプロセスごとに1つだけ生成し、各コンポーネントへ注入する。
func NewServer(cfg *config.Config, repo Repository) *Server {
	registry := NewRegistry()
	hub := NewHub()
	enricher := NewEnricher(repo)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:   router,
		cfg:      cfg,
		repo:     repo,
		registry: registry,
		gate:     NewGate(middleware.NewJWTVerifier(cfg.JWTSecret), registry),
		hub:      hub,
		factory:  NewFactory(repo, enricher, NewDispatcher(registry, hub)),
		query:    NewQuery(repo, enricher),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()

	return s
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Factory は同一プロセス内のドメインハンドラから通知を発生させるためのFactoryを返す。
func (s *Server) Factory() *Factory {
	return s.factory
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとライブ接続を閉じて停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[Notification] サーバーを停止します。ライブ接続数: %d", s.hub.Len())

	// 新規のアップグレードを止めてからライブ接続を閉じる。
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.Close()
	if err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ライブ接続（認証はハンドシェイクのtokenクエリで行う）
	s.router.GET("/ws", s.handleLive())

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.cfg.JWTSecret))
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読件数取得
			notifications.GET("/unread/count", s.handleUnreadCount())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
		}

		// 送信者の表示情報を同期する
		api.PUT("/profile", s.handleUpdateProfile())

		// 通知トリガー（内部API - いいね・コメント・フォローの各ハンドラから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/notify", s.handleNotify())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"service":      "notification",
			"online_users": s.registry.OnlineUsers(),
		})
	})
}

// checkOrigin はWebSocketハンドシェイクのOriginを検証する。
// ブラウザ以外のクライアントはOriginを送らないため、その場合は許可する。
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// handleLive はWebSocket接続を確立し、切断まで保持するハンドラ。
// 認証に失敗した接続試行はアップグレード前に拒否し、Registryには登録しない。
func (s *Server) handleLive() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.gate.Authenticate(c.Query("token"))
		if err != nil {
			msg := "トークンが無効です"
			if errors.Is(err, ErrMissingCredential) {
				msg = "トークンが必要です"
			}
			log.Printf("[Gate] 接続を拒否しました: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgradeがエラーレスポンスを書き込み済み
			log.Printf("[Hub] WebSocketへの切り替えに失敗: %v", err)
			return
		}

		cl := newClient(uuid.New().String(), session.UserID(), conn, s.cfg.SendBuffer)
		if err := s.hub.attach(cl); err != nil {
			log.Printf("[Hub] 停止中のため接続を拒否しました: conn=%s", cl.id)
			_ = conn.Close()
			return
		}
		go cl.writePump()

		if err := s.gate.Admit(session, cl.id); err != nil {
			cl.close()
			s.hub.detach(cl.id)
			return
		}
		if err := s.hub.Send(cl.id, string(event.NameConnected), event.ConnectedData{
			ConnectionID: cl.id,
			UserID:       cl.userID,
		}); err != nil {
			log.Printf("[Hub] 接続確立イベントの送信に失敗: conn=%s: %v", cl.id, err)
		}

		cl.readPump()

		s.gate.Release(session, cl.id)
		s.hub.detach(cl.id)
		cl.close()
	}
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
// クエリパラメータlimitとoffsetで範囲を指定できる。limit未指定時は全件を返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		page, err := parsePage(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		payloads, err := s.query.List(c.Request.Context(), userID, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, payloads)
	}
}

// parsePage はlimitとoffsetのクエリパラメータを解析する。
func parsePage(c *gin.Context) (Page, error) {
	var page Page
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, errors.New("limitは0以上の整数で指定してください")
		}
		page.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Page{}, errors.New("offsetは0以上の整数で指定してください")
		}
		page.Offset = n
	}
	return page, nil
}

// handleUnreadCount は認証済みユーザーの未読通知件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.query.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			log.Printf("未読件数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
// 他のユーザーの通知や存在しない通知を指定しても成功を返す。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.query.MarkRead(c.Request.Context(), userID, c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.query.MarkAllRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// profileRequest は表示情報更新リクエストのJSON構造。
type profileRequest struct {
	// Name は表示名。
	Name string `json:"name" binding:"required"`
	// AvatarURL はアバター画像のURL。
	AvatarURL *string `json:"avatar_url"`
}

// handleUpdateProfile は認証済みユーザーの表示情報を更新するハンドラ。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.repo.UpsertUser(c.Request.Context(), User{ID: userID, Name: req.Name, AvatarURL: req.AvatarURL}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "表示情報の更新に失敗しました"})
			log.Printf("表示情報更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// notifyRequest は通知トリガーのJSON構造。送信者は認証済みユーザー自身となる。
type notifyRequest struct {
	// RecipientID は通知先のユーザーID。
	RecipientID string `json:"recipient_id" binding:"required"`
	// Type は通知の種類。
	Type Type `json:"type" binding:"required"`
	// SubjectID は対象オブジェクトのID。
	SubjectID *string `json:"subject_id"`
	// Message は表示用メッセージ。省略時は自動で組み立てる。
	Message string `json:"message"`
}

// handleNotify は通知を作成して受信者のライブ接続へ配信するハンドラ。
// 通知の保存に失敗した場合でも呼び出し元のドメイン操作は成功させられるよう、503を返すにとどめる。
func (s *Server) handleNotify() gin.HandlerFunc {
	return func(c *gin.Context) {
		senderID := middleware.GetUserID(c)
		if senderID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req notifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if req.RecipientID == senderID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自分自身への通知は作成できません"})
			return
		}

		payload, err := s.factory.Notify(c.Request.Context(), Trigger{
			RecipientID: req.RecipientID,
			SenderID:    senderID,
			Type:        req.Type,
			SubjectID:   req.SubjectID,
			Message:     req.Message,
		})
		switch {
		case errors.Is(err, ErrInvalidTrigger):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, ErrPersistence):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "通知の保存に失敗しました"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			log.Printf("通知作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, payload)
	}
}
