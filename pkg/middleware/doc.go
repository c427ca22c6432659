// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの発行と検証、パニックリカバリ、CORS設定を含む。
// JWTの検証ロジックはHTTPのBearer認証とWebSocketハンドシェイクで共有する。
package middleware
