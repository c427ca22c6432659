// Package config は通知サービスの設定を読み込む。
//
// 環境変数（PORT, JWT_SECRET, DB_PATH, ALLOWED_ORIGINS/FRONTEND_URL, WS_SEND_BUFFER）を
// 優先し、任意でYAMLファイルから値を読み込む。
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// デフォルト値。
const (
	defaultPort       = "8086"
	defaultJWTSecret  = "dev-secret-key"
	defaultDBPath     = "/data/notification.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	defaultOrigin     = "http://localhost:3000"
	defaultSendBuffer = 16
)

// Config は通知サービスの設定値。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// JWTSecret はJWT署名の検証に使う秘密鍵。
	JWTSecret string `mapstructure:"jwt_secret"`
	// DBPath はSQLiteのデータソース名。
	DBPath string `mapstructure:"db_path"`
	// AllowedOrigins はCORSとWebSocketで許可するオリジン。"*" で全許可。
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// SendBuffer はWebSocket接続ごとの送信バッファのフレーム数。
	SendBuffer int `mapstructure:"ws_send_buffer"`
}

// Load は設定を読み込む。pathが空でなければYAMLファイルも読み込む。
// 環境変数はファイルの値より優先される。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("port", defaultPort)
	v.SetDefault("jwt_secret", defaultJWTSecret)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("allowed_origins", []string{defaultOrigin})
	v.SetDefault("ws_send_buffer", defaultSendBuffer)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("allowed_origins", "ALLOWED_ORIGINS", "FRONTEND_URL"); err != nil {
		return nil, fmt.Errorf("環境変数のバインドに失敗: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("portが空です")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secretが空です")
	}
	if c.DBPath == "" {
		return errors.New("db_pathが空です")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("ws_send_bufferは1以上である必要があります: %d", c.SendBuffer)
	}
	return nil
}

// splitOrigins はカンマ区切りで渡されたオリジンを展開し、空要素を除く。
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for o := range strings.SplitSeq(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
