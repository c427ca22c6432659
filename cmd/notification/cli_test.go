package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/swish/pkg/middleware"
)

// executeCLI はルートコマンドを引数付きで実行し、標準出力と結果を返す。
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	t.Run("設定の署名鍵でトークンを発行すること", func(t *testing.T) {
		stdout, err := executeCLI(t, "token", "--user", "user-a", "--email", "a@campus.example.edu")
		require.NoError(t, err)

		claims, err := middleware.ParseJWT("cli-secret", strings.TrimSpace(stdout))
		require.NoError(t, err)
		assert.Equal(t, "user-a", claims.UserID)
		assert.Equal(t, "a@campus.example.edu", claims.Email)
	})

	t.Run("--user未指定はエラーになること", func(t *testing.T) {
		_, err := executeCLI(t, "token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `required flag(s) "user" not set`)
	})
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	t.Run("通知トリガーをBearerトークン付きで送信すること", func(t *testing.T) {
		t.Parallel()

		var (
			gotAuth string
			gotBody map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/internal/notify", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"n-1","message":"Alice liked your post"}`)
		}))
		t.Cleanup(srv.Close)

		stdout, err := executeCLI(t, "send", "--url", srv.URL, "--token", "tok", "--to", "user-b", "--type", "like", "--subject", "post-1")
		require.NoError(t, err)

		assert.Equal(t, "Bearer tok", gotAuth)
		assert.Equal(t, map[string]any{"recipient_id": "user-b", "type": "like", "subject_id": "post-1"}, gotBody)
		assert.Contains(t, stdout, `"id": "n-1"`)
	})

	t.Run("サーバーのエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"通知の保存に失敗しました"}`)
		}))
		t.Cleanup(srv.Close)

		_, err := executeCLI(t, "send", "--url", srv.URL, "--token", "tok", "--to", "user-b", "--type", "like")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})
}
