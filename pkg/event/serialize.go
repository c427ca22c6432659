package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyName はイベント名が空のEnvelopeを生成しようとした場合に返される。
var ErrEmptyName = errors.New("イベント名が空です")

// New は新しいEnvelopeを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(name Name, data any) (*Envelope, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	return &Envelope{
		ID:     uuid.New().String(),
		Event:  name,
		Data:   jsonData,
		SentAt: time.Now().UTC(),
	}, nil
}

// Encode はイベントを生成してWebSocketフレーム用のバイト列に変換する。
func Encode(name Name, data any) ([]byte, error) {
	env, err := New(name, data)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("Envelopeのシリアライズに失敗: %w", err)
	}
	return b, nil
}

// Decode はWebSocketフレームのバイト列をEnvelopeに変換する。
func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("Envelopeのデシリアライズに失敗: %w", err)
	}
	if env.Event == "" {
		return nil, ErrEmptyName
	}
	return &env, nil
}

// DecodeData はEnvelopeのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Envelope) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
