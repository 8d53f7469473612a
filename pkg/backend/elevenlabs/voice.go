// Package elevenlabs は ElevenLabs API を使った音声合成バックエンドです。
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hajimehoshi/go-mp3"

	"github.com/otochin/createmovie/pkg/backend"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModelID = "eleven_multilingual_v2"

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75

	mimeTypeMP3 = "audio/mpeg"
)

// HTTPDoer は音声合成に使うHTTPクライアントを表します。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VoiceBackend は backend.VoiceSynthesizer の ElevenLabs 実装です。
type VoiceBackend struct {
	client  HTTPDoer
	baseURL string
	apiKey  string
	voiceID string
	modelID string
}

// Option は VoiceBackend の挙動を調整します。
type Option func(*VoiceBackend)

// WithBaseURL はAPIのエンドポイントを差し替えます。テスト用です。
func WithBaseURL(url string) Option {
	return func(vb *VoiceBackend) { vb.baseURL = url }
}

// WithModelID は合成モデルを差し替えます。
func WithModelID(modelID string) Option {
	return func(vb *VoiceBackend) { vb.modelID = modelID }
}

// New は ElevenLabs バックエンドを初期化します。
func New(client HTTPDoer, apiKey, voiceID string, opts ...Option) *VoiceBackend {
	vb := &VoiceBackend{
		client:  client,
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: defaultModelID,
	}
	for _, opt := range opts {
		opt(vb)
	}
	return vb
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize はセリフをMP3音声に変換し、実測の再生時間を添えて返します。
func (vb *VoiceBackend) Synthesize(ctx context.Context, dialogue string) (backend.VoiceClip, error) {
	body, err := json.Marshal(synthesizeRequest{
		Text:    dialogue,
		ModelID: vb.modelID,
		VoiceSettings: voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
		},
	})
	if err != nil {
		return backend.VoiceClip{}, fmt.Errorf("リクエストボディの作成に失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", vb.baseURL, vb.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backend.VoiceClip{}, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", vb.apiKey)

	slog.Info("VoiceBackend: Calling ElevenLabs API", "voice_id", vb.voiceID, "model_id", vb.modelID)
	resp, err := vb.client.Do(req)
	if err != nil {
		return backend.VoiceClip{}, fmt.Errorf("音声合成APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return backend.VoiceClip{}, fmt.Errorf("音声合成APIがエラーを返しました (status=%d): %s", resp.StatusCode, snippet)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.VoiceClip{}, fmt.Errorf("音声データの読み取りに失敗しました: %w", err)
	}

	duration, err := measureDuration(data)
	if err != nil {
		return backend.VoiceClip{}, fmt.Errorf("音声の再生時間の計測に失敗しました: %w", err)
	}

	return backend.VoiceClip{
		Data:     data,
		MimeType: mimeTypeMP3,
		Duration: duration,
	}, nil
}

// measureDuration はMP3をデコードして再生時間（秒）を求めます。
// デコード後のPCMは16bitステレオなので、1サンプルあたり4バイトです。
func measureDuration(data []byte) (float64, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("MP3のデコードに失敗しました: %w", err)
	}
	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		return 0, fmt.Errorf("不正なサンプルレートです: %d", sampleRate)
	}
	return float64(decoder.Length()) / 4 / float64(sampleRate), nil
}
