package domain

import (
	"fmt"
	"time"
)

// Stage はシーンごとの生成工程の種別です。
type Stage string

const (
	StageDialogue Stage = "dialogue"
	StageVoice    Stage = "voice"
	StageImage    Stage = "image"
)

// AllStages は依存順（Dialogue が最上流）に並んだ全工程です。
var AllStages = []Stage{StageDialogue, StageVoice, StageImage}

// ParseStage は文字列を Stage に変換します。
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageDialogue, StageVoice, StageImage:
		return Stage(s), nil
	default:
		return "", fmt.Errorf("不明な工程名です: %q (dialogue / voice / image のいずれかを指定してください)", s)
	}
}

// StageStatus はシーン×工程ごとの進行状態です。
type StageStatus string

const (
	StatusNotStarted StageStatus = "not_started"
	StatusInProgress StageStatus = "in_progress"
	StatusReady      StageStatus = "ready"
	StatusFailed     StageStatus = "failed"
	// StatusStale は上流の再生成によって無効化された状態です。
	// 成果物自体はプレビュー用に残りますが、タイムライン組み立てには使えません。
	StatusStale StageStatus = "stale"
)

// StageArtifact は1シーン・1工程の生成結果です。
type StageArtifact struct {
	Stage       Stage  `json:"stage"`
	SceneNumber int    `json:"scene_number"`
	// Version は 0 始まりで、再生成のたびにストアが +1 します。
	Version    int    `json:"version"`
	ContentRef string `json:"content_ref,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`

	// Data は生成直後のバイト列です。永続化時は ContentRef に退避され、
	// JSON には含めません。
	Data []byte `json:"-"`

	// MeasuredDuration は音声工程のみ意味を持つ、合成結果の実測秒数です。
	MeasuredDuration float64 `json:"measured_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
