// Package backend は、台本・音声・画像の生成とレンダリングを担う
// 外部バックエンドの契約を定義します。オーケストレータはこの契約だけに
// 依存し、具体的なバックエンドは差し替え可能です。
package backend

import (
	"context"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/timeline"
)

// ScriptRequest は台本生成の指示です。
type ScriptRequest struct {
	Topic       string
	DurationSec int
	SceneCount  int
	Style       string
	Instruction string
}

// ScriptGenerator はトピックから台本全体を、または1シーンだけを生成します。
type ScriptGenerator interface {
	Generate(ctx context.Context, req ScriptRequest) (domain.ScriptDocument, error)
	// RegenerateScene は既存の台本を文脈として n 番目のシーンだけを作り直します。
	RegenerateScene(ctx context.Context, doc domain.ScriptDocument, n int, instruction string) (domain.Scene, error)
}

// VoiceClip は音声合成の結果です。Duration は合成バックエンドが報告する
// クリップの実測秒数で、シーンの長さの正となる値です。
type VoiceClip struct {
	Data     []byte
	MimeType string
	Duration float64
}

// VoiceSynthesizer はテキストを音声クリップへ変換します。
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text string) (VoiceClip, error)
}

// ImageData は画像生成の結果です。
type ImageData struct {
	Data     []byte
	MimeType string
}

// ImageGenerator はプロンプトから静止画を生成します。
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) (ImageData, error)
}

// Renderer はタイムラインのセグメント列をそのまま消費して動画ファイルを
// 書き出します。
type Renderer interface {
	Render(ctx context.Context, segments []timeline.Segment, outPath string) error
}
