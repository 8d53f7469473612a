// Package timeline は、全シーンが Ready に達したランから最終的な
// レンダリング計画（セグメント列）を組み立てます。
package timeline

import (
	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/store"
)

// DefaultCrossfadeSeconds はセグメント間クロスフェードの既定秒数です。
const DefaultCrossfadeSeconds = 0.5

// Segment は1シーンぶんのレンダリング指示です。
// 画像はシーンの長さだけ静止表示し、音声は1回だけ全長再生します。
type Segment struct {
	SceneNumber int     `json:"scene_number"`
	Duration    float64 `json:"duration"`

	// ImageRef / VoiceRef は成果物の参照（ContentRef）です。
	ImageRef     string `json:"image_ref"`
	VoiceRef     string `json:"voice_ref"`
	ImageVersion int    `json:"image_version"`
	VoiceVersion int    `json:"voice_version"`

	Subtitles []domain.SubtitleInterval `json:"subtitles,omitempty"`

	// Crossfade は次のセグメントへのクロスフェード秒数です。
	// 末尾のセグメントでは常に 0 です（先頭の前にも入りません）。
	Crossfade float64 `json:"crossfade"`
}

// Options は組み立てポリシーの設定です。
type Options struct {
	CrossfadeSeconds float64
}

// Assembler はランの現在状態からセグメント列を導出します。
// 出力は状態の純粋な関数であり、途中で状態が変わらない限り
// 何度呼んでも同一の結果になります。
type Assembler struct {
	opts Options
}

// NewAssembler は Assembler を生成します。
func NewAssembler(opts Options) *Assembler {
	if opts.CrossfadeSeconds < 0 {
		opts.CrossfadeSeconds = 0
	}
	return &Assembler{opts: opts}
}

// Assemble は全シーンの Dialogue / Voice / Image が Ready であることを
// 検証し、シーン番号順のセグメント列を返します。Ready でない工程を持つ
// シーンが1つでもあれば IncompleteRunError を返し、部分的な組み立ては
// 行いません。ストアの状態には一切触れません。
func (a *Assembler) Assemble(rs *store.RunState) ([]Segment, error) {
	var incomplete []int
	for n := 1; n <= rs.SceneCount(); n++ {
		statuses, err := rs.SceneStatuses(n)
		if err != nil {
			return nil, err
		}
		for _, stage := range domain.AllStages {
			if statuses[stage] != domain.StatusReady {
				incomplete = append(incomplete, n)
				break
			}
		}
	}
	if len(incomplete) > 0 {
		return nil, domain.NewIncompleteRunError(incomplete)
	}

	doc := rs.Document()
	segments := make([]Segment, 0, rs.SceneCount())
	for n := 1; n <= rs.SceneCount(); n++ {
		voice, err := rs.Artifact(n, domain.StageVoice)
		if err != nil {
			return nil, err
		}
		image, err := rs.Artifact(n, domain.StageImage)
		if err != nil {
			return nil, err
		}
		if voice == nil || image == nil {
			// Ready なのに成果物がないのは遷移の実装バグ
			return nil, domain.NewIncompleteRunError([]int{n})
		}

		scene := doc.Scenes[n-1]
		seg := Segment{
			SceneNumber:  n,
			Duration:     scene.Duration,
			ImageRef:     image.ContentRef,
			VoiceRef:     voice.ContentRef,
			ImageVersion: image.Version,
			VoiceVersion: voice.Version,
			Subtitles:    append([]domain.SubtitleInterval(nil), scene.SubtitleIntervals...),
		}
		if n < rs.SceneCount() {
			seg.Crossfade = a.opts.CrossfadeSeconds
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
