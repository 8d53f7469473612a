package domain

// ScriptDocument は AI モデルから返される台本全体の構造です。
// TotalDuration は各シーンの Duration の合計から導出される値であり、
// 直接書き換えてはいけません（RecomputeTotal を使うのだ）。
type ScriptDocument struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Scenes        []Scene `json:"scenes"`
	TotalDuration float64 `json:"total_duration"`
}

// Scene は動画の1シーン（1つのナレーション・画像・字幕のまとまり）を表します。
type Scene struct {
	SceneNumber int    `json:"scene_number"`
	Dialogue    string `json:"dialogue"`
	ImagePrompt string `json:"image_prompt"`

	// PlannedDuration は台本生成時の見積もり秒数です。
	PlannedDuration float64 `json:"planned_duration"`
	// Duration は現在の正とする秒数です。初期値は PlannedDuration と等しく、
	// 音声の実測値が得られた時点で上書きされます。
	Duration float64 `json:"duration"`

	Subtitle          string             `json:"subtitle"`
	SubtitleIntervals []SubtitleInterval `json:"subtitle_intervals,omitempty"`
}

// SubtitleInterval は字幕1チャンクの表示区間です。
// Start と End はシーン先頭からの相対秒です。
type SubtitleInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SceneCount はシーン数を返します。
func (d *ScriptDocument) SceneCount() int {
	return len(d.Scenes)
}

// RecomputeTotal は TotalDuration を全シーンの Duration の合計に更新します。
// シーンの Duration を書き換えたら必ずこれを呼ぶこと。
func (d *ScriptDocument) RecomputeTotal() {
	var total float64
	for _, s := range d.Scenes {
		total += s.Duration
	}
	d.TotalDuration = total
}
