package domain

import "fmt"

// Validate は台本の必須フィールドと値の健全性を検証します。
func (d *ScriptDocument) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("台本に title がありません")
	}
	if len(d.Scenes) == 0 {
		return fmt.Errorf("台本に scenes がありません")
	}

	for i, scene := range d.Scenes {
		n := i + 1
		if scene.Dialogue == "" {
			return fmt.Errorf("シーン%d: dialogue が空です", n)
		}
		if scene.ImagePrompt == "" {
			return fmt.Errorf("シーン%d: image_prompt が空です", n)
		}
		if scene.PlannedDuration <= 0 && scene.Duration <= 0 {
			return fmt.Errorf("シーン%d: duration が無効です", n)
		}
	}
	return nil
}

// Normalize は AI 応答の揺らぎを吸収して台本を正規化します。
// シーン番号を位置に一致する 1..N の連番に振り直し、PlannedDuration が
// 未設定なら Duration（AI 出力の duration フィールド）を見積もりとして採用し、
// 最後に TotalDuration を再計算します。
func (d *ScriptDocument) Normalize() {
	for i := range d.Scenes {
		scene := &d.Scenes[i]
		scene.SceneNumber = i + 1

		if scene.PlannedDuration <= 0 {
			scene.PlannedDuration = scene.Duration
		}
		// 実測値の反映前は見積もりが正となる
		scene.Duration = scene.PlannedDuration
	}
	d.RecomputeTotal()
}
