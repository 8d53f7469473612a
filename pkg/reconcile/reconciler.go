// Package reconcile は、音声合成の実測秒数をシーンの正式な長さとして
// 反映し、字幕の表示区間をその長さに合わせて引き直します。
// 字幕とタイムラインは「実際に再生されるクリップ」を基準にしないと
// 音声とズレてしまうため、見積もり値のままでの組み立ては許しません。
package reconcile

import (
	"log/slog"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/store"
)

// Reconciler はシーンの Duration と字幕区間を成果物の実態に合わせます。
type Reconciler struct {
	timer *SubtitleTimer
}

// NewReconciler は字幕タイマーを注入して Reconciler を生成します。
func NewReconciler(timer *SubtitleTimer) *Reconciler {
	if timer == nil {
		timer = NewSubtitleTimer()
	}
	return &Reconciler{timer: timer}
}

// ReconcileScene は n 番目のシーンの Duration を確定します。
// Ready な音声成果物が実測値を持つならそれを正とし、持たないなら
// PlannedDuration に戻します（古い実測値を参照し続けることはありません）。
// 同じ入力に対して何度呼んでも結果は変わりません。
func (r *Reconciler) ReconcileScene(rs *store.RunState, n int) error {
	art, err := rs.Artifact(n, domain.StageVoice)
	if err != nil {
		return err
	}
	status, err := rs.Status(n, domain.StageVoice)
	if err != nil {
		return err
	}

	measured := 0.0
	if art != nil && status == domain.StatusReady && art.MeasuredDuration > 0 {
		measured = art.MeasuredDuration
	}

	return rs.UpdateScene(n, func(scene *domain.Scene) {
		before := scene.Duration
		if measured > 0 {
			scene.Duration = measured
		} else {
			scene.Duration = scene.PlannedDuration
		}
		scene.SubtitleIntervals = r.timer.Chunk(scene.Subtitle, scene.Duration)

		if scene.Duration != before {
			slog.Debug("シーンの長さを更新したのだ",
				"scene", n, "before", before, "after", scene.Duration)
		}
	})
}

// ReconcileAll は全シーンを順に確定します。
func (r *Reconciler) ReconcileAll(rs *store.RunState) error {
	for n := 1; n <= rs.SceneCount(); n++ {
		if err := r.ReconcileScene(rs, n); err != nil {
			return err
		}
	}
	return nil
}
