// Package regen は1シーン・1工程の再生成要求を受け付け、
// その工程に因果的に依存する下流の成果物だけを無効化します。
// 他のシーンには一切触れません。
package regen

import (
	"log/slog"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/reconcile"
	"github.com/otochin/createmovie/pkg/store"
)

// dependents は工程ごとの直接の下流を表す静的な依存表です。
// 無効化の規則はすべてこの表から導かれます（場当たりな分岐は禁止）。
// Voice と Image は互いに独立で、どちらも Dialogue にだけ依存します。
var dependents = map[domain.Stage][]domain.Stage{
	domain.StageDialogue: {domain.StageVoice, domain.StageImage},
	domain.StageVoice:    {},
	domain.StageImage:    {},
}

// Dependents は stage の直接下流のコピーを返します。
func Dependents(stage domain.Stage) []domain.Stage {
	return append([]domain.Stage(nil), dependents[stage]...)
}

// Controller は再生成に伴う状態遷移を司ります。
type Controller struct {
	rec *reconcile.Reconciler
}

// NewController は Reconciler を注入して Controller を生成します。
func NewController(rec *reconcile.Reconciler) *Controller {
	if rec == nil {
		rec = reconcile.NewReconciler(nil)
	}
	return &Controller{rec: rec}
}

// Invalidate はシーン n の stage を再生成待ち（NotStarted）に戻し、
// その下流を Stale にします。Stale な成果物はプレビュー用に残りますが、
// タイムライン組み立てには使えなくなります。
// 音声が無効化された場合、シーンの Duration は見積もり値へ戻ります。
func (c *Controller) Invalidate(rs *store.RunState, n int, stage domain.Stage) error {
	voiceInvalidated := stage == domain.StageVoice

	err := rs.Mutate(n, func(tx *store.SceneTx) error {
		tx.SetStatus(stage, domain.StatusNotStarted)
		for _, dep := range dependents[stage] {
			if tx.Status(dep) == domain.StatusNotStarted {
				continue // まだ何も生成されていない工程はそのまま
			}
			tx.SetStatus(dep, domain.StatusStale)
			if dep == domain.StageVoice {
				voiceInvalidated = true
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("工程を無効化したのだ", "scene", n, "stage", stage)

	if voiceInvalidated {
		// 古い実測値を参照し続けないよう、長さと字幕を見積もりへ戻す
		return c.rec.ReconcileScene(rs, n)
	}
	return nil
}

// EditDialogue はセリフの直接編集を「セリフの再生成」として扱います。
// 編集後のセリフを台本へ反映して dialogue 成果物のバージョンを進め、
// 旧セリフから生成された Voice と Image を Stale にします。
func (c *Controller) EditDialogue(rs *store.RunState, n int, dialogue string) error {
	if err := rs.UpdateScene(n, func(scene *domain.Scene) {
		scene.Dialogue = dialogue
	}); err != nil {
		return err
	}

	if _, err := rs.SetArtifact(n, domain.StageDialogue, domain.StageArtifact{
		Data:     []byte(dialogue),
		MimeType: "text/plain",
	}); err != nil {
		return err
	}

	// SetArtifact は dialogue を Ready にするので、下流だけを無効化する
	voiceInvalidated := false
	err := rs.Mutate(n, func(tx *store.SceneTx) error {
		for _, dep := range dependents[domain.StageDialogue] {
			if tx.Status(dep) == domain.StatusNotStarted {
				continue
			}
			tx.SetStatus(dep, domain.StatusStale)
			if dep == domain.StageVoice {
				voiceInvalidated = true
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if voiceInvalidated {
		return c.rec.ReconcileScene(rs, n)
	}
	return nil
}
