package regen

import (
	"testing"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/store"
)

// readyRun は全シーン・全工程が Ready のランを作ります。
func readyRun(t *testing.T, sceneCount int) *store.RunState {
	t.Helper()

	doc := domain.ScriptDocument{Title: "テストラン"}
	for i := 0; i < sceneCount; i++ {
		doc.Scenes = append(doc.Scenes, domain.Scene{
			Dialogue:    "セリフ",
			ImagePrompt: "プロンプト",
			Subtitle:    "字幕です。",
			Duration:    3.0,
		})
	}
	doc.Normalize()

	rs := store.New(doc)
	for n := 1; n <= sceneCount; n++ {
		rs.SetArtifact(n, domain.StageDialogue, domain.StageArtifact{Data: []byte("セリフ")})
		rs.SetArtifact(n, domain.StageVoice, domain.StageArtifact{MeasuredDuration: 3.5})
		rs.SetArtifact(n, domain.StageImage, domain.StageArtifact{ContentRef: "scene.png"})
	}
	return rs
}

func mustStatus(t *testing.T, rs *store.RunState, n int, stage domain.Stage) domain.StageStatus {
	t.Helper()
	status, err := rs.Status(n, stage)
	if err != nil {
		t.Fatalf("状態取得に失敗したのだ: %v", err)
	}
	return status
}

func TestController_Invalidate(t *testing.T) {
	t.Run("セリフ再生成で同シーンのVoiceとImageがStaleになるのだ", func(t *testing.T) {
		rs := readyRun(t, 3)
		c := NewController(nil)

		if err := c.Invalidate(rs, 2, domain.StageDialogue); err != nil {
			t.Fatalf("無効化に失敗したのだ: %v", err)
		}

		if got := mustStatus(t, rs, 2, domain.StageDialogue); got != domain.StatusNotStarted {
			t.Errorf("対象工程はNotStartedに戻るはずなのだ: %s", got)
		}
		if got := mustStatus(t, rs, 2, domain.StageVoice); got != domain.StatusStale {
			t.Errorf("VoiceはStaleになるはずなのだ: %s", got)
		}
		if got := mustStatus(t, rs, 2, domain.StageImage); got != domain.StatusStale {
			t.Errorf("ImageはStaleになるはずなのだ: %s", got)
		}
	})

	t.Run("他のシーンには一切触れないのだ", func(t *testing.T) {
		rs := readyRun(t, 3)
		c := NewController(nil)

		c.Invalidate(rs, 2, domain.StageDialogue)

		for _, n := range []int{1, 3} {
			for _, stage := range domain.AllStages {
				if got := mustStatus(t, rs, n, stage); got != domain.StatusReady {
					t.Errorf("シーン%dの%sが巻き込まれたのだ: %s", n, stage, got)
				}
			}
		}
	})

	t.Run("Voice再生成はImageに波及しないのだ", func(t *testing.T) {
		rs := readyRun(t, 1)
		c := NewController(nil)

		c.Invalidate(rs, 1, domain.StageVoice)

		if got := mustStatus(t, rs, 1, domain.StageImage); got != domain.StatusReady {
			t.Errorf("ImageはReadyのままのはずなのだ: %s", got)
		}
		if got := mustStatus(t, rs, 1, domain.StageDialogue); got != domain.StatusReady {
			t.Errorf("上流のDialogueもReadyのままのはずなのだ: %s", got)
		}
	})

	t.Run("Voice無効化でDurationが見積もりへ戻るのだ", func(t *testing.T) {
		rs := readyRun(t, 1)
		c := NewController(nil)

		// 事前条件: 実測値を反映しておく
		c.rec.ReconcileScene(rs, 1)
		if scene, _ := rs.Scene(1); scene.Duration != 3.5 {
			t.Fatalf("前提が崩れているのだ: %v", scene.Duration)
		}

		c.Invalidate(rs, 1, domain.StageVoice)

		scene, _ := rs.Scene(1)
		if scene.Duration != 3.0 {
			t.Errorf("PlannedDurationへ戻るはずなのだ: %v", scene.Duration)
		}
		doc := rs.Document()
		if doc.TotalDuration != 3.0 {
			t.Errorf("TotalDurationも追随するはずなのだ: %v", doc.TotalDuration)
		}
	})

	t.Run("未生成の下流はNotStartedのままなのだ", func(t *testing.T) {
		doc := domain.ScriptDocument{
			Title:  "t",
			Scenes: []domain.Scene{{Dialogue: "a", ImagePrompt: "p", Duration: 3.0}},
		}
		doc.Normalize()
		rs := store.New(doc)
		rs.SetArtifact(1, domain.StageDialogue, domain.StageArtifact{Data: []byte("a")})

		c := NewController(nil)
		c.Invalidate(rs, 1, domain.StageDialogue)

		if got := mustStatus(t, rs, 1, domain.StageVoice); got != domain.StatusNotStarted {
			t.Errorf("生成前のVoiceはNotStartedのままのはずなのだ: %s", got)
		}
	})
}

func TestController_EditDialogue(t *testing.T) {
	t.Run("直接編集は暗黙の再生成として扱われるのだ", func(t *testing.T) {
		rs := readyRun(t, 2)
		c := NewController(nil)

		if err := c.EditDialogue(rs, 1, "編集後のセリフなのだ"); err != nil {
			t.Fatalf("編集に失敗したのだ: %v", err)
		}

		scene, _ := rs.Scene(1)
		if scene.Dialogue != "編集後のセリフなのだ" {
			t.Errorf("台本に反映されていないのだ: %s", scene.Dialogue)
		}

		art, _ := rs.Artifact(1, domain.StageDialogue)
		if art.Version != 1 {
			t.Errorf("dialogueのバージョンが進むはずなのだ: %d", art.Version)
		}

		if got := mustStatus(t, rs, 1, domain.StageDialogue); got != domain.StatusReady {
			t.Errorf("編集済みセリフはReadyなのだ: %s", got)
		}
		if got := mustStatus(t, rs, 1, domain.StageVoice); got != domain.StatusStale {
			t.Errorf("VoiceはStaleになるはずなのだ: %s", got)
		}
		if got := mustStatus(t, rs, 1, domain.StageImage); got != domain.StatusStale {
			t.Errorf("ImageはStaleになるはずなのだ: %s", got)
		}

		// 隣のシーンは無傷
		for _, stage := range domain.AllStages {
			if got := mustStatus(t, rs, 2, stage); got != domain.StatusReady {
				t.Errorf("シーン2の%sが巻き込まれたのだ: %s", stage, got)
			}
		}
	})
}

func TestDependents(t *testing.T) {
	t.Run("依存表の内容が期待どおりなのだ", func(t *testing.T) {
		deps := Dependents(domain.StageDialogue)
		if len(deps) != 2 {
			t.Fatalf("Dialogueの下流は2つのはずなのだ: %v", deps)
		}
		if len(Dependents(domain.StageVoice)) != 0 || len(Dependents(domain.StageImage)) != 0 {
			t.Error("VoiceとImageに下流はないはずなのだ")
		}
	})
}
