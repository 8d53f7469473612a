package timeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/store"
)

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
		rs.SetArtifact(n, domain.StageVoice, domain.StageArtifact{
			ContentRef: "audio.mp3", MeasuredDuration: 3.0,
		})
		rs.SetArtifact(n, domain.StageImage, domain.StageArtifact{ContentRef: "image.png"})
	}
	return rs
}

func TestAssembler_Assemble(t *testing.T) {
	asm := NewAssembler(Options{CrossfadeSeconds: 0.5})

	t.Run("全シーンReadyならシーン番号順にN個のセグメントが返るのだ", func(t *testing.T) {
		rs := readyRun(t, 3)

		segments, err := asm.Assemble(rs)
		if err != nil {
			t.Fatalf("組み立てに失敗したのだ: %v", err)
		}
		if len(segments) != 3 {
			t.Fatalf("セグメント数が違うのだ: %d", len(segments))
		}
		for i, seg := range segments {
			if seg.SceneNumber != i+1 {
				t.Errorf("順序が違うのだ: index=%d scene=%d", i, seg.SceneNumber)
			}
		}
	})

	t.Run("クロスフェードは末尾以外に付くのだ", func(t *testing.T) {
		rs := readyRun(t, 3)
		segments, _ := asm.Assemble(rs)

		for i, seg := range segments {
			want := 0.5
			if i == len(segments)-1 {
				want = 0
			}
			if seg.Crossfade != want {
				t.Errorf("セグメント%dのクロスフェードが違うのだ: %v", i+1, seg.Crossfade)
			}
		}
	})

	t.Run("未完了のシーンがあるとIncompleteRunなのだ", func(t *testing.T) {
		rs := readyRun(t, 3)
		rs.SetStatus(2, domain.StageVoice, domain.StatusStale)

		_, err := asm.Assemble(rs)
		var incomplete *domain.IncompleteRunError
		if !errors.As(err, &incomplete) {
			t.Fatalf("IncompleteRunErrorが返るはずなのだ: %v", err)
		}
		if !reflect.DeepEqual(incomplete.Scenes, []int{2}) {
			t.Errorf("違反シーンの一覧が違うのだ: %v", incomplete.Scenes)
		}
	})

	t.Run("Failedも組み立てを拒否するのだ", func(t *testing.T) {
		rs := readyRun(t, 2)
		rs.SetStatus(2, domain.StageImage, domain.StatusFailed)

		_, err := asm.Assemble(rs)
		var incomplete *domain.IncompleteRunError
		if !errors.As(err, &incomplete) {
			t.Fatalf("IncompleteRunErrorが返るはずなのだ: %v", err)
		}
	})

	t.Run("拒否してもストアの状態は変わらないのだ", func(t *testing.T) {
		rs := readyRun(t, 2)
		rs.SetStatus(1, domain.StageVoice, domain.StatusStale)
		before := rs.Document()

		asm.Assemble(rs)

		after := rs.Document()
		if !reflect.DeepEqual(before, after) {
			t.Error("組み立て失敗で台本が書き換わってしまったのだ")
		}
		if status, _ := rs.Status(1, domain.StageVoice); status != domain.StatusStale {
			t.Error("工程状態が書き換わってしまったのだ")
		}
	})

	t.Run("同じ状態からは同一の出力が得られるのだ", func(t *testing.T) {
		rs := readyRun(t, 3)

		first, err := asm.Assemble(rs)
		if err != nil {
			t.Fatalf("組み立てに失敗したのだ: %v", err)
		}
		second, _ := asm.Assemble(rs)
		if !reflect.DeepEqual(first, second) {
			t.Error("再呼び出しで出力が変わったのだ")
		}
	})
}
