package store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/otochin/createmovie/pkg/domain"
)

// memStorage はテスト用のインメモリ入出力です。
type memStorage struct {
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (m *memStorage) Write(_ context.Context, path string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.files[path] = data
	return nil
}

func (m *memStorage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.files[path])), nil
}

func TestRunState_SaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("保存と復元でReadyな工程が引き継がれるのだ", func(t *testing.T) {
		rs := New(testDocument(2))
		rs.SetArtifact(1, domain.StageDialogue, domain.StageArtifact{ContentRef: "scripts/1.txt"})
		rs.SetArtifact(1, domain.StageVoice, domain.StageArtifact{
			ContentRef:       "audio/1.mp3",
			MeasuredDuration: 3.4,
		})
		rs.SetArtifact(1, domain.StageVoice, domain.StageArtifact{
			ContentRef:       "audio/1_v1.mp3",
			MeasuredDuration: 3.1,
		})
		rs.SetStatus(2, domain.StageImage, domain.StatusFailed)

		storage := newMemStorage()
		if err := rs.Save(ctx, storage, "run.json"); err != nil {
			t.Fatalf("保存に失敗したのだ: %v", err)
		}

		loaded, err := Load(ctx, storage, "run.json")
		if err != nil {
			t.Fatalf("復元に失敗したのだ: %v", err)
		}

		if loaded.RunID != rs.RunID {
			t.Errorf("RunIDが引き継がれていないのだ: %s", loaded.RunID)
		}

		art, _ := loaded.Artifact(1, domain.StageVoice)
		if art == nil || art.Version != 1 || art.MeasuredDuration != 3.1 {
			t.Errorf("音声成果物が正しく復元されていないのだ: %+v", art)
		}

		status, _ := loaded.Status(1, domain.StageVoice)
		if status != domain.StatusReady {
			t.Errorf("Readyが引き継がれるはずなのだ: %s", status)
		}
		status, _ = loaded.Status(2, domain.StageImage)
		if status != domain.StatusFailed {
			t.Errorf("Failedも引き継がれるはずなのだ: %s", status)
		}
	})

	t.Run("中断時のInProgressはNotStartedに戻るのだ", func(t *testing.T) {
		rs := New(testDocument(1))
		rs.SetStatus(1, domain.StageVoice, domain.StatusInProgress)

		storage := newMemStorage()
		rs.Save(ctx, storage, "run.json")

		loaded, err := Load(ctx, storage, "run.json")
		if err != nil {
			t.Fatalf("復元に失敗したのだ: %v", err)
		}
		status, _ := loaded.Status(1, domain.StageVoice)
		if status != domain.StatusNotStarted {
			t.Errorf("InProgressはNotStartedとして復元されるはずなのだ: %s", status)
		}
	})
}
