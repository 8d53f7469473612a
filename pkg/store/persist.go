package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/otochin/createmovie/pkg/domain"
)

// ContentWriter はスナップショットの書き出し先です。
// remoteio.OutputWriter がこれを満たします。
type ContentWriter interface {
	Write(ctx context.Context, path string, reader io.Reader, mimeType string) error
}

// ContentOpener はスナップショットの読み込み元です。
// remoteio.InputReader がこれを満たします。
type ContentOpener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// snapshot はランの永続化表現です。台本・現在成果物の参照とバージョン・
// 工程状態を含み、Ready な工程を再実行せずにランを再開するのに十分です。
// 成果物のバイト列そのものは ContentRef の先に保存されている前提です。
type snapshot struct {
	RunID     string                 `json:"run_id"`
	Document  domain.ScriptDocument  `json:"document"`
	Artifacts []domain.StageArtifact `json:"artifacts"`
	Statuses  []stageStatusEntry     `json:"statuses"`
}

type stageStatusEntry struct {
	SceneNumber int                `json:"scene_number"`
	Stage       domain.Stage       `json:"stage"`
	Status      domain.StageStatus `json:"status"`
}

// MarshalJSON 相当のスナップショットを生成します。
func (rs *RunState) snapshot() snapshot {
	snap := snapshot{
		RunID:    rs.RunID,
		Document: rs.Document(),
	}
	for i, ss := range rs.scenes {
		n := i + 1
		ss.mu.Lock()
		for _, stage := range domain.AllStages {
			if art, ok := ss.artifacts[stage]; ok {
				snap.Artifacts = append(snap.Artifacts, *art)
			}
			snap.Statuses = append(snap.Statuses, stageStatusEntry{
				SceneNumber: n,
				Stage:       stage,
				Status:      ss.statuses[stage],
			})
		}
		ss.mu.Unlock()
	}
	return snap
}

// Save はランの状態を JSON としてシリアライズし、指定パスへ書き出します。
func (rs *RunState) Save(ctx context.Context, writer ContentWriter, path string) error {
	data, err := json.MarshalIndent(rs.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("ラン状態のシリアライズに失敗しました: %w", err)
	}
	if err := writer.Write(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("ラン状態の保存に失敗しました: %w", err)
	}
	return nil
}

// Load は保存済みのランを復元します。中断時に InProgress だった工程は
// 実行が保証できないため NotStarted に戻します。Ready な成果物は
// バージョンを保ったまま引き継がれます。
func Load(ctx context.Context, reader ContentOpener, path string, opts ...Option) (*RunState, error) {
	rc, err := reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ラン状態ファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	var snap snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return nil, fmt.Errorf("ラン状態ファイル '%s' のデコードに失敗しました: %w", path, err)
	}
	if err := snap.Document.Validate(); err != nil {
		return nil, fmt.Errorf("保存された台本が壊れています: %w", err)
	}

	opts = append(opts, WithRunID(snap.RunID))
	rs := New(snap.Document, opts...)

	for _, art := range snap.Artifacts {
		if err := rs.checkIndex(art.SceneNumber); err != nil {
			return nil, err
		}
		cp := art
		ss := rs.scenes[art.SceneNumber-1]
		ss.artifacts[art.Stage] = &cp
	}
	for _, entry := range snap.Statuses {
		if err := rs.checkIndex(entry.SceneNumber); err != nil {
			return nil, err
		}
		status := entry.Status
		if status == domain.StatusInProgress {
			status = domain.StatusNotStarted
		}
		if status == "" {
			status = domain.StatusNotStarted
		}
		rs.scenes[entry.SceneNumber-1].statuses[entry.Stage] = status
	}
	return rs, nil
}
