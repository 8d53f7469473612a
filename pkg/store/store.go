// Package store は1回の生成ランに属する台本・成果物・工程状態を
// 一元管理します。ランごとに明示的に生成して持ち回る構造であり、
// グローバル状態は持ちません（複数ランの共存が前提です）。
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otochin/createmovie/pkg/domain"
)

// RunState は1ランぶんの可変状態の器です。
// 工程状態と成果物の遷移は (シーン, 工程) 単位で直列化されます。
// シーンをまたぐ操作は共有ロックを取りません。
type RunState struct {
	RunID string

	keepHistory bool

	// docMu は台本本体（シーン内容と TotalDuration）の更新を守ります。
	docMu sync.RWMutex
	doc   domain.ScriptDocument

	// scenes はラン開始時に固定され、以後は要素内部だけが変化します。
	scenes []*sceneState
}

type sceneState struct {
	mu        sync.Mutex
	artifacts map[domain.Stage]*domain.StageArtifact
	statuses  map[domain.Stage]domain.StageStatus
	history   map[domain.Stage][]*domain.StageArtifact
}

// Option は RunState の挙動を調整します。
type Option func(*RunState)

// WithHistory は成果物の旧バージョンを（新しい順に）保持する設定です。
func WithHistory() Option {
	return func(rs *RunState) { rs.keepHistory = true }
}

// WithRunID は再開時など、既存のラン ID を引き継ぐための設定です。
func WithRunID(id string) Option {
	return func(rs *RunState) { rs.RunID = id }
}

// New は検証・正規化済みの台本からランの状態を生成します。
// 全シーン×全工程の状態は NotStarted で始まります。
func New(doc domain.ScriptDocument, opts ...Option) *RunState {
	rs := &RunState{
		RunID: uuid.NewString(),
		doc:   doc,
	}
	for _, opt := range opts {
		opt(rs)
	}

	rs.scenes = make([]*sceneState, len(doc.Scenes))
	for i := range rs.scenes {
		ss := &sceneState{
			artifacts: make(map[domain.Stage]*domain.StageArtifact),
			statuses:  make(map[domain.Stage]domain.StageStatus),
		}
		for _, stage := range domain.AllStages {
			ss.statuses[stage] = domain.StatusNotStarted
		}
		if rs.keepHistory {
			ss.history = make(map[domain.Stage][]*domain.StageArtifact)
		}
		rs.scenes[i] = ss
	}
	return rs
}

// Document は台本のコピーを返します。
func (rs *RunState) Document() domain.ScriptDocument {
	rs.docMu.RLock()
	defer rs.docMu.RUnlock()

	doc := rs.doc
	doc.Scenes = append([]domain.Scene(nil), rs.doc.Scenes...)
	return doc
}

// SceneCount はシーン数を返します。
func (rs *RunState) SceneCount() int {
	return len(rs.scenes)
}

// Scene は n 番目（1始まり）のシーンのコピーを返します。
func (rs *RunState) Scene(n int) (domain.Scene, error) {
	if err := rs.checkIndex(n); err != nil {
		return domain.Scene{}, err
	}
	rs.docMu.RLock()
	defer rs.docMu.RUnlock()
	return rs.doc.Scenes[n-1], nil
}

// ReplaceScene は n 番目のシーンを差し替え、TotalDuration を再計算します。
// 下流工程の無効化はここでは行いません（regen.Controller の責務です）。
func (rs *RunState) ReplaceScene(n int, scene domain.Scene) error {
	if err := rs.checkIndex(n); err != nil {
		return err
	}
	rs.docMu.Lock()
	defer rs.docMu.Unlock()

	scene.SceneNumber = n
	rs.doc.Scenes[n-1] = scene
	rs.doc.RecomputeTotal()
	return nil
}

// UpdateScene は n 番目のシーンを関数で書き換え、TotalDuration を再計算します。
func (rs *RunState) UpdateScene(n int, fn func(*domain.Scene)) error {
	if err := rs.checkIndex(n); err != nil {
		return err
	}
	rs.docMu.Lock()
	defer rs.docMu.Unlock()

	fn(&rs.doc.Scenes[n-1])
	rs.doc.Scenes[n-1].SceneNumber = n
	rs.doc.RecomputeTotal()
	return nil
}

// SetArtifact は成果物を登録してバージョンを進め、工程を Ready にします。
// 初回は version 0、以後は置き換えのたびに +1 されます。
func (rs *RunState) SetArtifact(n int, stage domain.Stage, art domain.StageArtifact) (int, error) {
	if err := rs.checkIndex(n); err != nil {
		return 0, err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()

	art.Stage = stage
	art.SceneNumber = n
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now()
	}

	if prev, ok := ss.artifacts[stage]; ok {
		art.Version = prev.Version + 1
		if ss.history != nil {
			ss.history[stage] = append([]*domain.StageArtifact{prev}, ss.history[stage]...)
		}
	} else {
		art.Version = 0
	}

	ss.artifacts[stage] = &art
	ss.statuses[stage] = domain.StatusReady
	return art.Version, nil
}

// Artifact は現在の成果物のコピーを返します。存在しない場合は nil を返します。
func (rs *RunState) Artifact(n int, stage domain.Stage) (*domain.StageArtifact, error) {
	if err := rs.checkIndex(n); err != nil {
		return nil, err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()

	art, ok := ss.artifacts[stage]
	if !ok {
		return nil, nil
	}
	cp := *art
	return &cp, nil
}

// SetContentRef は現在の成果物のバイト列を書き出した先を記録します。
// バージョンは進めません（内容は変わっていないため）。
func (rs *RunState) SetContentRef(n int, stage domain.Stage, ref string) error {
	if err := rs.checkIndex(n); err != nil {
		return err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()

	art, ok := ss.artifacts[stage]
	if !ok {
		return fmt.Errorf("シーン%d の %s 成果物がまだ存在しません", n, stage)
	}
	art.ContentRef = ref
	return nil
}

// History は旧バージョンの成果物を新しい順で返します。
// WithHistory なしで構築されたストアでは常に空です。
func (rs *RunState) History(n int, stage domain.Stage) ([]*domain.StageArtifact, error) {
	if err := rs.checkIndex(n); err != nil {
		return nil, err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.history == nil {
		return nil, nil
	}
	out := make([]*domain.StageArtifact, len(ss.history[stage]))
	for i, art := range ss.history[stage] {
		cp := *art
		out[i] = &cp
	}
	return out, nil
}

// Status は (シーン, 工程) の現在状態を返します。
func (rs *RunState) Status(n int, stage domain.Stage) (domain.StageStatus, error) {
	if err := rs.checkIndex(n); err != nil {
		return "", err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.statuses[stage], nil
}

// SetStatus は (シーン, 工程) の状態を更新します。
func (rs *RunState) SetStatus(n int, stage domain.Stage, status domain.StageStatus) error {
	if err := rs.checkIndex(n); err != nil {
		return err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.statuses[stage] = status
	return nil
}

// SceneStatuses は n 番目のシーンの全工程状態をまとめて返します。
func (rs *RunState) SceneStatuses(n int) (map[domain.Stage]domain.StageStatus, error) {
	if err := rs.checkIndex(n); err != nil {
		return nil, err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()

	out := make(map[domain.Stage]domain.StageStatus, len(ss.statuses))
	for stage, status := range ss.statuses {
		out[stage] = status
	}
	return out, nil
}

// SceneTx は1シーンのロックを保持したまま複数の遷移を行うビューです。
type SceneTx struct {
	ss *sceneState
}

// Status は工程の現在状態を返します。
func (tx *SceneTx) Status(stage domain.Stage) domain.StageStatus {
	return tx.ss.statuses[stage]
}

// SetStatus は工程の状態を更新します。
func (tx *SceneTx) SetStatus(stage domain.Stage, status domain.StageStatus) {
	tx.ss.statuses[stage] = status
}

// Artifact は現在の成果物を返します。存在しない場合は nil です。
func (tx *SceneTx) Artifact(stage domain.Stage) *domain.StageArtifact {
	art, ok := tx.ss.artifacts[stage]
	if !ok {
		return nil
	}
	cp := *art
	return &cp
}

// Mutate は n 番目のシーンのロック下で fn を実行します。
// 同一シーンの複数工程をまたぐ遷移（無効化の連鎖など）は必ずここを通すこと。
func (rs *RunState) Mutate(n int, fn func(tx *SceneTx) error) error {
	if err := rs.checkIndex(n); err != nil {
		return err
	}
	ss := rs.scenes[n-1]
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return fn(&SceneTx{ss: ss})
}

func (rs *RunState) checkIndex(n int) error {
	if n < 1 || n > len(rs.scenes) {
		return &domain.InvalidSceneIndexError{Index: n, Count: len(rs.scenes)}
	}
	return nil
}
