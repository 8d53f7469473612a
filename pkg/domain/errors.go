package domain

import (
	"fmt"
	"sort"
	"strings"
)

// BackendError は外部生成バックエンドの一時的な失敗を表します。
// リトライ上限まで再試行され、それでも失敗した工程は Failed になります。
type BackendError struct {
	Stage       Stage
	SceneNumber int
	Err         error
}

func (e *BackendError) Error() string {
	if e.SceneNumber > 0 {
		return fmt.Sprintf("シーン%d の %s 生成に失敗しました: %v", e.SceneNumber, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s 生成に失敗しました: %v", e.Stage, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// InvalidSceneIndexError はシーン番号が 1..N の範囲外であることを表します。
type InvalidSceneIndexError struct {
	Index int
	Count int
}

func (e *InvalidSceneIndexError) Error() string {
	return fmt.Sprintf("シーン番号 %d は範囲外です（1..%d）", e.Index, e.Count)
}

// IncompleteRunError は、Ready でない工程を持つシーンが残ったまま
// タイムライン組み立てや書き出しを試みたことを表します。
type IncompleteRunError struct {
	Scenes []int
}

func (e *IncompleteRunError) Error() string {
	nums := make([]string, len(e.Scenes))
	for i, n := range e.Scenes {
		nums[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("未完了のシーンがあるため組み立てできません: シーン %s", strings.Join(nums, ", "))
}

// NewIncompleteRunError は重複を除いた昇順のシーン番号でエラーを作ります。
func NewIncompleteRunError(scenes []int) *IncompleteRunError {
	set := make(map[int]struct{}, len(scenes))
	for _, n := range scenes {
		set[n] = struct{}{}
	}
	uniq := make([]int, 0, len(set))
	for n := range set {
		uniq = append(uniq, n)
	}
	sort.Ints(uniq)
	return &IncompleteRunError{Scenes: uniq}
}
