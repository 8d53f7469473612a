// Package orchestrator は台本→音声・画像→確定までの生成をエンドツーエンドで
// 駆動します。外部バックエンドの呼び出し順序と並列度の制御だけを担い、
// それ以外の業務ロジック（無効化規則・長さの確定・組み立て）は
// regen / reconcile / timeline に委ねます。
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/otochin/createmovie/pkg/backend"
	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/reconcile"
	"github.com/otochin/createmovie/pkg/regen"
	"github.com/otochin/createmovie/pkg/store"
)

// Config は並列度・リトライ・画像サイズの設定です。
type Config struct {
	// MaxInFlight はシーンをまたいで同時に走らせる生成処理の上限です。
	MaxInFlight int
	// MaxRetries はバックエンド呼び出し1回あたりの再試行上限です。
	MaxRetries int
	// InitialBackoff は指数バックオフの初期待ち時間です。
	InitialBackoff time.Duration
	// RateInterval / RateBurst は外部 API のレート制限に合わせます。
	RateInterval time.Duration
	RateBurst    int

	ImageWidth  int
	ImageHeight int
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxInFlight:    3,
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		RateInterval:   2 * time.Second,
		RateBurst:      2,
		ImageWidth:     1080,
		ImageHeight:    1920,
	}
}

// Orchestrator は生成パイプラインの調停役です。
type Orchestrator struct {
	script  backend.ScriptGenerator
	voice   backend.VoiceSynthesizer
	image   backend.ImageGenerator
	rec     *reconcile.Reconciler
	ctl     *regen.Controller
	limiter *rate.Limiter
	cfg     Config
}

// New は依存バックエンドを注入して Orchestrator を生成します。
func New(script backend.ScriptGenerator, voice backend.VoiceSynthesizer, image backend.ImageGenerator, cfg Config) *Orchestrator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = time.Millisecond
	}

	rec := reconcile.NewReconciler(nil)
	return &Orchestrator{
		script:  script,
		voice:   voice,
		image:   image,
		rec:     rec,
		ctl:     regen.NewController(rec),
		limiter: rate.NewLimiter(rate.Every(cfg.RateInterval), cfg.RateBurst),
		cfg:     cfg,
	}
}

// NewRun は台本バックエンドを呼んでランの状態を作ります。
// 各シーンのセリフは dialogue 成果物として登録され、字幕区間は
// 見積もり長で仮置きされます。
func (o *Orchestrator) NewRun(ctx context.Context, req backend.ScriptRequest, opts ...store.Option) (*store.RunState, error) {
	slog.Info("台本生成を開始するのだ", "topic", req.Topic, "scenes", req.SceneCount)

	var doc domain.ScriptDocument
	err := o.retry(ctx, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var genErr error
		doc, genErr = o.script.Generate(ctx, req)
		return genErr
	})
	if err != nil {
		return nil, &domain.BackendError{Stage: domain.StageDialogue, Err: err}
	}

	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("生成された台本が不正です: %w", err)
	}

	rs := store.New(doc, opts...)
	for n := 1; n <= rs.SceneCount(); n++ {
		scene, _ := rs.Scene(n)
		if _, err := rs.SetArtifact(n, domain.StageDialogue, domain.StageArtifact{
			Data:     []byte(scene.Dialogue),
			MimeType: "text/plain",
		}); err != nil {
			return nil, err
		}
	}
	if err := o.rec.ReconcileAll(rs); err != nil {
		return nil, err
	}

	slog.Info("台本生成が完了したのだ", "title", doc.Title, "scenes", rs.SceneCount())
	return rs, nil
}

// Report はランの生成結果のまとめです。工程の失敗はシーン単位で
// 記録され、ラン全体を失敗扱いにはしません。
type Report struct {
	Failed map[int]error
}

// OK は失敗したシーンがないことを表します。
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// GenerateMedia は未着手（NotStarted）と失敗済み（Failed）の工程を対象に、
// シーン横断の有界並列で音声と画像を生成します。Failed はリトライ上限に
// 達しただけの状態なので、次のランでやり直します。Stale は明示的な
// 再生成を待つため対象外です。シーン内ではセリフ→{音声, 画像}の順序が
// 守られ、音声と画像は並行します。キャンセル時は新規発行を止め、
// 実行中の呼び出しは完了まで待ちます。
func (o *Orchestrator) GenerateMedia(ctx context.Context, rs *store.RunState) (*Report, error) {
	report := &Report{Failed: make(map[int]error)}
	results := make(chan sceneResult, rs.SceneCount())

	var eg errgroup.Group
	eg.SetLimit(o.cfg.MaxInFlight)

	for n := 1; n <= rs.SceneCount(); n++ {
		n := n
		eg.Go(func() error {
			err := o.generateScene(ctx, rs, n)
			results <- sceneResult{scene: n, err: err}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}

	waitErr := eg.Wait()
	close(results)
	for res := range results {
		if res.err != nil && !errors.Is(res.err, context.Canceled) {
			report.Failed[res.scene] = res.err
		}
	}

	if waitErr != nil {
		return report, waitErr
	}
	return report, nil
}

type sceneResult struct {
	scene int
	err   error
}

// issueable は GenerateMedia が発行対象とみなす状態です。
func issueable(status domain.StageStatus) bool {
	return status == domain.StatusNotStarted || status == domain.StatusFailed
}

// generateScene は1シーンの発行対象工程を依存順に処理します。
// 返り値はこのシーンで最初に起きた失敗です（他シーンへは波及しません）。
func (o *Orchestrator) generateScene(ctx context.Context, rs *store.RunState, n int) error {
	statuses, err := rs.SceneStatuses(n)
	if err != nil {
		return err
	}

	// セリフが未完なら先に作り直す（音声・画像はセリフに依存する）
	if issueable(statuses[domain.StageDialogue]) {
		if err := o.regenerateDialogue(ctx, rs, n); err != nil {
			return err
		}
	}

	statuses, err = rs.SceneStatuses(n)
	if err != nil {
		return err
	}

	var inner errgroup.Group
	var voiceErr, imageErr error

	if issueable(statuses[domain.StageVoice]) {
		inner.Go(func() error {
			voiceErr = o.generateVoice(ctx, rs, n)
			return nil
		})
	}
	if issueable(statuses[domain.StageImage]) {
		inner.Go(func() error {
			imageErr = o.generateImage(ctx, rs, n)
			return nil
		})
	}
	inner.Wait()

	if voiceErr != nil {
		return voiceErr
	}
	return imageErr
}

// Regenerate は (シーン, 工程) の再生成を行います。まず無効化規則を
// 適用し、そのうえで NotStarted になった対象工程だけを再実行します。
// セリフの再生成では下流の Voice / Image は Stale のまま残り、
// 明示的な再生成を待ちます。
func (o *Orchestrator) Regenerate(ctx context.Context, rs *store.RunState, n int, stage domain.Stage) error {
	if err := o.ctl.Invalidate(rs, n, stage); err != nil {
		return err
	}

	switch stage {
	case domain.StageDialogue:
		return o.regenerateDialogue(ctx, rs, n)
	case domain.StageVoice:
		return o.generateVoice(ctx, rs, n)
	case domain.StageImage:
		return o.generateImage(ctx, rs, n)
	default:
		return fmt.Errorf("不明な工程です: %s", stage)
	}
}

func (o *Orchestrator) regenerateDialogue(ctx context.Context, rs *store.RunState, n int) error {
	if err := rs.SetStatus(n, domain.StageDialogue, domain.StatusInProgress); err != nil {
		return err
	}

	doc := rs.Document()
	var scene domain.Scene
	err := o.retry(ctx, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var genErr error
		scene, genErr = o.script.RegenerateScene(ctx, doc, n, "")
		return genErr
	})
	if err != nil {
		return o.failStage(ctx, rs, n, domain.StageDialogue, err)
	}

	if err := rs.UpdateScene(n, func(current *domain.Scene) {
		current.Dialogue = scene.Dialogue
		current.ImagePrompt = scene.ImagePrompt
		current.Subtitle = scene.Subtitle
		if scene.PlannedDuration > 0 {
			current.PlannedDuration = scene.PlannedDuration
		}
	}); err != nil {
		return err
	}
	if _, err := rs.SetArtifact(n, domain.StageDialogue, domain.StageArtifact{
		Data:     []byte(scene.Dialogue),
		MimeType: "text/plain",
	}); err != nil {
		return err
	}

	slog.Info("セリフを再生成したのだ", "scene", n)
	return o.rec.ReconcileScene(rs, n)
}

func (o *Orchestrator) generateVoice(ctx context.Context, rs *store.RunState, n int) error {
	scene, err := rs.Scene(n)
	if err != nil {
		return err
	}
	if err := rs.SetStatus(n, domain.StageVoice, domain.StatusInProgress); err != nil {
		return err
	}

	start := time.Now()
	var clip backend.VoiceClip
	err = o.retry(ctx, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var synthErr error
		clip, synthErr = o.voice.Synthesize(ctx, scene.Dialogue)
		return synthErr
	})
	if err != nil {
		return o.failStage(ctx, rs, n, domain.StageVoice, err)
	}

	if _, err := rs.SetArtifact(n, domain.StageVoice, domain.StageArtifact{
		Data:             clip.Data,
		MimeType:         clip.MimeType,
		MeasuredDuration: clip.Duration,
	}); err != nil {
		return err
	}

	slog.Info("音声生成が完了したのだ",
		"scene", n, "measured", clip.Duration,
		"duration", time.Since(start).Round(time.Millisecond))

	// 実測値が出たら即座に長さと字幕を確定する
	return o.rec.ReconcileScene(rs, n)
}

func (o *Orchestrator) generateImage(ctx context.Context, rs *store.RunState, n int) error {
	scene, err := rs.Scene(n)
	if err != nil {
		return err
	}
	if err := rs.SetStatus(n, domain.StageImage, domain.StatusInProgress); err != nil {
		return err
	}

	start := time.Now()
	var img backend.ImageData
	err = o.retry(ctx, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var genErr error
		img, genErr = o.image.Generate(ctx, scene.ImagePrompt, o.cfg.ImageWidth, o.cfg.ImageHeight)
		return genErr
	})
	if err != nil {
		return o.failStage(ctx, rs, n, domain.StageImage, err)
	}

	if _, err := rs.SetArtifact(n, domain.StageImage, domain.StageArtifact{
		Data:     img.Data,
		MimeType: img.MimeType,
	}); err != nil {
		return err
	}

	slog.Info("画像生成が完了したのだ",
		"scene", n, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// failStage は失敗を工程単位で確定します。キャンセルによる中断は
// 失敗ではないため NotStarted に戻し、再開時にやり直せるようにします。
func (o *Orchestrator) failStage(ctx context.Context, rs *store.RunState, n int, stage domain.Stage, cause error) error {
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		if err := rs.SetStatus(n, stage, domain.StatusNotStarted); err != nil {
			return err
		}
		if cerr := context.Cause(ctx); cerr != nil {
			return cerr
		}
		return cause
	}

	if err := rs.SetStatus(n, stage, domain.StatusFailed); err != nil {
		return err
	}
	backendErr := &domain.BackendError{Stage: stage, SceneNumber: n, Err: cause}
	slog.Warn("工程がリトライ上限まで失敗したのだ", "scene", n, "stage", stage, "error", cause)
	return backendErr
}

// retry は一時的な失敗を指数バックオフで再試行します。
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if o.cfg.InitialBackoff > 0 {
		b.InitialInterval = o.cfg.InitialBackoff
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.cfg.MaxRetries)), ctx))
}
