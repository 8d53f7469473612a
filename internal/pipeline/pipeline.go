// Package pipeline は CLI コマンドごとの実行フローを組み立てるのだ。
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/builder"
	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/pkg/backend"
	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/reconcile"
	"github.com/otochin/createmovie/pkg/regen"
	"github.com/otochin/createmovie/pkg/store"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
)

// Execute は、台本生成から動画の書き出しまでを一気通貫で実行するのだ。
func Execute(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	rs, err := runScriptStep(ctx, appCtx)
	if err != nil {
		return err
	}

	if err := runMediaStep(ctx, appCtx, rs); err != nil {
		return err
	}

	return runAssembleStep(ctx, appCtx, rs)
}

// ExecuteScriptOnly は台本だけを生成して実行状態を保存するのだ。
// 生成された台本を確認・編集してから媒体生成に進みたいときに使うのだ。
func ExecuteScriptOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	_, err = runScriptStep(ctx, appCtx)
	return err
}

// ExecuteMediaOnly は保存済みの実行状態を読み込み、音声と画像の生成を行うのだ。
// 失敗したシーンがあっても完了済みのシーンはそのまま残るので、再実行で続きから拾えるのだ。
func ExecuteMediaOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	rs, err := loadRunState(ctx, appCtx)
	if err != nil {
		return err
	}

	return runMediaStep(ctx, appCtx, rs)
}

// ExecuteAssembleOnly は保存済みの実行状態からタイムラインを組み立て、動画を書き出すのだ。
func ExecuteAssembleOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	rs, err := loadRunState(ctx, appCtx)
	if err != nil {
		return err
	}

	return runAssembleStep(ctx, appCtx, rs)
}

// ExecuteRegenerate は指定シーンの指定工程を再生成するのだ。
// --dialogue が指定された場合はセリフを直接差し替え、下流の音声・画像を無効化するのだ。
func ExecuteRegenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	rs, err := loadRunState(ctx, appCtx)
	if err != nil {
		return err
	}

	opts := cfg.Options
	if opts.Dialogue != "" {
		ctl := regen.NewController(reconcile.NewReconciler(nil))
		if err := ctl.EditDialogue(rs, opts.Scene, opts.Dialogue); err != nil {
			return fmt.Errorf("セリフの差し替えに失敗したのだ: %w", err)
		}
		slog.Info("セリフを差し替えたのだ。下流の音声と画像は無効化されたのだ",
			"scene", opts.Scene)
		return saveRunState(ctx, appCtx, rs)
	}

	stage, err := domain.ParseStage(opts.Stage)
	if err != nil {
		return err
	}

	orc, err := builder.BuildOrchestrator(appCtx)
	if err != nil {
		return err
	}

	if err := orc.Regenerate(ctx, rs, opts.Scene, stage); err != nil {
		return fmt.Errorf("シーン%dの再生成に失敗したのだ: %w", opts.Scene, err)
	}

	if err := persistArtifacts(ctx, appCtx, rs); err != nil {
		return err
	}
	return saveRunState(ctx, appCtx, rs)
}

func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}

	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, httpClient, aiClient, reader, writer)
	return &appCtx, nil
}

// runScriptStep はトピックから台本を生成し、実行状態として保存するのだ。
func runScriptStep(ctx context.Context, appCtx *builder.AppContext) (*store.RunState, error) {
	opts := appCtx.Options
	slog.Info("Phase 1: 台本生成を開始するのだ...",
		"topic", opts.Topic,
		"scenes", opts.SceneCount,
		"duration_sec", opts.DurationSec)

	orc, err := builder.BuildOrchestrator(appCtx)
	if err != nil {
		return nil, err
	}

	rs, err := orc.NewRun(ctx, backend.ScriptRequest{
		Topic:       opts.Topic,
		DurationSec: opts.DurationSec,
		SceneCount:  opts.SceneCount,
		Style:       opts.Style,
		Instruction: opts.Instruction,
	}, store.WithHistory())
	if err != nil {
		return nil, fmt.Errorf("台本生成に失敗したのだ: %w", err)
	}

	if err := saveRunState(ctx, appCtx, rs); err != nil {
		return nil, err
	}

	doc := rs.Document()
	slog.Info("台本生成が完了したのだ！",
		"title", doc.Title,
		"scenes", len(doc.Scenes),
		"total_duration", doc.TotalDuration)
	return rs, nil
}

// runMediaStep は音声と画像を並列生成し、成果物をファイルに書き出すのだ。
func runMediaStep(ctx context.Context, appCtx *builder.AppContext, rs *store.RunState) error {
	slog.Info("Phase 2: 音声・画像生成を開始するのだ...", "scenes", rs.SceneCount())

	orc, err := builder.BuildOrchestrator(appCtx)
	if err != nil {
		return err
	}

	report, err := orc.GenerateMedia(ctx, rs)
	if err != nil {
		return fmt.Errorf("媒体生成に失敗したのだ: %w", err)
	}

	if err := persistArtifacts(ctx, appCtx, rs); err != nil {
		return err
	}
	if err := saveRunState(ctx, appCtx, rs); err != nil {
		return err
	}

	if !report.OK() {
		for scene, ferr := range report.Failed {
			slog.Error("シーンの生成に失敗したのだ", "scene", scene, "error", ferr)
		}
		return fmt.Errorf("%d件のシーンで生成に失敗したのだ。再実行すれば失敗分だけやり直すのだ", len(report.Failed))
	}

	slog.Info("音声・画像生成が完了したのだ！")
	return nil
}

// runAssembleStep はタイムラインを組み立てて ffmpeg で1本の動画に書き出すのだ。
func runAssembleStep(ctx context.Context, appCtx *builder.AppContext, rs *store.RunState) error {
	slog.Info("Phase 3: タイムライン組み立てを開始するのだ...")

	assembler := builder.BuildAssembler()
	segments, err := assembler.Assemble(rs)
	if err != nil {
		return fmt.Errorf("タイムラインの組み立てに失敗したのだ: %w", err)
	}

	renderer := builder.BuildRenderer(appCtx)
	outPath := appCtx.Options.OutputVideo
	if outPath == "" {
		outPath = config.DefaultOutputVideo
	}
	if err := renderer.Render(ctx, segments, outPath); err != nil {
		return fmt.Errorf("動画の書き出しに失敗したのだ: %w", err)
	}

	slog.Info("動画の書き出しが完了したのだ！", "output", outPath, "segments", len(segments))
	return nil
}

// persistArtifacts はメモリ上の成果物バイト列を出力先に書き出し、
// ストアの参照パスを更新するのだ。
func persistArtifacts(ctx context.Context, appCtx *builder.AppContext, rs *store.RunState) error {
	outputDir := appCtx.Options.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}

	for n := 1; n <= rs.SceneCount(); n++ {
		for _, stage := range []domain.Stage{domain.StageVoice, domain.StageImage} {
			art, err := rs.Artifact(n, stage)
			if err != nil || art == nil || len(art.Data) == 0 {
				continue
			}

			path := fmt.Sprintf("%s/scene_%02d_%s_v%d.%s", outputDir, n, stage, art.Version, extensionFor(art.MimeType))
			if err := appCtx.Writer.Write(ctx, path, bytes.NewReader(art.Data), art.MimeType); err != nil {
				return fmt.Errorf("シーン%dの%sの保存に失敗したのだ: %w", n, stage, err)
			}
			if err := rs.SetContentRef(n, stage, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadRunState(ctx context.Context, appCtx *builder.AppContext) (*store.RunState, error) {
	path := runFilePath(appCtx)
	rs, err := store.Load(ctx, appCtx.Reader, path, store.WithHistory())
	if err != nil {
		return nil, fmt.Errorf("実行状態 '%s' の読み込みに失敗したのだ: %w", path, err)
	}
	return rs, nil
}

func saveRunState(ctx context.Context, appCtx *builder.AppContext, rs *store.RunState) error {
	path := runFilePath(appCtx)
	if err := rs.Save(ctx, appCtx.Writer, path); err != nil {
		return fmt.Errorf("実行状態 '%s' の保存に失敗したのだ: %w", path, err)
	}
	return nil
}

func runFilePath(appCtx *builder.AppContext) string {
	if appCtx.Options.RunFile != "" {
		return appCtx.Options.RunFile
	}
	return config.DefaultRunFile
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return "mp3"
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
