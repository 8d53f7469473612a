package cmd

import (
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/internal/pipeline"

	"github.com/spf13/cobra"
)

// scriptCmd は、台本の生成のみを実行するのだ。
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "台本のみを生成して実行状態を保存するのだ。",
	Long: `トピックを解析し、シーンごとのセリフ・画像プロンプト・予定秒数・字幕を
生成して実行状態ファイルに保存するのだ。音声・画像の生成は行わないのだよ。
台本を確認してから media コマンドで続きを実行するとよいのだ。`,
	RunE: scriptCommand,
}

func init() {
}

func scriptCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.Topic == "" {
		return fmt.Errorf("トピック（--topic）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.Options = opts

	slog.Info("台本生成モードを起動するのだ！",
		"topic", opts.Topic,
		"text_model", cfg.GeminiModel,
		"run_file", cfg.Options.RunFile)

	err := pipeline.ExecuteScriptOnly(ctx, cfg)
	if err != nil {
		return fmt.Errorf("台本生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("台本の生成が完了したのだ！", "run_file", opts.RunFile)
	return nil
}
