package cmd

import (
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/internal/pipeline"

	"github.com/spf13/cobra"
)

// regenCmd は、指定シーンの指定工程だけを作り直すのだ。
var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "特定シーンの特定工程だけを再生成するのだ。",
	Long: `実行状態ファイルを読み込み、指定したシーンの指定した工程だけを再生成するのだ。
セリフを再生成すると下流の音声・画像は無効化されるので、続けてそれらも再生成するのだよ。
他のシーンの成果物には一切触れないのだ。`,
	RunE: regenCommand,
}

func init() {
}

func regenCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.Scene <= 0 {
		return fmt.Errorf("対象シーン（--scene）を1以上で指定してほしいのだ")
	}
	if opts.Stage == "" && opts.Dialogue == "" {
		return fmt.Errorf("再生成する工程（--stage）かセリフの差し替え（--dialogue）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	slog.Info("再生成モードを起動するのだ！",
		"run_file", opts.RunFile,
		"scene", opts.Scene,
		"stage", opts.Stage)

	err := pipeline.ExecuteRegenerate(ctx, cfg)
	if err != nil {
		return fmt.Errorf("再生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("再生成が完了したのだ！", "scene", opts.Scene)
	return nil
}
