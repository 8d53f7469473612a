package cmd

import (
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/internal/pipeline"

	"github.com/spf13/cobra"
)

// assembleCmd は、生成済みの素材からタイムラインを組み立てて動画を書き出すのだ。
var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "生成済みの素材から動画を書き出すのだ。",
	Long: `実行状態ファイルを読み込み、全シーンの素材が揃っていることを確認してから、
クロスフェードと字幕つきの1本の動画として ffmpeg で書き出すのだ。
未完了のシーンがあるときは、どのシーンが足りないかを報告して中断するのだよ。`,
	RunE: assembleCommand,
}

func init() {
}

func assembleCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("動画組み立てモードを起動するのだ！",
		"run_file", opts.RunFile,
		"output", opts.OutputVideo)

	err := pipeline.ExecuteAssembleOnly(ctx, cfg)
	if err != nil {
		return fmt.Errorf("動画の組み立て中にエラーが発生したのだ: %w", err)
	}

	slog.Info("動画の書き出しが完了したのだ！", "output", opts.OutputVideo)
	return nil
}
