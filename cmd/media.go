package cmd

import (
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/internal/pipeline"

	"github.com/spf13/cobra"
)

// mediaCmd は、保存済みの台本を基に音声と画像の生成のみを実行するのだ。
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "保存済み台本から音声と画像を生成するのだ。",
	Long: `実行状態ファイルを読み込み、シーンごとの音声合成と画像生成を並列実行するのだ。
完了済みの工程はスキップされるので、失敗後の再実行は失敗分だけやり直すのだよ。`,
	RunE: mediaCommand,
}

func init() {
}

func mediaCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.LoadConfig()
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	slog.Info("媒体生成モードを起動するのだ！",
		"run_file", opts.RunFile,
		"image_model", cfg.GeminiImageModel,
		"max_in_flight", opts.MaxInFlight)

	err := pipeline.ExecuteMediaOnly(ctx, cfg)
	if err != nil {
		return fmt.Errorf("媒体生成中にエラーが発生したのだ: %w", err)
	}

	slog.Info("音声・画像の生成が完了したのだ！", "output_dir", opts.OutputDir)
	return nil
}
