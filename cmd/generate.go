package cmd

import (
	"fmt"
	"log/slog"

	"github.com/otochin/createmovie/internal/config"
	"github.com/otochin/createmovie/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、台本生成から動画の書き出しまでを一気通貫で実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "トピックから完成動画までを一気に生成しますなのだ。",
	Long: `トピックを基に台本を生成し、シーンごとの音声と画像を並列生成して、
最後に1本の縦型ショート動画として書き出すのだ。
途中で失敗したシーンがあっても、media コマンドの再実行で続きから拾えるのだよ。`,
	RunE: generateCommand,
}

func init() {
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.Topic == "" {
		return fmt.Errorf("トピック（--topic）を指定してほしいのだ")
	}

	// 2. 環境変数等から基本設定をロードするのだ
	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	slog.Info("動画生成パイプラインを起動するのだ！",
		"topic", opts.Topic,
		"text_model", cfg.GeminiModel,
		"image_model", cfg.GeminiImageModel,
		"output", opts.OutputVideo)

	// 3. 更新した config を考慮しつつパイプラインを実行するのだ
	err := pipeline.Execute(ctx, cfg)
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
