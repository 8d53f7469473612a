package cmd

import (
	"fmt"
	"os"

	"github.com/otochin/createmovie/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// opts は addAppFlags で各フラグに紐付けられる実行時パラメータなのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 台本生成関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Topic, "topic", "t", "", "動画のトピック（お題）なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.DurationSec, "duration", "d", config.DefaultDurationSec, "動画全体の目標秒数なのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.SceneCount, "scenes", "n", config.DefaultSceneCount, "シーンの数なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Style, "style", config.DefaultNarrationStyle, "語り口のスタイル指定なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Instruction, "instruction", "", "台本生成への追加指示なのだ。")

	// --- 入出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.RunFile, "run-file", "f", config.DefaultRunFile, "実行状態スナップショットのパス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "音声・画像の保存先ディレクトリ（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.OutputVideo, "output-video", config.DefaultOutputVideo, "完成動画の保存パスなのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "台本生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使う Gemini モデル名なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().IntVar(&opts.MaxInFlight, "max-in-flight", config.DefaultMaxInFlight, "同時に処理するシーン数の上限なのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "外部APIリクエストのタイムアウトなのだ。")

	// --- 再生成固有設定 ---
	regenCmd.Flags().IntVarP(&opts.Scene, "scene", "s", 0, "再生成対象のシーン番号（1始まり）なのだ。")
	regenCmd.Flags().StringVar(&opts.Stage, "stage", "", "再生成する工程（dialogue / voice / image）なのだ。")
	regenCmd.Flags().StringVar(&opts.Dialogue, "dialogue", "", "セリフを直接差し替えるのだ。下流の音声・画像は無効化されるのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// .env があれば読み込むのだ。なくてもエラーにはしないのだよ。
	_ = godotenv.Load()

	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}

	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"createmovie",
		addAppFlags,
		preRunAppE,
		generateCmd,
		scriptCmd,
		mediaCmd,
		assembleCmd,
		regenCmd,
	)
}
