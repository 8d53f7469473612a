package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel          = "gemini-3-flash-preview"
	DefaultImageModel     = "gemini-3-pro-image-preview"
	DefaultHTTPTimeout    = 60 * time.Second
	DefaultRateInterval   = 2 * time.Second
	DefaultVoiceID        = "21m00Tcm4TlvDq8ikWAM"
	DefaultSceneCount     = 5
	DefaultDurationSec    = 30
	DefaultMaxInFlight    = 3
	DefaultMaxRetries     = 3
	DefaultVideoWidth     = 1080
	DefaultVideoHeight    = 1920
	DefaultOutputDir      = "output"                // 生成物のデフォルト保存先なのだ
	DefaultRunFile        = "output/run_state.json" // 実行状態スナップショットの保存先なのだ
	DefaultOutputVideo    = "output/movie.mp4"
	DefaultImageStyle     = "photorealistic, cinematic lighting, high detail, vivid colors, vertical composition, masterpiece, high resolution"
	DefaultNarrationStyle = "親しみやすく、テンポの良い語り口"
)

// Config はアプリケーション全体の環境設定（APIキーや動画設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	GeminiModel      string
	GeminiImageModel string
	ImageStyleSuffix string
	FFmpegPath       string
	SubtitleFontFile string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		ElevenLabsAPIKey: envutil.GetEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoice:  envutil.GetEnv("ELEVENLABS_VOICE_ID", DefaultVoiceID),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		ImageStyleSuffix: envutil.GetEnv("IMAGE_STYLE_SUFFIX", DefaultImageStyle),
		FFmpegPath:       envutil.GetEnv("FFMPEG_PATH", "ffmpeg"),
		SubtitleFontFile: envutil.GetEnv("SUBTITLE_FONT_FILE", ""),
	}
	return cfg
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 台本生成関連
	Topic       string // --topic
	DurationSec int    // --duration
	SceneCount  int    // --scenes
	Style       string // --style
	Instruction string // --instruction

	// 入出力関連
	RunFile     string // --run-file: 実行状態スナップショットのパス
	OutputDir   string // --output-dir
	OutputVideo string // --output-video

	// 再生成関連
	Scene    int    // --scene: 対象シーン番号
	Stage    string // --stage: dialogue / voice / image
	Dialogue string // --dialogue: セリフの直接編集

	// AI挙動設定
	AIModel    string // --model: テキスト生成用のGeminiモデル
	ImageModel string // --image-model: 画像生成用のGeminiモデル

	// 実行制御
	MaxInFlight int           // --max-in-flight: 同時処理するシーン数の上限
	HTTPTimeout time.Duration // --http-timeout
}
