package builder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/otochin/createmovie/internal/config"
	elevenbackend "github.com/otochin/createmovie/pkg/backend/elevenlabs"
	ffmpegbackend "github.com/otochin/createmovie/pkg/backend/ffmpeg"
	geminibackend "github.com/otochin/createmovie/pkg/backend/gemini"
	imagebackend "github.com/otochin/createmovie/pkg/backend/imagegen"
	"github.com/otochin/createmovie/pkg/orchestrator"
	"github.com/otochin/createmovie/pkg/timeline"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	// 台本生成では多少の遊びがほしいので高めにしてあります
	const defaultGeminiTemperature = float32(0.7)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// BuildOrchestrator は台本・音声・画像の各バックエンドを束ねたオーケストレーターを構築します。
func BuildOrchestrator(appCtx *AppContext) (*orchestrator.Orchestrator, error) {
	cfg := appCtx.Config

	scriptBackend, err := geminibackend.New(appCtx.aiClient, cfg.GeminiModel, cfg.Options.Style)
	if err != nil {
		return nil, fmt.Errorf("台本バックエンドの構築に失敗したのだ: %w", err)
	}

	voiceBackend := elevenbackend.New(
		&http.Client{Timeout: appCtx.Options.HTTPTimeout},
		cfg.ElevenLabsAPIKey,
		cfg.ElevenLabsVoice,
	)

	imageBackend, err := imagebackend.New(
		appCtx.aiClient,
		appCtx.Reader,
		appCtx.httpClient,
		cfg.GeminiImageModel,
		cfg.ImageStyleSuffix,
	)
	if err != nil {
		return nil, fmt.Errorf("画像バックエンドの構築に失敗したのだ: %w", err)
	}

	orcCfg := orchestrator.DefaultConfig()
	if appCtx.Options.MaxInFlight > 0 {
		orcCfg.MaxInFlight = appCtx.Options.MaxInFlight
	}
	orcCfg.MaxRetries = config.DefaultMaxRetries
	orcCfg.RateInterval = config.DefaultRateInterval
	orcCfg.ImageWidth = config.DefaultVideoWidth
	orcCfg.ImageHeight = config.DefaultVideoHeight

	return orchestrator.New(scriptBackend, voiceBackend, imageBackend, orcCfg), nil
}

// BuildAssembler はタイムライン組み立て器を構築します。
func BuildAssembler() *timeline.Assembler {
	return timeline.NewAssembler(timeline.Options{
		CrossfadeSeconds: timeline.DefaultCrossfadeSeconds,
	})
}

// BuildRenderer は ffmpeg レンダラーを構築します。
func BuildRenderer(appCtx *AppContext) *ffmpegbackend.Renderer {
	opts := ffmpegbackend.DefaultOptions()
	opts.FontFile = appCtx.Config.SubtitleFontFile
	return ffmpegbackend.New(appCtx.Config.FFmpegPath, opts)
}
