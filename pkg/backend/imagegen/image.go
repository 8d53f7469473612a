// Package imagegen はシーン画像を生成するバックエンドです。
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	imagekit "github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/otochin/createmovie/pkg/backend"
)

const (
	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
	defaultTTL             = 5 * time.Minute

	// ショート動画向けの縦型比率
	defaultAspectRatio = "9:16"

	defaultNegativePrompt = "text, watermark, logo, low quality, blurry, deformed"
)

// ImageBackend は backend.ImageGenerator の gemini-image-kit 実装です。
type ImageBackend struct {
	imgGen      imagekit.ImageGenerator
	styleSuffix string
}

// New は画像生成エンジンを初期化します。
func New(
	aiClient gemini.GenerativeModel,
	reader remoteio.InputReader,
	httpClient httpkit.ClientInterface,
	model, styleSuffix string,
) (*ImageBackend, error) {
	imgCache := cache.New(defaultCacheExpiration, cacheCleanupInterval)
	core, err := imagekit.NewGeminiImageCore(
		aiClient,
		reader,
		httpClient,
		imgCache,
		defaultTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCore の初期化に失敗しました: %w", err)
	}

	imgGen, err := imagekit.NewGeminiGenerator(model, core)
	if err != nil {
		return nil, fmt.Errorf("GeminiGenerator の初期化に失敗しました: %w", err)
	}

	return &ImageBackend{
		imgGen:      imgGen,
		styleSuffix: styleSuffix,
	}, nil
}

// Generate はシーンの画像プロンプトから一枚絵を生成します。
func (ib *ImageBackend) Generate(ctx context.Context, prompt string, width, height int) (backend.ImageData, error) {
	finalPrompt := prompt
	if ib.styleSuffix != "" {
		finalPrompt = fmt.Sprintf("%s, %s", prompt, ib.styleSuffix)
	}

	slog.Info("ImageBackend: Generating scene image", "aspect_ratio", aspectRatio(width, height))
	resp, err := ib.imgGen.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
		Prompt:         finalPrompt,
		NegativePrompt: defaultNegativePrompt,
		AspectRatio:    aspectRatio(width, height),
	})
	if err != nil {
		return backend.ImageData{}, fmt.Errorf("画像生成に失敗しました: %w", err)
	}

	return backend.ImageData{
		Data:     resp.Data,
		MimeType: resp.MimeType,
	}, nil
}

// aspectRatio は出力解像度をAPIが受け付ける比率表記に丸めます。
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return defaultAspectRatio
	}
	switch {
	case width == height:
		return "1:1"
	case width*16 == height*9:
		return "9:16"
	case height*16 == width*9:
		return "16:9"
	case width < height:
		return "9:16"
	default:
		return "16:9"
	}
}
