// Package gemini は Gemini を使った台本生成バックエンドです。
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-gemini-client/pkg/gemini"

	"github.com/otochin/createmovie/pkg/backend"
	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/prompts"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// ScriptBackend は backend.ScriptGenerator の Gemini 実装です。
type ScriptBackend struct {
	aiClient      gemini.GenerativeModel
	model         string
	promptBuilder prompts.PromptBuilder
	style         string
}

// New は依存関係（AIクライアントとプロンプトビルダー）を注入して初期化します。
func New(aiClient gemini.GenerativeModel, model, style string) (*ScriptBackend, error) {
	pb, err := prompts.NewTextPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
	}

	return &ScriptBackend{
		aiClient:      aiClient,
		model:         model,
		promptBuilder: pb,
		style:         style,
	}, nil
}

// buildScriptPrompt はシステムプロンプトとテンプレート本文を結合した
// 台本生成用プロンプトを組み立てます。
func (sb *ScriptBackend) buildScriptPrompt(req backend.ScriptRequest) (string, error) {
	sceneSeconds := float64(req.DurationSec) / float64(req.SceneCount)
	style := req.Style
	if style == "" {
		style = sb.style
	}

	body, err := sb.promptBuilder.Build(prompts.ModeScript, prompts.TemplateData{
		Topic:        req.Topic,
		DurationSec:  req.DurationSec,
		SceneCount:   req.SceneCount,
		SceneSeconds: sceneSeconds,
		Style:        style,
		Instruction:  req.Instruction,
	})
	if err != nil {
		return "", fmt.Errorf("プロンプト生成に失敗: %w", err)
	}
	return prompts.SystemPromptScript + "\n\n" + body, nil
}

// Generate はトピックから台本全体の JSON を生成してパースします。
func (sb *ScriptBackend) Generate(ctx context.Context, req backend.ScriptRequest) (domain.ScriptDocument, error) {
	finalPrompt, err := sb.buildScriptPrompt(req)
	if err != nil {
		return domain.ScriptDocument{}, err
	}

	slog.Info("ScriptBackend: Calling Gemini API", "model", sb.model)
	resp, err := sb.aiClient.GenerateContent(ctx, finalPrompt, sb.model)
	if err != nil {
		return domain.ScriptDocument{}, fmt.Errorf("台本生成の呼び出しに失敗しました: %w", err)
	}

	return parseDocument(resp.Text)
}

// RegenerateScene は既存台本を文脈として n 番目のシーンだけを作り直します。
func (sb *ScriptBackend) RegenerateScene(ctx context.Context, doc domain.ScriptDocument, n int, instruction string) (domain.Scene, error) {
	if n < 1 || n > len(doc.Scenes) {
		return domain.Scene{}, &domain.InvalidSceneIndexError{Index: n, Count: len(doc.Scenes)}
	}

	finalPrompt, err := sb.promptBuilder.Build(prompts.ModeScene, prompts.TemplateData{
		Title:        doc.Title,
		SceneNumber:  n,
		SceneContext: sceneContext(doc, n),
		Instruction:  instruction,
	})
	if err != nil {
		return domain.Scene{}, fmt.Errorf("プロンプト生成に失敗: %w", err)
	}

	slog.Info("ScriptBackend: Regenerating scene", "scene", n, "model", sb.model)
	resp, err := sb.aiClient.GenerateContent(ctx, finalPrompt, sb.model)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("シーン再生成の呼び出しに失敗しました: %w", err)
	}

	scene, err := parseScene(resp.Text)
	if err != nil {
		return domain.Scene{}, err
	}
	scene.SceneNumber = n
	if scene.PlannedDuration == 0 {
		scene.PlannedDuration = scene.Duration
	}
	return scene, nil
}

// sceneContext は再生成対象の前後のセリフを文脈として組み立てます。
func sceneContext(doc domain.ScriptDocument, n int) string {
	var sb strings.Builder
	for _, scene := range doc.Scenes {
		marker := "  "
		if scene.SceneNumber == n {
			marker = "→ " // 作り直す対象
		}
		fmt.Fprintf(&sb, "%sシーン%d: %s\n", marker, scene.SceneNumber, scene.Dialogue)
	}
	return sb.String()
}

func parseDocument(raw string) (domain.ScriptDocument, error) {
	rawJSON := extractJSON(raw)

	var doc domain.ScriptDocument
	if err := json.Unmarshal([]byte(rawJSON), &doc); err != nil {
		return domain.ScriptDocument{}, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return doc, nil
}

func parseScene(raw string) (domain.Scene, error) {
	rawJSON := extractJSON(raw)

	var scene domain.Scene
	if err := json.Unmarshal([]byte(rawJSON), &scene); err != nil {
		return domain.Scene{}, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return scene, nil
}

// extractJSON はフェンス付きコードブロックや前置きの混じった応答から
// JSON 本体を取り出します。
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	matches := jsonBlockRegex.FindStringSubmatch(raw)
	if len(matches) > 1 {
		return matches[1]
	}

	// Fallback 1: 最外の JSON オブジェクトを探す
	firstBracket := strings.Index(raw, "{")
	lastBracket := strings.LastIndex(raw, "}")
	if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
		return raw[firstBracket : lastBracket+1]
	}

	// Fallback 2: 応答全体を JSON とみなす
	return raw
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
