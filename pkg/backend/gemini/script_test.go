package gemini

import (
	"strings"
	"testing"

	"github.com/otochin/createmovie/pkg/backend"
	"github.com/otochin/createmovie/pkg/prompts"
)

const sampleScriptJSON = `{
  "title": "深海のふしぎ",
  "description": "深海生物を紹介するショート動画",
  "scenes": [
    {"scene_number": 1, "dialogue": "深海には光が届かないのだ。", "image_prompt": "pitch black deep sea", "duration": 5.0, "subtitle": "深海には光が届かない"},
    {"scene_number": 2, "dialogue": "そこに住む生物は自ら光るのだ。", "image_prompt": "bioluminescent fish", "duration": 5.0, "subtitle": "生物は自ら光る"}
  ],
  "total_duration": 10.0
}`

func TestParseDocument(t *testing.T) {
	t.Run("フェンス付きコードブロックから抽出できる", func(t *testing.T) {
		raw := "もちろんです！以下が台本です。\n```json\n" + sampleScriptJSON + "\n```\nご確認ください。"
		doc, err := parseDocument(raw)
		if err != nil {
			t.Fatalf("parseDocument に失敗: %v", err)
		}
		if doc.Title != "深海のふしぎ" {
			t.Errorf("Title が一致しない: %q", doc.Title)
		}
		if len(doc.Scenes) != 2 {
			t.Fatalf("シーン数が期待と異なる: %d", len(doc.Scenes))
		}
		if doc.Scenes[1].SceneNumber != 2 {
			t.Errorf("scene_number のパースに失敗: %d", doc.Scenes[1].SceneNumber)
		}
	})

	t.Run("言語指定なしのフェンスでも抽出できる", func(t *testing.T) {
		raw := "```\n" + sampleScriptJSON + "\n```"
		doc, err := parseDocument(raw)
		if err != nil {
			t.Fatalf("parseDocument に失敗: %v", err)
		}
		if doc.TotalDuration != 10.0 {
			t.Errorf("total_duration が一致しない: %f", doc.TotalDuration)
		}
	})

	t.Run("前置き混じりの生JSONは波括弧フォールバックで抽出できる", func(t *testing.T) {
		raw := "以下の台本を作成しました。\n" + sampleScriptJSON
		doc, err := parseDocument(raw)
		if err != nil {
			t.Fatalf("parseDocument に失敗: %v", err)
		}
		if len(doc.Scenes) != 2 {
			t.Errorf("シーン数が期待と異なる: %d", len(doc.Scenes))
		}
	})

	t.Run("JSONでない応答はエラーになる", func(t *testing.T) {
		_, err := parseDocument("申し訳ありませんが、台本を生成できませんでした。")
		if err == nil {
			t.Fatal("エラーが返らなかった")
		}
		if !strings.Contains(err.Error(), "解析に失敗") {
			t.Errorf("エラーメッセージが期待と異なる: %v", err)
		}
	})
}

func TestParseScene(t *testing.T) {
	t.Run("単一シーンのJSONをパースできる", func(t *testing.T) {
		raw := "```json\n{\"scene_number\": 3, \"dialogue\": \"新しいセリフなのだ。\", \"image_prompt\": \"new scene\", \"duration\": 4.5, \"subtitle\": \"新しいセリフ\"}\n```"
		scene, err := parseScene(raw)
		if err != nil {
			t.Fatalf("parseScene に失敗: %v", err)
		}
		if scene.Dialogue != "新しいセリフなのだ。" {
			t.Errorf("Dialogue が一致しない: %q", scene.Dialogue)
		}
		if scene.Duration != 4.5 {
			t.Errorf("duration が一致しない: %f", scene.Duration)
		}
	})
}

func TestBuildScriptPrompt(t *testing.T) {
	sb, err := New(nil, "test-model", "落ち着いたナレーション")
	if err != nil {
		t.Fatalf("バックエンドの初期化に失敗: %v", err)
	}

	prompt, err := sb.buildScriptPrompt(backend.ScriptRequest{
		Topic:       "ずんだ餅",
		DurationSec: 30,
		SceneCount:  5,
	})
	if err != nil {
		t.Fatalf("buildScriptPrompt に失敗: %v", err)
	}

	if !strings.HasPrefix(prompt, prompts.SystemPromptScript) {
		t.Error("システムプロンプトが先頭に付いていない")
	}
	if !strings.Contains(prompt, "ずんだ餅") {
		t.Errorf("トピックが含まれていない: %q", prompt)
	}
	if !strings.Contains(prompt, "落ち着いたナレーション") {
		t.Error("スタイル未指定時はデフォルトのスタイルが使われるはず")
	}
}

func TestSceneContext(t *testing.T) {
	docRaw := "```json\n" + sampleScriptJSON + "\n```"
	doc, err := parseDocument(docRaw)
	if err != nil {
		t.Fatalf("前提となる台本のパースに失敗: %v", err)
	}

	ctx := sceneContext(doc, 2)
	if !strings.Contains(ctx, "→ シーン2") {
		t.Errorf("再生成対象のマーカーがない: %q", ctx)
	}
	if !strings.Contains(ctx, "シーン1") {
		t.Errorf("前後の文脈が含まれていない: %q", ctx)
	}
}
