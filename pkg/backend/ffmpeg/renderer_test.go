package ffmpeg

import (
	"strings"
	"testing"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/timeline"
)

func testSegments() []timeline.Segment {
	return []timeline.Segment{
		{SceneNumber: 1, Duration: 5.0, ImageRef: "s1.png", VoiceRef: "s1.mp3", Crossfade: 0.5},
		{SceneNumber: 2, Duration: 4.0, ImageRef: "s2.png", VoiceRef: "s2.mp3", Crossfade: 0.5},
		{SceneNumber: 3, Duration: 3.0, ImageRef: "s3.png", VoiceRef: "s3.mp3"},
	}
}

func TestBuildFilterGraph(t *testing.T) {
	t.Run("クロスフェードのオフセットが累積尺から計算される", func(t *testing.T) {
		graph := buildFilterGraph(testSegments(), DefaultOptions())

		// 1本目の遷移: 5.0 - 0.5 = 4.5 秒地点
		if !strings.Contains(graph, "offset=4.500") {
			t.Errorf("1本目のオフセットが見つからない: %s", graph)
		}
		// 2本目の遷移: 4.5 + (4.0 - 0.5) = 8.0 秒地点
		if !strings.Contains(graph, "offset=8.000") {
			t.Errorf("2本目のオフセットが見つからない: %s", graph)
		}
		if !strings.Contains(graph, "acrossfade=d=0.500") {
			t.Errorf("音声クロスフェードが見つからない: %s", graph)
		}
		if !strings.Contains(graph, "[vout]") || !strings.Contains(graph, "[aout]") {
			t.Errorf("最終出力ラベルがない: %s", graph)
		}
	})

	t.Run("単一セグメントはフェードなしで出力される", func(t *testing.T) {
		segs := testSegments()[:1]
		graph := buildFilterGraph(segs, DefaultOptions())
		if strings.Contains(graph, "xfade") {
			t.Errorf("単一セグメントに xfade が入っている: %s", graph)
		}
		if !strings.Contains(graph, "[v0]null[vout]") {
			t.Errorf("映像のパススルーがない: %s", graph)
		}
		if !strings.Contains(graph, "[1:a]anull[aout]") {
			t.Errorf("音声のパススルーがない: %s", graph)
		}
	})

	t.Run("縦型解像度へのスケーリングが入る", func(t *testing.T) {
		graph := buildFilterGraph(testSegments(), DefaultOptions())
		if !strings.Contains(graph, "scale=1080:1920") {
			t.Errorf("スケーリング指定がない: %s", graph)
		}
		if !strings.Contains(graph, "crop=1080:1920") {
			t.Errorf("クロップ指定がない: %s", graph)
		}
		if !strings.Contains(graph, "fps=30") {
			t.Errorf("フレームレート指定がない: %s", graph)
		}
	})

	t.Run("字幕区間は開始と終了つきで焼き込まれる", func(t *testing.T) {
		segs := testSegments()[:1]
		segs[0].Subtitles = []domain.SubtitleInterval{
			{Start: 0, End: 2.5, Text: "深海には光が届かない"},
			{Start: 2.5, End: 5.0, Text: "生物は自ら光る"},
		}
		graph := buildFilterGraph(segs, DefaultOptions())
		if !strings.Contains(graph, "drawtext=text='深海には光が届かない'") {
			t.Errorf("字幕テキストが見つからない: %s", graph)
		}
		if !strings.Contains(graph, "enable='between(t,2.500,5.000)'") {
			t.Errorf("字幕の表示区間が見つからない: %s", graph)
		}
	})
}

func TestEscapeDrawtext(t *testing.T) {
	got := escapeDrawtext(`It's 100%: a, b`)
	want := `It\'s 100\%\: a\, b`
	if got != want {
		t.Errorf("escapeDrawtext = %q, want %q", got, want)
	}
}

func TestBuildArgs(t *testing.T) {
	t.Run("出力設定が引数に反映される", func(t *testing.T) {
		args, err := buildArgs(testSegments(), "out.mp4", DefaultOptions())
		if err != nil {
			t.Fatalf("buildArgs に失敗: %v", err)
		}
		joined := strings.Join(args, " ")
		if !strings.Contains(joined, "-b:v 8M") {
			t.Errorf("ビットレート指定がない: %s", joined)
		}
		if !strings.Contains(joined, "-loop 1 -t 5.000 -i s1.png -i s1.mp3") {
			t.Errorf("入力指定が期待と異なる: %s", joined)
		}
		if args[len(args)-1] != "out.mp4" {
			t.Errorf("出力パスが末尾にない: %v", args)
		}
	})

	t.Run("セグメントが空ならエラー", func(t *testing.T) {
		if _, err := buildArgs(nil, "out.mp4", DefaultOptions()); err == nil {
			t.Fatal("エラーが返らなかった")
		}
	})

	t.Run("素材パス未設定ならエラー", func(t *testing.T) {
		segs := testSegments()
		segs[1].VoiceRef = ""
		if _, err := buildArgs(segs, "out.mp4", DefaultOptions()); err == nil {
			t.Fatal("エラーが返らなかった")
		}
	})
}
