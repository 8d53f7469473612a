// Package ffmpeg はタイムラインを ffmpeg で一本の動画に書き出すレンダラーです。
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/otochin/createmovie/pkg/domain"
	"github.com/otochin/createmovie/pkg/timeline"
)

const (
	defaultWidth        = 1080
	defaultHeight       = 1920
	defaultFPS          = 30
	defaultVideoBitrate = "8M"

	subtitleFontSize = 64
	subtitleMarginY  = 300
)

// Options はレンダリングの出力設定です。
type Options struct {
	Width        int
	Height       int
	FPS          int
	VideoBitrate string
	FontFile     string
}

// DefaultOptions はショート動画向けの縦型1080x1920設定を返します。
func DefaultOptions() Options {
	return Options{
		Width:        defaultWidth,
		Height:       defaultHeight,
		FPS:          defaultFPS,
		VideoBitrate: defaultVideoBitrate,
	}
}

// Renderer は ffmpeg コマンドを組み立てて実行します。
type Renderer struct {
	binary string
	opts   Options
}

// New はレンダラーを初期化します。binary が空なら PATH 上の ffmpeg を使います。
func New(binary string, opts Options) *Renderer {
	if binary == "" {
		binary = "ffmpeg"
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.VideoBitrate == "" {
		opts.VideoBitrate = defaultVideoBitrate
	}
	return &Renderer{binary: binary, opts: opts}
}

// Render はセグメント列を結合した動画を outPath に書き出します。
// 各セグメントの ImageRef / VoiceRef はローカルのファイルパスである必要があります。
func (r *Renderer) Render(ctx context.Context, segments []timeline.Segment, outPath string) error {
	args, err := buildArgs(segments, outPath, r.opts)
	if err != nil {
		return err
	}

	slog.Info("Renderer: Running ffmpeg", "segments", len(segments), "output", outPath)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg の実行に失敗しました: %w (stderr: %s)", err, tail(stderr.String(), 800))
	}
	return nil
}

// buildArgs は ffmpeg のコマンドライン引数を組み立てます。
// 入力はセグメントごとに静止画と音声の2本で、静止画は i*2、音声は i*2+1 の
// 入力インデックスになります。
func buildArgs(segments []timeline.Segment, outPath string, opts Options) ([]string, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("セグメントが空です")
	}

	args := []string{"-y"}
	for _, seg := range segments {
		if seg.ImageRef == "" || seg.VoiceRef == "" {
			return nil, fmt.Errorf("シーン%dの素材パスが未設定です", seg.SceneNumber)
		}
		args = append(args,
			"-loop", "1",
			"-t", formatSeconds(seg.Duration),
			"-i", seg.ImageRef,
			"-i", seg.VoiceRef,
		)
	}

	graph := buildFilterGraph(segments, opts)
	args = append(args,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", "[aout]",
		"-r", fmt.Sprintf("%d", opts.FPS),
		"-b:v", opts.VideoBitrate,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		outPath,
	)
	return args, nil
}

// buildFilterGraph はスケーリング・字幕・クロスフェードを連結したフィルタグラフを返します。
func buildFilterGraph(segments []timeline.Segment, opts Options) string {
	var parts []string

	// 各シーン: スケーリングと字幕焼き込み
	for i, seg := range segments {
		filters := []string{
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", opts.Width, opts.Height),
			fmt.Sprintf("crop=%d:%d", opts.Width, opts.Height),
			"setsar=1",
			fmt.Sprintf("fps=%d", opts.FPS),
		}
		for _, sub := range seg.Subtitles {
			filters = append(filters, drawtextFilter(sub, opts))
		}
		parts = append(parts, fmt.Sprintf("[%d:v]%s[v%d]", i*2, strings.Join(filters, ","), i))
	}

	if len(segments) == 1 {
		parts = append(parts,
			"[v0]null[vout]",
			"[1:a]anull[aout]",
		)
		return strings.Join(parts, ";")
	}

	// クロスフェード連結。xfade の offset は結合済みストリーム上で
	// 遷移が始まる時刻なので、ここまでの尺からフェード分を引いて積み上げます。
	offset := 0.0
	for i := 0; i < len(segments)-1; i++ {
		cf := segments[i].Crossfade
		offset += segments[i].Duration - cf

		prevV := fmt.Sprintf("[x%d]", i-1)
		prevA := fmt.Sprintf("[ax%d]", i-1)
		if i == 0 {
			prevV = "[v0]"
			prevA = "[1:a]"
		}
		outV := fmt.Sprintf("[x%d]", i)
		outA := fmt.Sprintf("[ax%d]", i)
		if i == len(segments)-2 {
			outV = "[vout]"
			outA = "[aout]"
		}

		parts = append(parts, fmt.Sprintf("%s[v%d]xfade=transition=fade:duration=%s:offset=%s%s",
			prevV, i+1, formatSeconds(cf), formatSeconds(offset), outV))
		parts = append(parts, fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s",
			prevA, (i+1)*2+1, formatSeconds(cf), outA))
	}

	return strings.Join(parts, ";")
}

// drawtextFilter は字幕区間ひとつ分の drawtext フィルタを返します。
func drawtextFilter(sub domain.SubtitleInterval, opts Options) string {
	var sb strings.Builder
	sb.WriteString("drawtext=")
	if opts.FontFile != "" {
		fmt.Fprintf(&sb, "fontfile=%s:", escapeDrawtext(opts.FontFile))
	}
	fmt.Fprintf(&sb, "text='%s'", escapeDrawtext(sub.Text))
	fmt.Fprintf(&sb, ":fontsize=%d:fontcolor=white:borderw=3:bordercolor=black", subtitleFontSize)
	fmt.Fprintf(&sb, ":x=(w-text_w)/2:y=h-%d", subtitleMarginY)
	fmt.Fprintf(&sb, ":enable='between(t,%s,%s)'", formatSeconds(sub.Start), formatSeconds(sub.End))
	return sb.String()
}

// escapeDrawtext は drawtext が特別扱いする文字をエスケープします。
func escapeDrawtext(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
		`,`, `\,`,
	)
	return replacer.Replace(s)
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
