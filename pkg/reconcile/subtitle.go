package reconcile

import (
	"strings"

	"github.com/otochin/createmovie/pkg/domain"
)

const (
	// DefaultMinChunkSeconds は字幕1チャンクの最低表示秒数です。
	// これを下回るチャンクは可読性のため隣とまとめられます。
	DefaultMinChunkSeconds = 1.0
	// defaultMaxChunkRunes はこれを超える一文を読点で分割する閾値です。
	defaultMaxChunkRunes = 24
)

var (
	sentenceDelims = []rune{'。', '！', '？', '!', '?', '.'}
	clauseDelims   = []rune{'、', ','}
)

// SubtitleTimer は字幕テキストを表示チャンクに分割し、
// シーンの長さ [0, duration] を隙間なく覆う表示区間を割り当てます。
// 同一の (subtitle, duration) に対する出力は常に同一です。
type SubtitleTimer struct {
	MinChunkSeconds float64
	MaxChunkRunes   int
}

// NewSubtitleTimer は推奨設定の SubtitleTimer を生成します。
func NewSubtitleTimer() *SubtitleTimer {
	return &SubtitleTimer{
		MinChunkSeconds: DefaultMinChunkSeconds,
		MaxChunkRunes:   defaultMaxChunkRunes,
	}
}

// Chunk は字幕を分割して表示区間を返します。
// 区間は重なりなく連続し、末尾の End は必ず duration と一致します。
func (t *SubtitleTimer) Chunk(subtitle string, duration float64) []domain.SubtitleInterval {
	text := strings.TrimSpace(subtitle)
	if text == "" || duration <= 0 {
		return nil
	}

	chunks := splitKeepingDelims(text, sentenceDelims)
	chunks = t.splitLongChunks(chunks)
	chunks = t.mergeShortChunks(chunks, duration)

	// ルーン数に比例して時間を割り付ける
	total := 0
	for _, chunk := range chunks {
		total += len([]rune(chunk))
	}

	intervals := make([]domain.SubtitleInterval, len(chunks))
	cursor := 0.0
	for i, chunk := range chunks {
		end := cursor + duration*float64(len([]rune(chunk)))/float64(total)
		if i == len(chunks)-1 {
			end = duration // 丸め誤差を末尾で吸収する
		}
		intervals[i] = domain.SubtitleInterval{Start: cursor, End: end, Text: chunk}
		cursor = end
	}
	return intervals
}

// splitLongChunks は閾値を超える一文を読点で細分化します。
func (t *SubtitleTimer) splitLongChunks(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len([]rune(chunk)) <= t.MaxChunkRunes {
			out = append(out, chunk)
			continue
		}
		out = append(out, splitKeepingDelims(chunk, clauseDelims)...)
	}
	return out
}

// mergeShortChunks は最低表示秒数を満たさないチャンクを隣とまとめます。
// 先頭から順に走査し、違反チャンクは前方（先頭なら後方）と結合します。
func (t *SubtitleTimer) mergeShortChunks(chunks []string, duration float64) []string {
	for len(chunks) > 1 {
		total := 0
		for _, chunk := range chunks {
			total += len([]rune(chunk))
		}

		merged := false
		for i, chunk := range chunks {
			share := duration * float64(len([]rune(chunk))) / float64(total)
			if share >= t.MinChunkSeconds {
				continue
			}
			if i == 0 {
				chunks = append([]string{chunks[0] + chunks[1]}, chunks[2:]...)
			} else {
				joined := chunks[i-1] + chunks[i]
				chunks = append(chunks[:i-1], append([]string{joined}, chunks[i+1:]...)...)
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return chunks
}

// splitKeepingDelims は区切り文字を直前のチャンクに残したまま分割します。
func splitKeepingDelims(text string, delims []rune) []string {
	var out []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if containsRune(delims, r) {
			if chunk := strings.TrimSpace(sb.String()); chunk != "" {
				out = append(out, chunk)
			}
			sb.Reset()
		}
	}
	if chunk := strings.TrimSpace(sb.String()); chunk != "" {
		out = append(out, chunk)
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func containsRune(rs []rune, r rune) bool {
	for _, c := range rs {
		if c == r {
			return true
		}
	}
	return false
}
