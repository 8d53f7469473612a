package prompts

// プロンプトのモード名です。
const (
	ModeScript = "script"
	ModeScene  = "scene"
)

// TemplateData はプロンプトテンプレートへ流し込む値です。
type TemplateData struct {
	// 台本全体の生成用
	Topic        string
	DurationSec  int
	SceneCount   int
	SceneSeconds float64
	Style        string
	Instruction  string

	// 1シーンの再生成用
	Title        string
	SceneNumber  int
	SceneContext string // 既存台本の前後シーンの要約
}
