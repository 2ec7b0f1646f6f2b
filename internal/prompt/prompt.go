// Package prompt builds the instruction text sent to the completion
// service for each workflow stage. Builders never call the service
// themselves; they return text for the bot engine to send.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const fence = "```"

// StrategyTableHeading opens the internal marketing-plan table the model
// is asked to produce. The closing-report exporter strips this section
// before the document leaves the system.
const StrategyTableHeading = "## 行銷活動規劃表"

const initialAnalysisText = `你是一位資深的餐飲菜單優化顧問，熟悉定價策略、菜單心理學與外送平台經營。
店家剛上傳了菜單，並提供了以下背景資訊：

{{.Background}}

菜單內容如下：

{{.MenuText}}

請針對這份菜單提出優化建議，輸出必須依照下列固定結構（使用 Markdown）：

# 菜單健檢總覽
## 一、品項與定價分析
## 二、菜單結構調整建議
## 三、加購與套餐設計
` + StrategyTableHeading + `

最後一節請以 Markdown 表格列出建議的行銷活動（欄位：活動名稱、目標、執行方式、預期效益）。
語氣務實具體，所有金額以新台幣計。`

const resummarizeText = `請根據目前為止的完整討論內容，以及下方的原始菜單內容，重新整理一份最新版本的優化建議。
輸出結構必須與先前相同：

# 菜單健檢總覽
## 一、品項與定價分析
## 二、菜單結構調整建議
## 三、加購與套餐設計
` + StrategyTableHeading + `

先前討論中店家已接受或修改過的建議，請以最新共識為準。

菜單內容：

{{.MenuText}}`

var menuExportText = strings.Join([]string{
	"請將目前最新版本的建議菜單整理成一個 JSON 陣列，只輸出 JSON，不要輸出任何其他文字或說明。",
	"每個項目的欄位契約：",
	`- "name"：品名（字串）`,
	`- "price"：價格（字串，只含數字）`,
	`- "tags"：加購註記（字串陣列，最多十二項；有加價的註記結尾必須是 (+金額)）`,
	"範例：",
	fence + "json",
	`[`,
	`  {"name":"和牛漢堡","price":"180","tags":["加起司(+30)","加蛋(+15)"]},`,
	`  {"name":"招牌紅茶","price":"45","tags":[]}`,
	`]`,
	fence,
}, "\n")

const closingReportText = `你是一位餐飲顧問，請為本次菜單優化案撰寫正式的結案報告。

案件資訊：
- 對象店家：{{.SubjectName}}
- 報告製作人：{{.PreparerName}}
- 結案日期：{{.ClosingDate}}
- 目標客單價：{{.TargetAOV}}
- 目標客群：{{.TargetAudience}}

原始菜單節錄：

{{.MenuExcerpt}}

雙方最終確認的優化建議：

{{.FinalAdvice}}

請以 Markdown 撰寫完整報告，包含：案件摘要、優化前後對照、已採納的建議、後續追蹤事項。
整份報告內容必須放在一個 ` + fence + `markdown 圍欄中輸出，圍欄外不要有任何文字。`

var (
	initialAnalysisTemplate = template.Must(template.New("initial_analysis").Parse(initialAnalysisText))
	resummarizeTemplate     = template.Must(template.New("resummarize").Parse(resummarizeText))
	closingReportTemplate   = template.Must(template.New("closing_report").Parse(closingReportText))
)

// ReportFacts carries the collected fields interpolated into the
// closing-report instruction.
type ReportFacts struct {
	SubjectName    string
	PreparerName   string
	ClosingDate    string
	TargetAOV      string
	TargetAudience string
	MenuExcerpt    string
	FinalAdvice    string
}

// InitialAnalysis builds the first-turn instruction. It must be sent
// with no prior history.
func InitialAnalysis(background, menuText string) (string, error) {
	return render(initialAnalysisTemplate, map[string]string{
		"Background": strings.TrimSpace(background),
		"MenuText":   strings.TrimSpace(menuText),
	})
}

// Resummarize builds the regenerate instruction. The caller is
// responsible for filtering command turns out of the history it sends
// alongside.
func Resummarize(menuText string) (string, error) {
	return render(resummarizeTemplate, map[string]string{
		"MenuText": strings.TrimSpace(menuText),
	})
}

// MenuExport returns the JSON-array contract instruction. Sent with the
// full history.
func MenuExport() string {
	return menuExportText
}

// ClosingReport builds the final report instruction from the collected
// facts and the agreed advice block.
func ClosingReport(facts ReportFacts) (string, error) {
	if strings.TrimSpace(facts.TargetAOV) == "" {
		facts.TargetAOV = "未提供"
	}
	if strings.TrimSpace(facts.TargetAudience) == "" {
		facts.TargetAudience = "未提供"
	}
	return render(closingReportTemplate, facts)
}

func render(tmpl *template.Template, data any) (string, error) {
	buffer := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buffer, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", tmpl.Name(), err)
	}
	return buffer.String(), nil
}
