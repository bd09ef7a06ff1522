package notify

import (
	"fmt"
	"strings"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// markdownFormatter renders each alert kind as a Telegram MarkdownV2 line.
type markdownFormatter struct {
	b strings.Builder
}

func (f *markdownFormatter) VisitApyDrop(a types.ApyDrop) {
	fmt.Fprintf(&f.b, "📉 *APY drop* on `%s`\n%s → %s",
		escapeMarkdownV2(a.PoolID), pct(a.OldAPY), pct(a.NewAPY))
}

func (f *markdownFormatter) VisitRiskIncrease(a types.RiskIncrease) {
	fmt.Fprintf(&f.b, "⚠️ *Risk increase* on `%s`\nrisk score now %s",
		escapeMarkdownV2(a.PoolID), escapeMarkdownV2(fmt.Sprintf("%.2f", a.RiskFactor)))
}

func (f *markdownFormatter) VisitRebalanceNeeded(a types.RebalanceNeeded) {
	fmt.Fprintf(&f.b, "🔁 *Rebalance needed*\n%s", escapeMarkdownV2(a.Reason))
}

func (f *markdownFormatter) VisitThresholdBreached(a types.ThresholdBreached) {
	fmt.Fprintf(&f.b, "🚨 *Sentiment threshold breached*\n%s: %s below %s",
		escapeMarkdownV2(a.Reason),
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.Current)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.Threshold)))
}

func (f *markdownFormatter) VisitSignificantChange(a types.SignificantChange) {
	direction := "📈"
	if a.New < a.Old {
		direction = "📉"
	}
	fmt.Fprintf(&f.b, "%s *Sentiment moved* %s \\(%s → %s\\)",
		direction,
		pct(a.ChangePct),
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.Old)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", a.New)))
}

// FormatAlert renders the event with its detection time.
func FormatAlert(event types.AlertEvent) string {
	f := &markdownFormatter{}
	if event.Alert != nil {
		event.Alert.Accept(f)
	}
	if !event.Timestamp.IsZero() {
		fmt.Fprintf(&f.b, "\n🕒 %s", escapeMarkdownV2(event.Timestamp.UTC().Format("2006-01-02 15:04:05")))
	}
	return f.b.String()
}

func pct(v float64) string {
	return escapeMarkdownV2(fmt.Sprintf("%.2f%%", v))
}

func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
