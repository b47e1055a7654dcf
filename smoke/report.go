package smoke

import (
	"fmt"
	"strings"
	"time"

	"github.com/nachoal/coding-agent-server/internal/styles"
)

// Render formats results as a terminal report
func Render(results []Result, s *styles.Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("Endpoint smoke checks"))
	b.WriteString("\n")

	counts := map[Status]int{}
	for _, r := range results {
		counts[r.Status]++

		var status string
		switch r.Status {
		case StatusPass:
			status = s.Pass.Render(string(r.Status))
		case StatusFail:
			status = s.Fail.Render(string(r.Status))
		default:
			status = s.Skip.Render(string(r.Status))
		}

		b.WriteString(s.Label.Render(r.Target + " " + r.Check))
		b.WriteString(status)
		if r.Elapsed > 0 {
			fmt.Fprintf(&b, " (%s)", r.Elapsed.Round(time.Millisecond))
		}
		b.WriteString("\n")
		if r.Detail != "" {
			b.WriteString(s.Detail.Render(r.Detail))
			b.WriteString("\n")
		}
	}

	b.WriteString(s.Summary.Render(fmt.Sprintf("%d passed, %d failed, %d skipped",
		counts[StatusPass], counts[StatusFail], counts[StatusSkip])))
	b.WriteString("\n")
	return b.String()
}
