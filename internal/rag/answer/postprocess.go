package answer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

var sentenceSplit = regexp.MustCompile(`[.!?]`)

const maxKeyPoints = 3

// postProcess reshapes a generated answer for the expected answer type.
func postProcess(text string, at graphrag.AnswerType) string {
	text = strings.TrimSpace(text)
	switch at {
	case graphrag.AnswerShort:
		return shortAnswer(text)
	case graphrag.AnswerList:
		return asList(text)
	case graphrag.AnswerComparison:
		return asComparison(text)
	default:
		return text
	}
}

func shortAnswer(text string) string {
	if text == "" {
		return text
	}
	first := sentenceSplit.Split(text, 2)[0]
	return strings.TrimSpace(first) + "."
}

func asList(text string) string {
	if strings.Contains(text, "1.") || strings.Contains(text, "•") || strings.Contains(text, "-") {
		return text
	}
	paras := strings.Split(text, "\n\n")
	if len(paras) <= 1 {
		return text
	}
	var b strings.Builder
	for i, p := range paras {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(p))
		b.WriteString("\n")
	}
	return b.String()
}

func asComparison(text string) string {
	if strings.Contains(text, "Similarities") || strings.Contains(text, "Differences") || strings.Contains(text, "Comparison") {
		return text
	}
	return "Comparative Analysis:\n" + text
}

// keyPoints returns up to three sentences longer than ten characters.
func keyPoints(text string) []string {
	out := []string{}
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) <= 10 {
			continue
		}
		out = append(out, s)
		if len(out) == maxKeyPoints {
			break
		}
	}
	return out
}

func complexityFactor(c graphrag.Complexity) float64 {
	switch c {
	case graphrag.ComplexitySimple:
		return 1.0
	case graphrag.ComplexityComplex:
		return 0.6
	default:
		return 0.8
	}
}

// Confidence is min(1, overall relevance × complexity factor), floored at 0.
func Confidence(fc graphrag.FusedContext, a graphrag.QueryAnalysis) float64 {
	v := fc.OverallRelevance * complexityFactor(a.Complexity)
	return max(0, min(1, v))
}
