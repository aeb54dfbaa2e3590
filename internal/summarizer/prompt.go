package summarizer

import (
	"strings"
)

const englishPrompt = `Compress the following roleplay reply into a single short sentence of at most 20 words.
Keep names and the key event. Answer with the summary only, no quotes or preamble.

Reply:
`

const chinesePrompt = `请将下面的角色扮演回复压缩成一句不超过30个字的话，保留人物和关键事件。
只输出摘要本身，不要加引号或任何说明。

回复：
`

// BuildPrompt returns the summarization instruction for the locale followed
// by the text.
func BuildPrompt(text, locale string) string {
	prompt := englishPrompt
	if strings.HasPrefix(strings.ToLower(locale), "zh") {
		prompt = chinesePrompt
	}
	return prompt + text
}

// CleanSummary strips whitespace, a "Summary:" lead-in and wrapping quotes.
func CleanSummary(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Summary:", "summary:", "摘要：", "摘要:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"「", "」"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}
