package layout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/capitalize-ai/dialogue-tree/internal/model"
)

const (
	rootLabel          = "root"
	systemMessageLabel = "system message"
	ellipsis           = "..."
)

var (
	inputMessageTag   = regexp.MustCompile(`(?s)<input_message>(.*?)</input_message>`)
	playerInputPrefix = regexp.MustCompile(`^(?i:player\s*input|玩家输入)\s*[:：]\s*`)
)

// NodeLabel returns the short text shown on a node.
func NodeLabel(node *model.DialogueNode, startLabels map[string]string, maxRunes int) string {
	if node.IsRoot() {
		return rootLabel
	}
	if label, ok := startLabels[node.NodeID]; ok {
		return label
	}
	if node.ParsedContent != nil {
		if summary := strings.TrimSpace(node.ParsedContent.CompressedContent); summary != "" {
			return summary
		}
	}
	if response := strings.TrimSpace(node.AssistantResponse); response != "" {
		return Truncate(response, maxRunes)
	}
	return systemMessageLabel
}

// StartingPointLabels numbers the direct children of root so that the most
// recently created one is "starting point 1/M".
func StartingPointLabels(nodes []model.DialogueNode) map[string]string {
	type entry struct {
		id    string
		node  *model.DialogueNode
		index int
	}
	var starts []entry
	for i := range nodes {
		n := &nodes[i]
		if !n.IsRoot() && n.ParentNodeID == model.RootNodeID {
			starts = append(starts, entry{id: n.NodeID, node: n, index: i})
		}
	}
	sort.SliceStable(starts, func(i, j int) bool {
		a, b := starts[i].node.CreatedAt, starts[j].node.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return starts[i].index > starts[j].index
	})

	labels := make(map[string]string, len(starts))
	for i, s := range starts {
		labels[s.id] = fmt.Sprintf("starting point %d/%d", i+1, len(starts))
	}
	return labels
}

// EdgeLabel extracts the player's words from a turn's raw input. Tagged input
// is reduced to the tag body without its "player input:" prefix.
func EdgeLabel(userInput string) string {
	text := userInput
	if m := inputMessageTag.FindStringSubmatch(userInput); m != nil {
		text = playerInputPrefix.ReplaceAllString(strings.TrimSpace(m[1]), "")
	}
	return strings.TrimSpace(text)
}

// Truncate shortens s to maxRunes runes followed by an ellipsis.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + ellipsis
}
