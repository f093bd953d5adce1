package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/portrait-studio/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseFaceAnalysis parses a vision model reply. Replies that carry no
// usable JSON yield an empty analysis rather than an error, so a chatty
// model degrades to "no faces found".
func ParseFaceAnalysis(raw string) *types.FaceAnalysis {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return &types.FaceAnalysis{Description: "Model returned non-JSON response"}
	}

	var result types.FaceAnalysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return &types.FaceAnalysis{Description: "Failed to parse model response"}
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a JSON reply and keeps only the outermost object.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
