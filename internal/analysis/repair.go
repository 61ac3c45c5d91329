package analysis

import (
	"encoding/json"
	"strings"
)

// repair coerces raw model output into a usable Result. Markdown code
// fences are stripped, missing fields are defaulted, and the tag set is
// normalized so exactly one tag is primary. It never fails: unparseable
// output degrades to the fully-defaulted result.
func repair(raw, fallbackVideoTitle string) Result {
	var result Result
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		result = Result{}
	}

	if strings.TrimSpace(result.Title) == "" {
		if strings.TrimSpace(fallbackVideoTitle) != "" {
			result.Title = fallbackVideoTitle
		} else {
			result.Title = fallbackTitle
		}
	}
	if strings.TrimSpace(result.Summary) == "" {
		result.Summary = fallbackSummary
	}
	if len(result.KeyTakeaways) == 0 {
		result.KeyTakeaways = []string{fallbackTakeaway}
	}
	if result.Topics == nil {
		result.Topics = []string{}
	}

	result.Tags = normalizeTags(result.Tags)
	return result
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

// normalizeTags drops malformed entries, clamps confidence to 0-100, and
// enforces the single-primary invariant. An empty or fully-malformed set
// is replaced with the uncategorized tag at full confidence.
func normalizeTags(tags []Tag) []Tag {
	valid := tags[:0]
	for _, tag := range tags {
		tag.Name = strings.ToLower(strings.TrimSpace(tag.Name))
		if tag.Name == "" {
			continue
		}
		if tag.Confidence < 0 {
			tag.Confidence = 0
		}
		if tag.Confidence > 100 {
			tag.Confidence = 100
		}
		valid = append(valid, tag)
	}
	if len(valid) == 0 {
		return []Tag{{Name: uncategorizedTag, Confidence: 100, Primary: true}}
	}

	primarySeen := false
	for i := range valid {
		if valid[i].Primary {
			if primarySeen {
				valid[i].Primary = false
			}
			primarySeen = true
		}
	}
	if !primarySeen {
		valid[0].Primary = true
	}
	return valid
}
