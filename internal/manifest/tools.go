package manifest

import (
	"regexp"
	"strings"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

var (
	toolHeadingPattern = regexp.MustCompile(`(?m)^##\s+(\S.*)$`)
	paramLinePattern   = regexp.MustCompile("^- `([A-Za-z0-9_]+)` \\(([a-z]+)(, required)?\\): ?(.*)$")
)

// ExtractTools parses each "## <tool>" section of a SKILL.md body into a
// models.Tool. Parameters are declared one per line as:
//
//	- `name` (type, required): description
//
// Examples are any fenced code blocks within the section.
func ExtractTools(skillName, body string) []models.Tool {
	sections := splitSections(body)
	tools := make([]models.Tool, 0, len(sections))
	for _, sec := range sections {
		tools = append(tools, parseToolSection(skillName, sec))
	}
	return tools
}

type toolSection struct {
	name string
	body string
}

func splitSections(body string) []toolSection {
	locs := toolHeadingPattern.FindAllStringSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}
	sections := make([]toolSection, 0, len(locs))
	for i, loc := range locs {
		nameStart, nameEnd := loc[2], loc[3]
		bodyStart := loc[1]
		bodyEnd := len(body)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		sections = append(sections, toolSection{
			name: strings.TrimSpace(body[nameStart:nameEnd]),
			body: strings.TrimSpace(body[bodyStart:bodyEnd]),
		})
	}
	return sections
}

func parseToolSection(skillName string, sec toolSection) models.Tool {
	tool := models.Tool{
		Name:      sec.name,
		SkillName: skillName,
	}

	lines := strings.Split(sec.body, "\n")
	var descLines []string
	var examples []string
	inExample := false
	var exampleBuf []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inExample {
				examples = append(examples, strings.Join(exampleBuf, "\n"))
				exampleBuf = nil
			}
			inExample = !inExample
			continue
		}
		if inExample {
			exampleBuf = append(exampleBuf, line)
			continue
		}
		if m := paramLinePattern.FindStringSubmatch(line); m != nil {
			tool.Parameters = append(tool.Parameters, models.Parameter{
				Name:        m[1],
				Type:        models.ParamType(m[2]),
				Required:    m[3] != "",
				Description: m[4],
			})
			continue
		}
		if strings.EqualFold(trimmed, "Parameters:") || strings.EqualFold(trimmed, "Examples:") || strings.EqualFold(trimmed, "Usage:") {
			continue
		}
		if trimmed != "" && len(tool.Parameters) == 0 {
			descLines = append(descLines, trimmed)
		}
	}

	tool.Description = strings.TrimSpace(strings.Join(descLines, " "))
	tool.Examples = examples
	return tool
}
