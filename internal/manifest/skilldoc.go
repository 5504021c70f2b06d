package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillMDFilename is the expected filename for a skill's declarative doc.
const SkillMDFilename = "SKILL.md"

const frontmatterDelimiter = "---"

// ParseSkillDocFile reads and parses a SKILL.md file.
func ParseSkillDocFile(path string) (*SkillDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill doc: %w", err)
	}
	return ParseSkillDoc(data, filepath.Dir(path))
}

// ParseSkillDoc parses SKILL.md content: YAML frontmatter followed by a
// markdown body. The parser is lenient on prose order and strict on
// frontmatter: missing name/description is an InvalidManifest condition,
// reported to the caller via an error (see [models.NewInvalidManifest] at
// the manifest-loader boundary).
func ParseSkillDoc(data []byte, skillPath string) (*SkillDoc, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	var doc SkillDoc
	if err := yaml.Unmarshal(frontmatter, &doc); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	if strings.TrimSpace(doc.Description) == "" {
		return nil, fmt.Errorf("skill description is required")
	}

	doc.Body = strings.TrimSpace(string(body))
	doc.Path = skillPath
	return &doc, nil
}

// splitFrontmatter separates "---" delimited YAML frontmatter from the
// markdown body that follows it.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			closed = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan skill doc: %w", err)
	}

	return []byte(strings.Join(frontmatterLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}
