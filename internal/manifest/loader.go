package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Load reads "<root>/.skill-engine.toml" together with every "SKILL.md"
// discovered beneath root and merges them into a flat list of skills ready
// for the engine to register. A skill entry in the TOML table without a
// matching SKILL.md is still returned (its Tools will be empty); a SKILL.md
// discovered without a TOML entry is registered with runtime defaulted to
// "native" so local development doesn't require touching the manifest file
// for every new skill directory.
func Load(root string) ([]models.Skill, error) {
	manifestPath := filepath.Join(root, ManifestFilename)
	var file *File
	if _, err := os.Stat(manifestPath); err == nil {
		file, err = ParseFile(manifestPath)
		if err != nil {
			return nil, err
		}
	} else {
		file = &File{Skills: map[string]SkillEntry{}}
	}

	docs, err := discoverSkillDocs(root)
	if err != nil {
		return nil, err
	}

	skillNames := make(map[string]struct{}, len(file.Skills)+len(docs))
	for name := range file.Skills {
		skillNames[name] = struct{}{}
	}
	for _, doc := range docs {
		skillNames[doc.Name] = struct{}{}
	}

	skills := make([]models.Skill, 0, len(skillNames))
	for name := range skillNames {
		entry, hasEntry := file.Skills[name]
		doc := docs[name]

		skill := models.Skill{Name: name}
		if hasEntry {
			skill.Runtime = entry.Runtime
			skill.Source = ResolveSource(root, entry.Source)
			if entry.Description != "" {
				skill.Description = entry.Description
			}
			skill.Container = entry.Container
			for _, svc := range entry.Services {
				skill.Services = append(skill.Services, models.Service{
					Name:        svc.Name,
					Optional:    svc.Optional,
					DefaultPort: svc.DefaultPort,
				})
			}
		} else {
			skill.Runtime = models.RuntimeNative
		}
		if skill.Runtime == "" {
			skill.Runtime = models.RuntimeNative
		}

		if doc != nil {
			if skill.Description == "" {
				skill.Description = doc.Description
			}
			if skill.Source == "" {
				skill.Source = doc.Path
			}
			skill.Tools = ExtractTools(name, doc.Body)
			skill.AllowedCommands = doc.AllowedTools
		}

		skills = append(skills, skill)
	}

	return skills, nil
}

// discoverSkillDocs walks root looking for SKILL.md files, keyed by the
// skill name declared in each document's frontmatter.
func discoverSkillDocs(root string) (map[string]*SkillDoc, error) {
	docs := make(map[string]*SkillDoc)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != SkillMDFilename {
			return nil
		}
		doc, err := ParseSkillDocFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		docs[doc.Name] = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}
