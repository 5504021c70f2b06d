package manifest

import (
	"strings"
	"testing"
)

const sampleDoc = `---
name: kubectl
description: Inspect and manage Kubernetes workloads
author: platform-team
tags: [k8s, ops]
allowed-tools: [kubectl]
---

Kubectl gives read access to cluster workloads.

## list_pods

List pods in a namespace.

Parameters:
- ` + "`namespace`" + ` (string, required): the namespace to list
- ` + "`label_selector`" + ` (string): optional label filter

Examples:

` + "```" + `
list_pods namespace=default
` + "```" + `
`

func TestParseSkillDoc(t *testing.T) {
	doc, err := ParseSkillDoc([]byte(sampleDoc), "/skills/kubectl")
	if err != nil {
		t.Fatalf("ParseSkillDoc: %v", err)
	}
	if doc.Name != "kubectl" {
		t.Fatalf("Name = %q, want kubectl", doc.Name)
	}
	if doc.Description != "Inspect and manage Kubernetes workloads" {
		t.Fatalf("unexpected description: %q", doc.Description)
	}
	if len(doc.Tags) != 2 || doc.Tags[0] != "k8s" {
		t.Fatalf("unexpected tags: %v", doc.Tags)
	}
	if !strings.Contains(doc.Body, "## list_pods") {
		t.Fatalf("body missing tool section: %q", doc.Body)
	}
	if doc.Path != "/skills/kubectl" {
		t.Fatalf("Path = %q", doc.Path)
	}
}

func TestParseSkillDocMissingName(t *testing.T) {
	bad := "---\ndescription: no name here\n---\nbody\n"
	if _, err := ParseSkillDoc([]byte(bad), "/skills/x"); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestParseSkillDocMissingDelimiters(t *testing.T) {
	if _, err := ParseSkillDoc([]byte("no frontmatter here"), "/skills/x"); err == nil {
		t.Fatal("expected error for missing opening delimiter")
	}
	unterminated := "---\nname: x\ndescription: y\n"
	if _, err := ParseSkillDoc([]byte(unterminated), "/skills/x"); err == nil {
		t.Fatal("expected error for missing closing delimiter")
	}
}
