package manifest

import (
	"testing"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

const sampleBody = `Kubectl gives read access to cluster workloads.

## list_pods

List pods in a namespace.

Parameters:
- ` + "`namespace`" + ` (string, required): the namespace to list
- ` + "`label_selector`" + ` (string): optional label filter

Examples:

` + "```" + `
list_pods namespace=default
` + "```" + `

## describe_pod

Describe a single pod.

Parameters:
- ` + "`namespace`" + ` (string, required): the namespace
- ` + "`name`" + ` (string, required): the pod name
`

func TestExtractTools(t *testing.T) {
	tools := ExtractTools("kubectl", sampleBody)
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}

	listPods := tools[0]
	if listPods.Name != "list_pods" {
		t.Fatalf("tools[0].Name = %q", listPods.Name)
	}
	if listPods.SkillName != "kubectl" {
		t.Fatalf("tools[0].SkillName = %q", listPods.SkillName)
	}
	if listPods.Description != "List pods in a namespace." {
		t.Fatalf("unexpected description: %q", listPods.Description)
	}
	if len(listPods.Parameters) != 2 {
		t.Fatalf("got %d parameters, want 2: %+v", len(listPods.Parameters), listPods.Parameters)
	}
	ns := listPods.Parameters[0]
	if ns.Name != "namespace" || ns.Type != models.ParamString || !ns.Required {
		t.Fatalf("unexpected namespace param: %+v", ns)
	}
	sel := listPods.Parameters[1]
	if sel.Required {
		t.Fatalf("label_selector should not be required: %+v", sel)
	}
	if len(listPods.Examples) != 1 {
		t.Fatalf("got %d examples, want 1", len(listPods.Examples))
	}

	describe := tools[1]
	if describe.Name != "describe_pod" || len(describe.Parameters) != 2 {
		t.Fatalf("unexpected describe_pod tool: %+v", describe)
	}
}

func TestExtractToolsNoSections(t *testing.T) {
	if tools := ExtractTools("kubectl", "just prose, no headings"); tools != nil {
		t.Fatalf("expected nil tools, got %+v", tools)
	}
}
