package pipeline

import (
	"strings"
	"testing"
)

func TestEmbeddedDefinitionParses(t *testing.T) {
	data, err := pipelineDefinitionFS.ReadFile("pipeline.yaml")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	d, err := parseDefaults(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.TopK != 10 || d.MaxHops != 3 || d.MaxGraphResults != 10 {
		t.Fatalf("defaults=%+v", d)
	}
	if d.Rank.MinRelevance != 0.5 || d.Rank.DiversityThreshold != 0.3 || d.Rank.MaxResults != 5 {
		t.Fatalf("rank=%+v", d.Rank)
	}
	if d.HybridEntityLimit != 15 {
		t.Fatalf("hybrid=%+v", d)
	}
}

func TestDefinitionOverrides(t *testing.T) {
	def := strings.ReplaceAll(mustDefinition(t), "top_k: 10", "top_k: 4")
	d, err := parseDefaults([]byte(def))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.TopK != 4 {
		t.Fatalf("top_k=%d", d.TopK)
	}
}

func TestDefinitionValidation(t *testing.T) {
	cases := map[string]string{
		"wrong pipeline": strings.Replace(mustDefinition(t), "graphrag_retrieve", "other", 1),
		"missing stage":  strings.Replace(mustDefinition(t), "name: fuse", "name: merge", 1),
		"forward dep":    strings.Replace(mustDefinition(t), "depends_on: [analyze]", "depends_on: [rank]", 1),
		"not yaml":       "pipeline: [",
	}
	for name, body := range cases {
		if _, err := parseDefaults([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func mustDefinition(t *testing.T) string {
	t.Helper()
	data, err := pipelineDefinitionFS.ReadFile("pipeline.yaml")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}
