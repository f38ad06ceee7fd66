package pipeline

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
	"github.com/yungbote/graphrag-core/internal/rag/ranking"
)

const pipelineDefEnv = "GRAPHRAG_PIPELINE_YAML"

//go:embed pipeline.yaml
var pipelineDefinitionFS embed.FS

// Stage names, in execution order.
const (
	StageAnalyze        = "analyze"
	StageVectorRetrieve = "vector_retrieve"
	StageGraphRetrieve  = "graph_retrieve"
	StageRank           = "rank"
	StageFuse           = "fuse"
	StageGenerate       = "generate"
)

// Defaults are the stage parameters used when a request does not override them.
type Defaults struct {
	TopK        int
	MaxEntities int

	MaxHops         int
	MaxGraphResults int

	Rank ranking.Config

	HybridVectorEntities  int
	HybridKeywordEntities int
	HybridEntityLimit     int
}

// fallback used when YAML is missing or invalid
var fallbackDefaults = Defaults{
	TopK:                  10,
	MaxEntities:           10,
	MaxHops:               3,
	MaxGraphResults:       10,
	Rank:                  ranking.Config{MinRelevance: 0.5, DiversityThreshold: 0.3, MaxResults: 5},
	HybridVectorEntities:  5,
	HybridKeywordEntities: 5,
	HybridEntityLimit:     15,
}

type yamlPipelineDefinition struct {
	Pipeline string                 `yaml:"pipeline"`
	Version  int                    `yaml:"version"`
	Stages   []yamlStageDefinition  `yaml:"stages"`
	Variants map[string]yamlVariant `yaml:"variants"`
}

type yamlStageDefinition struct {
	Name      string         `yaml:"name"`
	DependsOn []string       `yaml:"depends_on"`
	Config    map[string]any `yaml:"config"`
}

type yamlVariant struct {
	Config map[string]any `yaml:"config"`
}

var (
	defaultsOnce  sync.Once
	defaultsCache Defaults
	defaultsErr   error
)

// LoadDefaults returns the pipeline defaults from GRAPHRAG_PIPELINE_YAML or the embedded
// pipeline.yaml, falling back to built-in values when neither parses.
func LoadDefaults(log *logger.Logger) Defaults {
	defaultsOnce.Do(func() {
		defaultsCache, defaultsErr = loadDefaults()
	})
	if defaultsErr != nil {
		if log != nil {
			log.Warn("pipeline: definition load failed; using fallback", "error", defaultsErr)
		}
		return fallbackDefaults
	}
	return defaultsCache
}

func loadDefaults() (Defaults, error) {
	data, err := readPipelineDefinition()
	if err != nil {
		return Defaults{}, err
	}
	return parseDefaults(data)
}

func readPipelineDefinition() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(pipelineDefEnv)); path != "" {
		return os.ReadFile(path)
	}
	return pipelineDefinitionFS.ReadFile("pipeline.yaml")
}

func parseDefaults(data []byte) (Defaults, error) {
	var def yamlPipelineDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Defaults{}, err
	}
	if err := validatePipelineDefinition(&def); err != nil {
		return Defaults{}, err
	}

	stages := make(map[string]yamlStageDefinition, len(def.Stages))
	for _, s := range def.Stages {
		stages[strings.TrimSpace(s.Name)] = s
	}

	d := fallbackDefaults
	vr := stages[StageVectorRetrieve].Config
	d.TopK = intCfg(vr, "top_k", d.TopK)
	d.MaxEntities = intCfg(vr, "max_entities", d.MaxEntities)

	gr := stages[StageGraphRetrieve].Config
	d.MaxHops = intCfg(gr, "max_hops", d.MaxHops)
	d.MaxGraphResults = intCfg(gr, "max_results", d.MaxGraphResults)

	rk := stages[StageRank].Config
	d.Rank.MinRelevance = floatCfg(rk, "min_relevance", d.Rank.MinRelevance)
	d.Rank.DiversityThreshold = floatCfg(rk, "diversity_threshold", d.Rank.DiversityThreshold)
	d.Rank.MaxResults = intCfg(rk, "max_results", d.Rank.MaxResults)

	if h, ok := def.Variants["hybrid"]; ok {
		d.HybridVectorEntities = intCfg(h.Config, "vector_entities", d.HybridVectorEntities)
		d.HybridKeywordEntities = intCfg(h.Config, "keyword_entities", d.HybridKeywordEntities)
		d.HybridEntityLimit = intCfg(h.Config, "entity_limit", d.HybridEntityLimit)
	}
	return d, nil
}

var requiredStages = []string{StageAnalyze, StageVectorRetrieve, StageGraphRetrieve, StageRank, StageFuse, StageGenerate}

func validatePipelineDefinition(def *yamlPipelineDefinition) error {
	if def == nil {
		return errors.New("missing pipeline definition")
	}
	if strings.TrimSpace(def.Pipeline) != "graphrag_retrieve" {
		return fmt.Errorf("unexpected pipeline: %s", def.Pipeline)
	}
	if len(def.Stages) == 0 {
		return errors.New("no stages defined")
	}

	orderIndex := map[string]int{}
	for i, stage := range def.Stages {
		name := strings.TrimSpace(stage.Name)
		if name == "" {
			return errors.New("stage name is required")
		}
		if _, exists := orderIndex[name]; exists {
			return fmt.Errorf("duplicate stage name: %s", name)
		}
		orderIndex[name] = i
	}
	for _, name := range requiredStages {
		if _, ok := orderIndex[name]; !ok {
			return fmt.Errorf("missing stage: %s", name)
		}
	}
	for _, stage := range def.Stages {
		name := strings.TrimSpace(stage.Name)
		for _, dep := range stage.DependsOn {
			dep = strings.TrimSpace(dep)
			if dep == "" {
				continue
			}
			idx, ok := orderIndex[dep]
			if !ok {
				return fmt.Errorf("stage %s: unknown dependency %s", name, dep)
			}
			if idx > orderIndex[name] {
				return fmt.Errorf("stage %s: dependency %s appears after stage in order", name, dep)
			}
		}
	}
	return nil
}

func intCfg(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

func floatCfg(m map[string]any, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		if v >= 0 {
			return v
		}
	case int:
		if v >= 0 {
			return float64(v)
		}
	}
	return def
}
