package templates

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type llmDoc struct {
	Type     string       `yaml:"type"`
	Provider string       `yaml:"provider"`
	Timeout  int          `yaml:"timeout"`
	Models   []llmDocItem `yaml:"models"`
}

type llmDocItem struct {
	Alias         string         `yaml:"alias"`
	Model         string         `yaml:"model"`
	APIBase       string         `yaml:"api_base,omitempty"`
	ContextWindow int            `yaml:"context_window_size,omitempty"`
	KwArgs        map[string]any `yaml:"kwargs"`
}

type embedderDoc struct {
	Type     string            `yaml:"type"`
	Provider string            `yaml:"provider"`
	Models   []embedderDocItem `yaml:"models"`
}

type embedderDocItem struct {
	Alias   string `yaml:"alias"`
	Model   string `yaml:"model"`
	APIBase string `yaml:"api_base,omitempty"`
	Timeout int    `yaml:"timeout"`
}

type engineDoc struct {
	Type     string `yaml:"type"`
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
}

type documentStoreDoc struct {
	Type              string `yaml:"type"`
	Provider          string `yaml:"provider"`
	Location          string `yaml:"location"`
	EmbeddingModelDim int    `yaml:"embedding_model_dim"`
	Timeout           int    `yaml:"timeout"`
	RecreateIndex     bool   `yaml:"recreate_index"`
}

type pipelineDoc struct {
	Type  string        `yaml:"type"`
	Pipes []pipelineRef `yaml:"pipes"`
}

type pipelineRef struct {
	Name          string `yaml:"name"`
	LLM           string `yaml:"llm,omitempty"`
	Embedder      string `yaml:"embedder,omitempty"`
	DocumentStore string `yaml:"document_store,omitempty"`
	Engine        string `yaml:"engine,omitempty"`
}

type settingsDoc struct {
	Settings struct {
		Development          bool   `yaml:"development"`
		LoggingLevel         string `yaml:"logging_level"`
		LangfuseEnable       bool   `yaml:"langfuse_enable"`
		LangfuseHost         string `yaml:"langfuse_host"`
		QueryCacheTTL        int    `yaml:"query_cache_ttl"`
		QueryCacheMaxsize    int    `yaml:"query_cache_maxsize"`
		AllowSQLGenReasoning bool   `yaml:"allow_sql_generation_reasoning"`
		MaxSQLCorrectionRuns int    `yaml:"max_sql_correction_runs"`
	} `yaml:"settings"`
}

// retrieval and indexing pipes that only need the embedder and store.
var storePipes = []string{
	"db_schema_indexing",
	"historical_question_indexing",
	"table_description_indexing",
	"db_schema_retrieval",
	"historical_question_retrieval",
}

var rolePipes = map[Role][]string{
	RoleSQLAnswer:                      {"sql_answer", "sql_generation", "sql_correction"},
	RoleDataAssistance:                 {"data_assistance", "intent_classification"},
	RoleChartGeneration:                {"chart_generation"},
	RoleChartAdjustment:                {"chart_adjustment"},
	RoleSQLGenerationReasoning:         {"sql_generation_reasoning"},
	RoleFollowupSQLGenerationReasoning: {"followup_sql_generation_reasoning"},
}

// RenderConfig produces the multi-document config.yaml for p.
func RenderConfig(p Provider) ([]byte, error) {
	const (
		embedderRef = "litellm_embedder.default"
		storeRef    = "qdrant"
		engineRef   = "analytics_ui"
	)

	llms := llmDoc{Type: "llm", Provider: "litellm_llm", Timeout: 120}
	for _, m := range p.llms {
		llms.Models = append(llms.Models, llmDocItem{
			Alias:         m.Alias,
			Model:         m.Model,
			APIBase:       m.APIBase,
			ContextWindow: m.Context,
			KwArgs:        map[string]any{"n": 1, "temperature": 0},
		})
	}

	embedder := embedderDoc{
		Type:     "embedder",
		Provider: "litellm_embedder",
		Models: []embedderDocItem{{
			Alias:   defaultLLMAlias,
			Model:   p.embedder.Model,
			APIBase: p.embedder.APIBase,
			Timeout: 120,
		}},
	}

	pipes := pipelineDoc{Type: "pipeline"}
	for _, name := range storePipes {
		pipes.Pipes = append(pipes.Pipes, pipelineRef{Name: name, Embedder: embedderRef, DocumentStore: storeRef})
	}
	for _, role := range pipelineRoles {
		for _, name := range rolePipes[role] {
			ref := pipelineRef{Name: name, LLM: p.Binding(role)}
			if role == RoleSQLAnswer {
				ref.Engine = engineRef
			}
			pipes.Pipes = append(pipes.Pipes, ref)
		}
	}

	var settings settingsDoc
	settings.Settings.Development = p.Settings.Development
	settings.Settings.LoggingLevel = p.Settings.LoggingLevel
	settings.Settings.LangfuseEnable = p.Settings.LangfuseEnable
	settings.Settings.LangfuseHost = "https://cloud.langfuse.com"
	settings.Settings.QueryCacheTTL = 3600
	settings.Settings.QueryCacheMaxsize = 1000
	settings.Settings.AllowSQLGenReasoning = true
	settings.Settings.MaxSQLCorrectionRuns = 3

	docs := []any{
		llms,
		embedder,
		engineDoc{Type: "engine", Provider: engineRef, Endpoint: "http://analytics-ui:3000"},
		documentStoreDoc{
			Type:              "document_store",
			Provider:          storeRef,
			Location:          "http://qdrant:6333",
			EmbeddingModelDim: p.embedder.Dim,
			Timeout:           120,
			RecreateIndex:     true,
		},
		pipes,
		settings,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("render config for %s: %w", p.Key, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render config for %s: %w", p.Key, err)
	}
	return buf.Bytes(), nil
}
