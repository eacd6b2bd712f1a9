package templates

// Role is a pipeline slot that can be bound to a specific LLM alias.
type Role string

const (
	RoleSQLAnswer                      Role = "sql_answer"
	RoleDataAssistance                 Role = "data_assistance"
	RoleChartGeneration                Role = "chart_generation"
	RoleChartAdjustment                Role = "chart_adjustment"
	RoleSQLGenerationReasoning         Role = "sql_generation_reasoning"
	RoleFollowupSQLGenerationReasoning Role = "followup_sql_generation_reasoning"
)

var pipelineRoles = []Role{
	RoleSQLAnswer,
	RoleDataAssistance,
	RoleChartGeneration,
	RoleChartAdjustment,
	RoleSQLGenerationReasoning,
	RoleFollowupSQLGenerationReasoning,
}

const defaultLLMAlias = "default"

type llmModel struct {
	Alias   string
	Model   string
	APIBase string
	Context int
}

type embedderModel struct {
	Model   string
	APIBase string
	Dim     int
}

type Settings struct {
	LangfuseEnable bool
	LoggingLevel   string
	Development    bool
}

var (
	settingsOpenAI     = Settings{LangfuseEnable: false, LoggingLevel: "INFO"}
	settingsDebug      = Settings{LangfuseEnable: true, LoggingLevel: "DEBUG"}
	settingsDebugDev   = Settings{LangfuseEnable: true, LoggingLevel: "DEBUG", Development: true}
	openAIEmbedder     = embedderModel{Model: "text-embedding-3-large", Dim: 3072}
	geminiChartBinding = map[Role]string{
		RoleChartGeneration: "gemini-llm-for-chart",
		RoleChartAdjustment: "gemini-llm-for-chart",
	}
)

// Provider is one selectable LLM backend for the generated config.yaml and .env.
type Provider struct {
	Key         string
	Name        string
	Description string
	// KeyLabel names the credential in prompts and validation messages.
	KeyLabel string
	// EnvKey is the .env variable holding the provider credential; empty when
	// the provider takes none.
	EnvKey               string
	NeedsAPIKey          bool
	NeedsOpenAIEmbedding bool
	Settings             Settings

	llms      []llmModel
	embedder  embedderModel
	overrides map[Role]string
}

// Fields is how many credential inputs the env form shows.
func (p Provider) Fields() int {
	switch {
	case p.EnvKey == "":
		return 0
	case p.NeedsOpenAIEmbedding:
		return 2
	default:
		return 1
	}
}

// Binding returns the LLM reference used for role.
func (p Provider) Binding(role Role) string {
	if alias, ok := p.overrides[role]; ok {
		return "litellm_llm." + alias
	}
	return "litellm_llm." + defaultLLMAlias
}

var catalogue = []Provider{
	{
		Key: "openai", Name: "OpenAI (GPT-4o mini)",
		Description: "Use OpenAI gpt-4o-mini with text-embedding-3-large",
		KeyLabel:    "OpenAI", EnvKey: "OPENAI_API_KEY", NeedsAPIKey: true,
		Settings: settingsOpenAI,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "gpt-4o-mini-2024-07-18", Context: 128000}},
		embedder: openAIEmbedder,
	},
	{
		Key: "anthropic", Name: "Anthropic Claude 3.7 Sonnet",
		Description: "Anthropic Claude via api.anthropic.com",
		KeyLabel:    "Anthropic", EnvKey: "ANTHROPIC_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebug,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "anthropic/claude-3-7-sonnet-latest", Context: 200000}},
		embedder: openAIEmbedder,
	},
	{
		Key: "azure", Name: "Azure OpenAI",
		Description: "Azure OpenAI deployment using gpt-4",
		KeyLabel:    "Azure OpenAI", EnvKey: "AZURE_OPENAI_API_KEY", NeedsAPIKey: true,
		Settings: settingsDebug,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "azure/gpt-4", APIBase: "https://${AZURE_OPENAI_ENDPOINT}", Context: 128000}},
		embedder: embedderModel{Model: "azure/text-embedding-3-large", APIBase: "https://${AZURE_OPENAI_ENDPOINT}", Dim: 3072},
	},
	{
		Key: "bedrock", Name: "AWS Bedrock",
		Description: "Amazon Bedrock Claude Sonnet + Titan embeddings",
		KeyLabel:    "AWS", EnvKey: "AWS_SECRET_ACCESS_KEY", NeedsAPIKey: true,
		Settings: settingsDebug,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "bedrock/us.anthropic.claude-3-7-sonnet-20250219-v1:0", Context: 200000}},
		embedder: embedderModel{Model: "bedrock/amazon.titan-embed-text-v2:0", Dim: 1024},
	},
	{
		Key: "deepseek", Name: "DeepSeek",
		Description: "DeepSeek reasoning and chat models via api.deepseek.com",
		KeyLabel:    "DeepSeek", EnvKey: "DEEPSEEK_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebugDev,
		llms: []llmModel{
			{Alias: defaultLLMAlias, Model: "deepseek/deepseek-chat", Context: 64000},
			{Alias: "deepseek/deepseek-chat", Model: "deepseek/deepseek-chat", Context: 64000},
			{Alias: "deepseek/deepseek-reasoner", Model: "deepseek/deepseek-reasoner", Context: 64000},
		},
		embedder: openAIEmbedder,
		overrides: map[Role]string{
			RoleSQLAnswer:                      "deepseek/deepseek-chat",
			RoleDataAssistance:                 "deepseek/deepseek-chat",
			RoleSQLGenerationReasoning:         "deepseek/deepseek-reasoner",
			RoleFollowupSQLGenerationReasoning: "deepseek/deepseek-reasoner",
		},
	},
	{
		Key: "google_ai_studio", Name: "Google Gemini (AI Studio)",
		Description: "Gemini 2.0 Flash via Google AI Studio",
		KeyLabel:    "Google AI Studio", EnvKey: "GEMINI_API_KEY", NeedsAPIKey: true,
		Settings: settingsDebugDev,
		llms: []llmModel{
			{Alias: defaultLLMAlias, Model: "gemini/gemini-2.0-flash", Context: 1000000},
			{Alias: "gemini-llm-for-chart", Model: "gemini/gemini-2.0-flash", Context: 1000000},
		},
		embedder:  embedderModel{Model: "gemini/text-embedding-004", Dim: 768},
		overrides: geminiChartBinding,
	},
	{
		Key: "google_vertexai", Name: "Google Gemini (Vertex AI)",
		Description: "Gemini 2.5 Flash via Vertex AI",
		KeyLabel:    "Google Vertex AI", EnvKey: "GOOGLE_APPLICATION_CREDENTIALS", NeedsAPIKey: true,
		Settings: settingsDebugDev,
		llms: []llmModel{
			{Alias: defaultLLMAlias, Model: "vertex_ai/gemini-2.5-flash", Context: 1000000},
			{Alias: "gemini-llm-for-chart", Model: "vertex_ai/gemini-2.5-flash", Context: 1000000},
		},
		embedder:  embedderModel{Model: "vertex_ai/text-embedding-005", Dim: 768},
		overrides: geminiChartBinding,
	},
	{
		Key: "grok", Name: "xAI Grok",
		Description: "xAI Grok 3 via api.x.ai",
		KeyLabel:    "xAI Grok", EnvKey: "XAI_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebugDev,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "xai/grok-3", Context: 131072}},
		embedder: openAIEmbedder,
	},
	{
		Key: "groq", Name: "Groq Llama 3.3",
		Description: "Groq API with Llama 3.3 70B specdec",
		KeyLabel:    "Groq", EnvKey: "GROQ_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebugDev,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "groq/llama-3.3-70b-specdec", Context: 8192}},
		embedder: openAIEmbedder,
	},
	{
		Key: "lm_studio", Name: "LM Studio",
		Description: "Local LM Studio endpoint (phi-4 + nomic embeddings)",
		KeyLabel:    "LM Studio (Local - No API Key)", EnvKey: "LM_STUDIO_API_KEY",
		Settings: settingsDebugDev,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "lm_studio/phi-4", APIBase: "http://host.docker.internal:1234/v1", Context: 16384}},
		embedder: embedderModel{Model: "lm_studio/text-embedding-nomic-embed-text-v1.5", APIBase: "http://host.docker.internal:1234/v1", Dim: 768},
	},
	{
		Key: "ollama", Name: "Ollama",
		Description: "Local Ollama with phi4:14b",
		KeyLabel:    "Ollama (Local - No API Key)",
		Settings:    settingsDebugDev,
		llms:        []llmModel{{Alias: defaultLLMAlias, Model: "ollama_chat/phi4:14b", APIBase: "http://host.docker.internal:11434", Context: 16384}},
		embedder:    embedderModel{Model: "ollama/nomic-embed-text:latest", APIBase: "http://host.docker.internal:11434", Dim: 768},
	},
	{
		Key: "open_router", Name: "OpenRouter",
		Description: "OpenRouter Claude 3.7 Sonnet",
		KeyLabel:    "OpenRouter", EnvKey: "OPENROUTER_API_KEY", NeedsAPIKey: true,
		Settings: settingsDebug,
		llms:     []llmModel{{Alias: defaultLLMAlias, Model: "openrouter/anthropic/claude-3.7-sonnet", Context: 200000}},
		embedder: embedderModel{Model: "openrouter/openai/text-embedding-3-large", Dim: 3072},
	},
	{
		Key: "qwen3", Name: "Qwen3",
		Description: "Qwen3 via OpenRouter with thinking and fast modes",
		KeyLabel:    "Qwen", EnvKey: "OPENROUTER_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebugDev,
		llms: []llmModel{
			{Alias: defaultLLMAlias, Model: "openrouter/qwen/qwen3-235b-a22b", Context: 40960},
			{Alias: "qwen3-fast", Model: "openrouter/qwen/qwen3-30b-a3b", Context: 40960},
			{Alias: "qwen3-thinking", Model: "openrouter/qwen/qwen3-235b-a22b", Context: 40960},
		},
		embedder: openAIEmbedder,
		overrides: map[Role]string{
			RoleSQLAnswer:                      "qwen3-fast",
			RoleDataAssistance:                 "qwen3-fast",
			RoleSQLGenerationReasoning:         "qwen3-thinking",
			RoleFollowupSQLGenerationReasoning: "qwen3-thinking",
		},
	},
	{
		Key: "zhipu", Name: "Zhipu GLM-4.5",
		Description: "Zhipu AI GLM-4.5 with thinking/fast variants",
		KeyLabel:    "Zhipu", EnvKey: "ZHIPU_API_KEY", NeedsAPIKey: true, NeedsOpenAIEmbedding: true,
		Settings: settingsDebugDev,
		llms: []llmModel{
			{Alias: defaultLLMAlias, Model: "openai/glm-4.5", APIBase: "https://open.bigmodel.cn/api/paas/v4", Context: 128000},
			{Alias: "glm45-fast", Model: "openai/glm-4.5-air", APIBase: "https://open.bigmodel.cn/api/paas/v4", Context: 128000},
			{Alias: "glm45-thinking", Model: "openai/glm-4.5", APIBase: "https://open.bigmodel.cn/api/paas/v4", Context: 128000},
		},
		embedder: openAIEmbedder,
		overrides: map[Role]string{
			RoleSQLAnswer:                      "glm45-fast",
			RoleDataAssistance:                 "glm45-fast",
			RoleSQLGenerationReasoning:         "glm45-thinking",
			RoleFollowupSQLGenerationReasoning: "glm45-thinking",
		},
	},
}

// Providers returns the catalogue in display order.
func Providers() []Provider {
	return append([]Provider(nil), catalogue...)
}

func Lookup(key string) (Provider, bool) {
	for _, p := range catalogue {
		if p.Key == key {
			return p, true
		}
	}
	return Provider{}, false
}
