package answer

import (
	"strings"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

type templateKind string

const (
	tmplFactual        templateKind = "factual"
	tmplConceptual     templateKind = "conceptual"
	tmplComparative    templateKind = "comparative"
	tmplReasoning      templateKind = "reasoning"
	tmplList           templateKind = "list"
	tmplConversational templateKind = "conversational"
	tmplExplanatory    templateKind = "explanatory"
)

const factualTemplate = `Based on the following context, answer the user's factual question. Please provide accurate and concise answers.

Context:
{context}

User Question: {question}

Please answer directly, and if the context is insufficient, please clearly state so.

Answer:
`

const conceptualTemplate = `Based on the following context, explain the relevant concepts in detail. Please provide comprehensive and easy-to-understand explanations.

Context:
{context}

User Question: {question}

Please provide detailed concept explanations, including definition, characteristics, applications, etc.

Answer:
`

const comparativeTemplate = `Based on the following context, conduct a comparative analysis. Please compare from multiple dimensions.

Context:
{context}

User Question: {question}

Please provide structured comparative analysis, including similarities, differences, pros and cons.

Answer:
`

const reasoningTemplate = `Based on the following context, conduct reasoning analysis. Please provide clear logical reasoning process.

Context:
{context}

User Question: {question}

Please provide reasoning process and conclusions with rigorous logic.

Answer:
`

const listTemplate = `Based on the following context, provide answer in list format.

Context:
{context}

User Question: {question}

Please organize the answer in a clear list format.

Answer:
`

const conversationalTemplate = `Based on the following conversation history and context, answer the user's question. Please maintain conversation coherence.

Conversation History:
{history}

Context:
{context}

Current Question: {question}

Please provide a coherent and relevant answer.

Answer:
`

const explanatoryTemplate = `Please explain the following question in detail, providing comprehensive background information and in-depth analysis.

Context:
{context}

Question: {question}

Please provide:
1. Basic concept explanation
2. Related background information
3. Detailed analysis
4. Practical applications or examples

Answer:
`

var templates = map[templateKind]string{
	tmplFactual:        factualTemplate,
	tmplConceptual:     conceptualTemplate,
	tmplComparative:    comparativeTemplate,
	tmplReasoning:      reasoningTemplate,
	tmplList:           listTemplate,
	tmplConversational: conversationalTemplate,
	tmplExplanatory:    explanatoryTemplate,
}

// selectTemplate depends on the query type alone; anything unrecognised is conceptual.
func selectTemplate(qt graphrag.QueryType) templateKind {
	switch qt {
	case graphrag.QueryFactual:
		return tmplFactual
	case graphrag.QueryComparative:
		return tmplComparative
	case graphrag.QueryReasoning:
		return tmplReasoning
	case graphrag.QueryList:
		return tmplList
	default:
		return tmplConceptual
	}
}

func render(kind templateKind, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(templates[kind])
}
