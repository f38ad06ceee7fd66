package query

import "strings"

const analysisTemplate = `Please analyze the following user query and extract key information:

Query: {query}

Please output in the following format:

Query Type: [Factual Query/Concept Explanation/Comparative Analysis/Reasoning Q&A/List Query/Others]
Key Entities: [Entity1, Entity2, ...]
Query Intent: [Brief description of user's query intent]
Related Concepts: [Concept1, Concept2, ...]
Query Complexity: [Simple/Medium/Complex]
Expected Answer Type: [Brief Answer/Detailed Explanation/List/Comparison Table/Others]

Note: Please ensure the extracted information is accurate and useful.`

func analysisPrompt(question string) string {
	return strings.ReplaceAll(analysisTemplate, "{query}", question)
}
