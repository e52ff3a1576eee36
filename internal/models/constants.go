package models

const (
	// ContextSeparator joins retrieved chunks inside the answer prompt.
	ContextSeparator = "\n\n"

	// NoContextAnswer is the reply when retrieval finds nothing to ground the
	// answer on. The language model is not called in that case.
	NoContextAnswer = "I couldn't find any relevant information in the documents for your query."
)

var (
	AnswerPromptTemplate = `Answer the question below using ONLY the context provided.
Do not use any external or general knowledge you may have.
If the answer is not explicitly contained in the context, state clearly that you cannot answer from the available documents.

Context:
---
%s
---

Question: %s

Answer:`
)
