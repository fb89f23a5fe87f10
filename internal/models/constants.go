package models

const (
	// ContextSeparator joins retrieved contexts inside judge prompts.
	ContextSeparator = "\n---\n"
	// ContextEntrySeparator joins formatted entries of an assembled context window.
	ContextEntrySeparator = "\n\n---\n\n"
	// NoContextFound is returned by context assembly when the search found nothing.
	NoContextFound = "No relevant documents found in the knowledge base."
	ThinkTag       = `(?s)<think>.*?</think>`
	// CharsPerToken is the fixed heuristic used for context budgets.
	CharsPerToken = 4
)

var (
	ContextEntryTemplate = "[Source: %s, Relevance: %.2f]\n%s"

	AnswerSystemPrompt = `You are a knowledgeable automotive technical specialist assistant.
Your role is to help customers understand their vehicle's specifications, features, and documentation.

When answering questions:
1. Be precise and technical when needed, but explain in accessible terms
2. Reference specific manual sections or documentation when available
3. If you're not sure about something, say so rather than guessing
4. Provide safety warnings when relevant
5. Suggest consulting a professional for complex technical issues

Context from documentation:
%s

If no relevant context is found, provide general guidance and recommend checking the owner's manual.`
)
