package models

const (
	// UnknownPageTag is written in place of a page number when none is known.
	UnknownPageTag = "unknown"
	// DecorativeImageSentinel is emitted for images that carry no information.
	DecorativeImageSentinel = "<---image--->"
	// ContentSeparator joins page content and retrieved context.
	ContentSeparator = "\n\n"
)

var (
	ImageDescriptionPrompt = `Describe only the factual content visible in the image:

1. If decorative/non-informational: output '<---image--->'

2. For content images:
- General Images: List visible objects, text, and measurable attributes
- Charts/Infographics: State all numerical values and labels present
- Tables: Convert to markdown table format with exact data

Rules:
* Include only directly observable information
* Use original numbers and text without modification
* Avoid any interpretation or analysis
* Preserve all labels and measurements exactly as shown`

	AnswerPromptTemplate = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know.
Question: {question}
Context: {context}
Answer:`

	SampleQuestions = []string{
		"What is the main topic of this document?",
		"Can you summarize the key points?",
		"What are the important definitions mentioned?",
		"Explain the methodology used.",
		"What are the conclusions drawn?",
	}
)
