// Package prompt assembles the model instructions for the answer and
// summary paths.
package prompt

import (
	"fmt"
	"strings"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// responseShape tells the model to size its answer to the question. All
// three tiers ship in every prompt; the model picks the one that fits.
const responseShape = `**IMPORTANT: Match your response length and detail to the user's question:**

1. **For brief questions** (e.g., "what is the main point" (singular), "summarise this in one sentence"):
   - Provide a concise 1-3 sentence answer
   - Do NOT use headings or multiple sections
   - Write in plain paragraph format
   - Use **bold** only for key terms if needed
   - Keep it simple and direct

2. **For specific questions** (e.g., "what did they say about X", "who mentioned Y"):
   - Provide a focused answer on that specific topic
   - Use minimal structure (one heading if helpful)
   - Keep it concise but complete
   - Use **bold** for emphasis

3. **For comprehensive questions** (e.g., "what are the main points" (plural), "explain...", "break down...", "how..."):
   - Provide a thorough, detailed response
   - Use headings (##), bullet points (-), and **bold** for emphasis
   - Create well-structured markdown with multiple sections`

var styleInstructions = map[models.SummaryStyle]string{
	models.StyleBulletPoints:  "Use bullet points (-) for individual points and facts, but ALWAYS use proper markdown headings (### for subheadings) to organize sections. Never use bullet points for section titles.",
	models.StyleAcademic:      "Use formal academic language with proper paragraph structure and citations where relevant.",
	models.StyleCasual:        "Use conversational, easy-to-understand language while maintaining clarity.",
	models.StyleRevisionNotes: "Format as concise revision notes with key concepts highlighted.",
	models.StyleParagraph:     "Write in flowing paragraph format with clear topic sentences.",
}

// StrictAnswer grounds the answer in the retrieved context only.
func StrictAnswer(contextBlock, query string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about a YouTube video transcript.\n\n")
	b.WriteString("Use ONLY the following context from the video transcript to answer the user's question. Do not use external knowledge or hallucinate information.\n\n")
	b.WriteString(responseShape)
	b.WriteString("\n\nContext from video:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUser Question: \n")
	b.WriteString(query)
	b.WriteString("\n\nProvide a clear answer based strictly on the context above. When referencing timestamps, use only the single start timestamp in parentheses like (mm:ss), not ranges. Use British English spelling.")
	return b.String()
}

// HybridAnswer lets the model fall back to general knowledge when the
// context falls short, as long as it labels which is which.
func HybridAnswer(contextBlock, query string) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant answering questions about a YouTube video transcript.\n\n")
	b.WriteString("Answer the user's question using the video context below as your primary source of information. You can use external knowledge if the information from the video context is not sufficient to answer the question. \n")
	b.WriteString("Clearly indicate in your response information that is from the video context and information that is from external knowledge.\n\n")
	b.WriteString(responseShape)
	b.WriteString("\n\nContext from video:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUser Question: \n")
	b.WriteString(query)
	b.WriteString("\n\nProvide a clear answer based on the context above. When referencing timestamps, use only the single start timestamp in parentheses like (mm:ss), not ranges. Use British English spelling.")
	return b.String()
}

// Summary builds the note-taker prompt for the summary path.
func Summary(contextBlock, videoTitle string, depth models.SummaryDepth, style models.SummaryStyle, includeTimestamps bool) string {
	depthText := "120–180 words"
	if depth == models.DepthInDepth {
		depthText = "250–400 words"
	}

	timestampRule := "Do not include timestamps."
	if includeTimestamps {
		timestampRule = "If a point maps to a provided timestamp, include it exactly as (mm:ss). Do NOT use square brackets. Do NOT invent times."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert note taker. Create a final summary from the below notes extracted from the transcript of a Youtube video titled %q. \n\n", videoTitle)
	b.WriteString("**Output your response in well-formatted Markdown.**\n\n")
	b.WriteString("CRITICAL FORMATTING RULES:\n")
	b.WriteString("- ALWAYS use ## for the main title\n")
	b.WriteString("- ALWAYS use ### for section subheadings (e.g., \"Key Points\", \"Overview\", \"Historical Context\", etc.)\n")
	b.WriteString("- Never use bullet points (-) for headings or subheadings\n")
	b.WriteString("- Only use bullet points (-) for actual content items under subheadings\n\n")
	b.WriteString("Additional guidelines:\n")
	b.WriteString("- Use British English. \n")
	b.WriteString("- No invented facts.\n")
	b.WriteString("- Ignore any notes that are not relevant to the overarching theme of the video (e.g., jokes, off-topic remarks).\n")
	fmt.Fprintf(&b, "- Target length: %s.\n", depthText)
	fmt.Fprintf(&b, "- Style: %s. %s\n", style, styleInstructions[style])
	fmt.Fprintf(&b, "- %s\n", timestampRule)
	b.WriteString("- No meta text; output only the formatted summary.\n")
	b.WriteString("- Use **bold** for key terms and concepts.\n\n")
	if videoTitle != "" {
		fmt.Fprintf(&b, "Title: %s.\n\n", videoTitle)
	}
	b.WriteString("Structured notes:\n")
	b.WriteString(contextBlock)
	return b.String()
}

// SummaryRetrievalQuery is the fixed query embedded to pull the chunks
// a summary is built from.
func SummaryRetrievalQuery(videoTitle string) string {
	return fmt.Sprintf("Extract the main points, key takeaways, and essential information from this YouTube video titled %q. Focus on the most important topics and concepts discussed.", videoTitle)
}
