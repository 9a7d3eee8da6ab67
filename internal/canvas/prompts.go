package canvas

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/canvascoach/internal/store"
)

// NoSectionFeedback is the feedback recorded for canvas sections the
// workshop does not configure.
const NoSectionFeedback = "No feedback available for this section."

// ChatInstructions are the run instructions for a chat turn.
func ChatInstructions(sectionID string) string {
	if sectionID != "" {
		return fmt.Sprintf("Focus on the %s section and provide specific guidance based on business best practices.", sectionID)
	}
	return "Provide guidance on the entire business canvas based on business best practices."
}

// SectionFeedbackRequest asks for feedback on one section.
func SectionFeedbackRequest(cfg store.Section, content store.SectionContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide constructive feedback on the %s section:\n\n", cfg.Title)
	fmt.Fprintf(&b, "\"\"\"\n%s\n\"\"\"\n\n", FormatContent(content))
	fmt.Fprintf(&b, "Follow these specific instructions:\n%s\n\n", cfg.AIInstructions)
	fmt.Fprintf(&b, "Additional feedback rules:\n%s\n\n", cfg.FeedbackRules)
	b.WriteString("Your feedback should be:\n")
	b.WriteString("1. Constructive and actionable\n")
	b.WriteString("2. Specific to the content provided\n")
	b.WriteString("3. Include both strengths and areas for improvement\n")
	b.WriteString("4. Suggest 2-3 concrete ways to enhance this section\n")
	return b.String()
}

// SectionFeedbackInstructions are the run instructions for one section's feedback.
func SectionFeedbackInstructions(cfg store.Section) string {
	return fmt.Sprintf("Focus on providing constructive feedback for the %s section. Make sure to bold key words in your feedback for emphasis.", cfg.Title)
}

// OverallFeedbackRequest asks for feedback on the whole canvas.
func OverallFeedbackRequest(canvasType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide comprehensive feedback on the entire %s canvas.\n\n", canvasType)
	b.WriteString("Your feedback should include:\n")
	b.WriteString("1. Overall assessment of the business model/canvas\n")
	b.WriteString("2. Key strengths and weaknesses\n")
	b.WriteString("3. Consistency and alignment between different sections\n")
	b.WriteString("4. 3-5 strategic recommendations to improve the business model\n")
	b.WriteString("5. Potential risks or blind spots to consider\n\n")
	b.WriteString("Be specific, constructive, and actionable in your feedback.\n")
	return b.String()
}

const OverallFeedbackInstructions = "Provide holistic feedback on the entire canvas, focusing on consistency, strategic alignment, and key recommendations. Make sure to bold key words in your feedback for emphasis."

// GenerationPersona is the system message of a content generation session.
func GenerationPersona(canvasType string) string {
	return fmt.Sprintf("You are an industry expert who has built and scaled multiple successful businesses. "+
		"As a business consultant AI, you provide expert feedback on %s canvas content with deep insights, "+
		"practical strategies, and opportunity-driven advice.", canvasType)
}

// GenerationInstructions are the run instructions for content generation.
func GenerationInstructions(canvasType string) string {
	return fmt.Sprintf("Generate high-quality content for all sections of the %s canvas. "+
		"Make sure to bold key words in your response and format as JSON.", canvasType)
}

// GenerationPrompt asks for content for every section, given the
// questionnaire answers. Unanswered questions read "Not answered".
func GenerationPrompt(w *store.Workshop, answers []store.QuestionAnswer) string {
	byID := make(map[string][]string, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a.Answer
	}

	sections := make([]string, len(w.Sections))
	for i, s := range w.Sections {
		sections[i] = fmt.Sprintf("Section: %s (%s)\nInstructions: %s", s.Title, s.SectionID, s.AIInstructions)
	}

	qa := make([]string, len(w.Questions))
	for i, q := range w.Questions {
		answer := "Not answered"
		if a, ok := byID[q.ID]; ok {
			answer = strings.Join(a, ", ")
		}
		qa[i] = fmt.Sprintf("Question: %s\nAnswer: %s", q.Text, answer)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert business consultant helping to create content for a %s canvas.\n\n", w.CanvasType)
	fmt.Fprintf(&b, "I need you to generate content for ALL of the following sections:\n%s\n\n", strings.Join(sections, "\n\n"))
	fmt.Fprintf(&b, "Based on these questions and answers:\n%s\n\n", strings.Join(qa, "\n\n"))
	b.WriteString("For each section, generate concise, high-quality content.\n")
	b.WriteString("Format your response as JSON with the following structure:\n")
	b.WriteString(`{
  "sections": [
    {
      "sectionId": "section-id",
      "content": ["item 1", "item 2", "item 3"]
    }
  ]
}`)
	b.WriteString("\n\nEach content item should be a single line of text with key words bolded using markdown (**bold**).\n")
	return b.String()
}
