package agents

import (
	"fmt"
	"strings"
)

// =============================================================================
// PROMPT CONSTANTS
// =============================================================================
// Every prompt leads with the language-consistency instruction so responses
// match the language of the user's topic and context. Batch prompts always
// state the exact expected output count ("Return exactly N ...") and number
// their inputs so outputs can be aligned by idea_index.

// LanguageConsistency is prepended to every agent prompt.
const LanguageConsistency = "IMPORTANT: Respond in the same language as the topic and context below. " +
	"If the topic is in Japanese, respond in Japanese; if in English, respond in English.\n\n"

const ideaGeneratorSystem = "You are a creative idea generator. You produce diverse, concrete, " +
	"actionable ideas grounded in the user's constraints."

const criticSystem = "You are a rigorous critic. You evaluate ideas honestly on a 0-10 scale, " +
	"naming specific strengths and weaknesses."

const advocateSystem = "You are a persuasive advocate. You build the strongest honest case for an idea, " +
	"engaging directly with the criticism it received."

const skepticSystem = "You are a devil's advocate. You surface flaws, risks, questionable assumptions, " +
	"and missing considerations that enthusiasm tends to hide."

const improverSystem = "You are an idea improver. You rewrite ideas to address their criticism while " +
	"keeping what made them valuable."

// contextBlock renders the shared topic/context footer.
func contextBlock(topic, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}
	return b.String()
}

func ideaGenerationPrompt(topic, context string, n int) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	fmt.Fprintf(&b, "Generate exactly %d diverse, creative ideas for the topic below. ", n)
	b.WriteString("Each idea needs a short title, a concrete description of how it works, " +
		"3-5 key features, and a category.\n\n")
	b.WriteString(contextBlock(topic, context))
	return b.String()
}

func criticPrompt(ideasText, topic, context string, n int) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	fmt.Fprintf(&b, "Evaluate each of the following %d ideas on a 0-10 scale. ", n)
	fmt.Fprintf(&b, "Return exactly %d evaluations, one per idea, in input order, "+
		"each carrying the idea_index it refers to.\n\n", n)
	b.WriteString(contextBlock(topic, context))
	b.WriteString("\nIdeas:\n")
	b.WriteString(ideasText)
	return b.String()
}

func advocacyPrompt(idea, evaluation, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	b.WriteString("Build the strongest case for the idea below. List its key strengths, " +
		"growth opportunities, and how it addresses the concerns raised in the evaluation.\n\n")
	b.WriteString(contextBlock(topic, context))
	fmt.Fprintf(&b, "\nIdea: %s\n\nEvaluation: %s\n", idea, evaluation)
	return b.String()
}

func advocacyBatchPrompt(items []AdvocacyInput, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	fmt.Fprintf(&b, "Build the strongest case for each of the following %d ideas. ", len(items))
	fmt.Fprintf(&b, "Return exactly %d advocacy entries, one per idea, in input order, "+
		"each carrying the idea_index it refers to.\n\n", len(items))
	b.WriteString(contextBlock(topic, context))
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(&b, "Idea %d: %s\nEvaluation %d: %s\n\n", i, item.Idea, i, item.Evaluation)
	}
	return b.String()
}

func skepticismPrompt(idea, advocacy, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	b.WriteString("Play devil's advocate for the idea below. Name its critical flaws, " +
		"risks and challenges, questionable assumptions, and missing considerations. " +
		"Engage directly with the advocacy where it overreaches.\n\n")
	b.WriteString(contextBlock(topic, context))
	fmt.Fprintf(&b, "\nIdea: %s\n\nAdvocacy: %s\n", idea, advocacy)
	return b.String()
}

func skepticismBatchPrompt(items []SkepticismInput, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	fmt.Fprintf(&b, "Play devil's advocate for each of the following %d ideas. ", len(items))
	fmt.Fprintf(&b, "Return exactly %d skepticism entries, one per idea, in input order, "+
		"each carrying the idea_index it refers to.\n\n", len(items))
	b.WriteString(contextBlock(topic, context))
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(&b, "Idea %d: %s\nAdvocacy %d: %s\n\n", i, item.Idea, i, item.Advocacy)
	}
	return b.String()
}

func improvementPrompt(in ImprovementInput, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	b.WriteString("Rewrite the idea below into an improved version that addresses the critique " +
		"and the skeptical analysis while keeping the strengths the advocacy identified. " +
		"Put the complete improved idea text, and nothing else, in the improved_idea field.\n\n")
	b.WriteString(contextBlock(topic, context))
	fmt.Fprintf(&b, "\nOriginal idea: %s\nCritique: %s\nAdvocacy: %s\nSkepticism: %s\n",
		in.Idea, in.Critique, in.Advocacy, in.Skepticism)
	if in.LogicalInference != "" {
		fmt.Fprintf(&b, "Logical analysis: %s\n", in.LogicalInference)
	}
	return b.String()
}

func improvementBatchPrompt(items []ImprovementInput, topic, context string) string {
	var b strings.Builder
	b.WriteString(LanguageConsistency)
	fmt.Fprintf(&b, "Rewrite each of the following %d ideas into an improved version. ", len(items))
	fmt.Fprintf(&b, "Return exactly %d improvement entries, one per idea, in input order, "+
		"each carrying the idea_index it refers to. Put the complete improved idea text, "+
		"and nothing else, in each improved_idea field.\n\n", len(items))
	b.WriteString(contextBlock(topic, context))
	b.WriteString("\n")
	for i, item := range items {
		fmt.Fprintf(&b, "Idea %d: %s\nCritique %d: %s\nAdvocacy %d: %s\nSkepticism %d: %s\n\n",
			i, item.Idea, i, item.Critique, i, item.Advocacy, i, item.Skepticism)
	}
	return b.String()
}
