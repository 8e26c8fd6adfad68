// Package prompts holds the static prompt templates for the text
// processing operations. Templates have a single {text} substitution point.
package prompts

import "strings"

const summarizePrompt = "Create a concise summary of the following news article in EXACTLY 3 sentences. " +
	"Focus on the main points, key facts, and central message. " +
	"Think step-by-step before writing your summary: identify the main topic, key information, and most important conclusions. " +
	"Ensure your final summary is clear, informative, and captures the essence of the article.\n\n" +
	"Article: {text}\n\n" +
	"3-Sentence Summary:"

const categorizePrompt = "Analyze the following news article and categorize it into EXACTLY ONE of these categories: " +
	"Technology, Sports, Health, Politics, Finance, Business.\n\n" +
	"Before deciding, consider: the primary subject matter, key entities discussed, main events or concepts, " +
	"and which category best represents the overall focus of the article.\n\n" +
	"Choose the single most appropriate category that best represents the primary focus of the article. " +
	"Return only the category name without additional explanation or commentary.\n\n" +
	"Article: {text}\n\n" +
	"Category:"

const extractKeywordsPrompt = "Extract 5-10 relevant keywords or key phrases from the following news article. " +
	"Focus on terms that best represent the main topics, entities, and themes of the content. " +
	"To identify the most effective keywords: consider the central topic, recurring terminology, " +
	"important entities (people, organizations, locations), and technical terms specific to the subject matter.\n\n" +
	"Format requirements:\n" +
	"- Return ONLY the keywords themselves\n" +
	"- Each keyword should be separated by a comma (,)\n" +
	"- Do NOT use bullet points, asterisks, or markdown formatting\n" +
	"- Do NOT number the keywords\n" +
	"- Do NOT add explanations or descriptions\n\n" +
	"Article: {text}\n\n" +
	"Keywords:"

const systemPrompt = "You are a precise and analytical text processing assistant. " +
	"When working with texts, carefully consider all relevant aspects before providing your response. " +
	"Your primary goal is to produce accurate, high-quality outputs that exactly match the requested format. " +
	"Always follow the specified output requirements precisely. " +
	"Focus on understanding the content thoroughly to extract the most relevant information. " +
	"Do not speculate or add information not present in the original text."

// Bank is the collection of prompt templates. Immutable after construction.
type Bank struct {
	Summarize       string
	Categorize      string
	ExtractKeywords string
	System          string
}

// NewBank returns the default prompt bank.
func NewBank() Bank {
	return Bank{
		Summarize:       summarizePrompt,
		Categorize:      categorizePrompt,
		ExtractKeywords: extractKeywordsPrompt,
		System:          systemPrompt,
	}
}

// Render substitutes the article text into a template.
func Render(template, text string) string {
	return strings.ReplaceAll(template, "{text}", text)
}
