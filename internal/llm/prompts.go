package llm

import "strings"

const analysisUserMessage = "Please analyze the company information from all sources, prioritizing the most reliable and recent data."

// Unknown fields are omitted rather than filled with a placeholder so the
// stored profile has one representation for "undeterminable".
const extractionSystemPrompt = `Based on the analysis, create a structured object with the following fields:
- employeeCount: string (e.g., "100-500")
- revenue: string (e.g., "$10M-$50M")
- founded: string (year)
- description: string (2-3 sentences)
- socialMedia: object with linkedin and twitter URLs
- competitors: array of competitor names
- technologies: array of technology names
- locations: array of office locations

If a value cannot be determined, omit the field entirely. Do not use placeholders such as "unknown" or "N/A", and do not add any other fields.

Return ONLY the JSON object, no other text.`

// Sources is the gathered text handed to the analysis phase.
type Sources struct {
	Scraped     string
	BasicSearch string
	News        string
	DeepSearch  string
}

func analysisSystemPrompt(src Sources) string {
	var b strings.Builder
	b.WriteString("You are an expert business analyst. Analyze the following website content, search results, news, and deep analysis to extract key information about the company.\n")
	b.WriteString("Focus on: employee count, revenue, founding year, company description, social media links, competitors, technologies used, and office locations.\n")
	b.WriteString("When sources disagree, prefer the most reliable and most recent one.\n")
	b.WriteString("Format the information in a clear, structured way.\n\n")

	section(&b, "Website content (including image descriptions):", src.Scraped)
	section(&b, "Basic search results:", src.BasicSearch)
	section(&b, "Recent news:", src.News)
	section(&b, "Deep analysis:", src.DeepSearch)

	return strings.TrimSpace(b.String())
}

func section(b *strings.Builder, title, body string) {
	b.WriteString(title)
	b.WriteString("\n")
	if strings.TrimSpace(body) == "" {
		b.WriteString("(none)")
	} else {
		b.WriteString(body)
	}
	b.WriteString("\n\n")
}
