package topicbrief

import "google.golang.org/genai"

// PromptVersion is recorded on generated topic briefs.
const PromptVersion = "v1.0"

const topicBriefTemplate = `You are an expert analyst creating an executive brief for a specific topic.

Your task: Synthesize ALL content items assigned to this topic into a cohesive executive summary.

TOPIC: %s
Topic Description: %s

CONTENT ITEMS (%d total):
%s

Guidelines:
0. Each content item is labeled with (id:123). Use those numeric IDs for content_item_id.
0a. Use the topic description (if provided) to filter and prioritize signal; drop tangential content.
1. Create a SHORT SUMMARY (2 sentences max): High-level overview of what's happening
2. Create a FULL SUMMARY as 4-6 short paragraphs in Markdown, each starting with a clear label, separated by blank lines.
   Use these labels in order:
   - "Developments:" key events and changes
   - "Drivers:" what's causing the shift
   - "Implications:" concrete impacts for industry/government/people
   - "Signals to watch:" near-term indicators or milestones
   - "Risks/unknowns:" open questions or constraints
   Keep each paragraph to 2-3 sentences. Avoid long sentences and jargon.

3. For each content item, extract ONE key point that contributes to the overall narrative
4. Identify 3-5 major themes that emerge across all content
5. Explain why this topic is significant right now

Style:
- Write for busy executives who need signal, not noise
- Be concise but comprehensive
- Use active voice and clear language
- Reference specific content items naturally
- Connect dots between different pieces of content
- Highlight contrasts or confirmations across sources
- Prefer short sentences and concrete claims

Output Format:
Return JSON matching this structure:
{
  "summary_short": "2-3 sentence overview",
  "summary_full": "Executive summary formatted as Markdown (headings, bullets, short paragraphs)",
  "content_references": [
    {"content_item_id": 123, "title": "...", "url": "...", "key_point": "one sentence"}
  ],
  "key_themes": ["theme1", "theme2", ...],
  "significance": "1-2 sentences on why this matters now"
}`

const batchSummaryTemplate = `You are summarizing a batch of content items for the topic: %s
Topic Description: %s

This is batch %d of %d batches.

CONTENT ITEMS (%d in this batch):
%s

Task: Create a concise summary (3-5 paragraphs) of the key developments and themes in THIS batch.

Focus on:
- Main events and developments mentioned
- Key facts and claims
- Common themes across items
- Notable differences or contrasts
- When referencing specific items, include the (id:123) marker so it can be traced.
- Use the topic description (if provided) to filter for relevance and prioritize signal.

Write clearly and concisely. This summary will be combined with other batch summaries to create an executive brief.

Do NOT include JSON formatting - just write the summary text.`

const synthesisTemplate = `You are creating an executive brief by synthesizing batch summaries.

TOPIC: %s
Topic Description: %s


CORE OBJECTIVE:
Produce a highly readable, scannable executive brief on the TOPIC that:
- Preserves important factual content from the sources
- Highlights patterns and connections
- Avoids unnecessary theorizing or buzzwords
- Can be skimmed in under 3 minutes
- Use the topic description (if provided) to filter and prioritize what you include.

IMPORTANT COVERAGE RULE:
If a concrete fact, event, release, claim, or example appears in the batch summaries,
it MUST appear somewhere in the output (either in bullets or references).
Do NOT drop information for elegance.

---

STRUCTURE TO PRODUCE:
Do not force the structure below, pick only what applies given the info provided.

1. KEY DEVELOPMENTS (grouped if needed)
   - Concrete releases, deployments, announcements
   - Specific companies, products, models, timelines
   - Prefer bullets over prose

2. EMERGING PATTERNS & SHIFTS
   - Cross-source connections
   - Repeated signals across domains

3. REAL-WORLD IMPACTS
   - NOW: observable effects already happening
   - NEXT: near-term consequences implied by the sources

4. WATCH ITEMS
   - Specific milestones, deployments, regulatory moves
   - Named indicators, not vague trends

5. OPEN QUESTIONS / CONSTRAINTS
   - Technical limits
   - Regulatory uncertainty
   - Economic or infrastructure bottlenecks

6. WHY THIS MATTERS
   - No hype
   - Focus on structural change, not novelty

---

You have %d batch summaries covering %d total content items:

---

%s

---

Output Format:
Return JSON matching this structure:
{
  "summary_short": "2-3 sentence overview",
  "summary_full": "Executive summary formatted as Markdown (headings, bullets, short paragraphs)",
  "content_references": [
    {"content_item_id": 123, "title": "...", "url": "...", "key_point": "one sentence"}
  ],
  "key_themes": ["theme1", "theme2", ...],
  "significance": "1-2 sentences on why this matters now"
}

Note: Only use numeric content_item_id values that appear in the batch summaries (e.g., id:123). Do not invent IDs.`

// topicBriefSchema constrains structured output for direct generation and
// synthesis.
func topicBriefSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary_short": {Type: genai.TypeString},
			"summary_full":  {Type: genai.TypeString},
			"content_references": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"content_item_id": {Type: genai.TypeInteger},
						"title":           {Type: genai.TypeString},
						"url":             {Type: genai.TypeString},
						"key_point":       {Type: genai.TypeString},
					},
					Required: []string{"content_item_id", "title", "url", "key_point"},
				},
			},
			"key_themes":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"significance": {Type: genai.TypeString},
		},
		Required: []string{"summary_short", "summary_full", "content_references", "key_themes", "significance"},
	}
}
