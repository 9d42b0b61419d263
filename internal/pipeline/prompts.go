package pipeline

import "google.golang.org/genai"

// Prompt identities recorded on extraction rows.
const (
	ClassificationPromptName    = "topic_classification"
	ClassificationPromptVersion = "v1.0"
	ExtractionPromptName        = "structured_extraction"
	ExtractionPromptVersion     = "v1.0"
	VideoPromptName             = "video_extraction"
	VideoPromptVersion          = "v1.0"
)

const classificationTemplate = `You are an expert content classifier. Your task is to classify content into relevant topics based on provided criteria.

Given a piece of content and a list of topics with their inclusion/exclusion rules, determine which topics are relevant.

Rules:
1. A content item can belong to multiple topics (multi-label classification)
2. Assign a confidence score between 0.0 and 1.0 for each relevant topic
3. Only include topics with score >= 0.5
4. Return maximum 5 topics, ordered by score (highest first)
5. Provide a brief rationale (1-2 sentences) for each assignment
6. Use topic descriptions (if provided) to interpret scope and intent
7. Use include_rules to identify relevant content
8. Use exclude_rules to filter out irrelevant content

Content to classify:
Title: %s
Content: %s

Available Topics:
%s

Output Format:
Return JSON with this exact structure:
{
  "assignments": [
    {
      "topic_id": <int>,
      "score": <float between 0.0 and 1.0>,
      "rationale_short": "<string explaining why this topic applies>"
    }
  ]
}

If no topics are relevant (score < 0.5), return empty assignments array.`

const extractionTemplate = `You are an expert content analyst. Extract key information from the provided content and structure it for easy consumption.

Your goal is to distill content into "pure signal" - the essential information without noise.

Guidelines:
1. Summary bullets (2-5 points): Core facts and key takeaways
2. Why it matters (1-2 points): Implications, impact, or significance
3. Key claims: Specific factual assertions with confidence levels
4. Novelty: Is this new information, an update to existing story, or recurring topic?
5. Overall confidence: How confident are you in the accuracy of this extraction?
6. Follow-ups: Optional related topics worth exploring

Handle different content types appropriately:
- Short content (tweets): Focus on main point, be concise
- Long articles: Extract most important information
- Video descriptions: Work with available metadata

Content to analyze:
Title: %s
URL: %s
Content: %s

Output Format:
Return JSON with this exact structure:
{
  "summary_bullets": ["bullet1", "bullet2", ...],
  "why_it_matters": ["reason1", "reason2"],
  "key_claims": [
    {"claim": "...", "confidence": "low|med|high"}
  ],
  "novelty": "new|update|recurring",
  "confidence_overall": "low|med|high",
  "follow_ups": ["topic1", "topic2"]
}

Confidence levels:
- high: Strong evidence, verified facts, reputable source
- med: Reasonable evidence, some uncertainty
- low: Speculation, unverified claims, unclear source

Novelty:
- new: Breaking news or first mention of this topic
- update: Follow-up or development on existing story
- recurring: Ongoing discussion or repeated topic`

const simplifiedExtractionTemplate = `Summarize this content in JSON format:

Title: %s
Content: %s

Return JSON:
{
  "summary_bullets": ["point1", "point2"],
  "why_it_matters": ["reason1"],
  "key_claims": [],
  "novelty": "recurring",
  "confidence_overall": "med",
  "follow_ups": []
}`

const videoExtractionTemplate = `You are an expert video content analyst. Analyze this YouTube video and extract key information.

Your goal is to distill the video into "pure signal" - the essential information without noise.

Watch/analyze the video and extract:

1. Summary bullets (2-5 points): Core facts and key takeaways from the video
2. Why it matters (1-2 points): Implications, impact, or significance of the video content
3. Key claims: Specific factual assertions made in the video with confidence levels
4. Novelty: Is this new information, an update to existing story, or recurring topic?
5. Overall confidence: How confident are you in the accuracy of this extraction?
6. Follow-ups: Optional related topics worth exploring

Focus on:
- Main narrative and key points made by speakers
- Visual information shown on screen (charts, graphs, text overlays)
- Demonstrations or examples shown
- Key facts, data, or claims presented
- Context and implications

Output Format:
Return JSON with this exact structure:
{
  "summary_bullets": ["bullet1", "bullet2", ...],
  "why_it_matters": ["reason1", "reason2"],
  "key_claims": [
    {"claim": "...", "confidence": "low|med|high"}
  ],
  "novelty": "new|update|recurring",
  "confidence_overall": "low|med|high",
  "follow_ups": ["topic1", "topic2"]
}

Confidence levels:
- high: Strong evidence shown in video, verified facts, reputable source
- med: Reasonable evidence, some uncertainty
- low: Speculation, unverified claims, unclear source

Novelty:
- new: Breaking news or first mention of this topic
- update: Follow-up or development on existing story
- recurring: Ongoing discussion or repeated topic`

// classificationSchema constrains structured output to the assignments shape.
func classificationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"assignments": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"topic_id":        {Type: genai.TypeInteger},
						"score":           {Type: genai.TypeNumber},
						"rationale_short": {Type: genai.TypeString},
					},
					Required: []string{"topic_id", "score", "rationale_short"},
				},
			},
		},
		Required: []string{"assignments"},
	}
}

// extractionSchema constrains structured output to the extraction payload
// shape, shared by text, simplified retry, and video extraction.
func extractionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary_bullets": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"why_it_matters":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"key_claims": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"claim":      {Type: genai.TypeString},
						"confidence": {Type: genai.TypeString},
					},
					Required: []string{"claim", "confidence"},
				},
			},
			"novelty":            {Type: genai.TypeString},
			"confidence_overall": {Type: genai.TypeString},
			"follow_ups":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"summary_bullets", "why_it_matters", "key_claims", "novelty", "confidence_overall"},
	}
}
