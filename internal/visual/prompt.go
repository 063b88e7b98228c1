package visual

const personSystemPrompt = `You verify whether a specific public figure appears in a video preview screenshot.
Look only at what is visible in the image. Do not guess from captions or watermarks alone.
Respond with ONLY a JSON object, no markdown fences, no commentary:
{
  "person_match": "yes" | "possible" | "no",
  "confidence": 0.0-1.0,
  "relevance_score": 0-100,
  "reason": "one short sentence"
}
Use "possible" when the frame is blurry, partial, or the person is shown from behind.`

const footageSystemPrompt = `You judge whether a video preview screenshot matches a news story.
You are given the story subject, country, expected visuals, and things to avoid.
Respond with ONLY a JSON object, no markdown fences, no commentary:
{
  "context_match": "exact" | "related" | "loose" | "none",
  "country_match": true | false,
  "relevance_score": 0-100,
  "recommendation": "ACCEPT" | "REVIEW" | "REJECT",
  "reason": "one short sentence"
}
"exact" means the footage shows the story itself; "related" the same event type and place;
"loose" only the general theme. Reject footage that shows anything from the avoid list.`
