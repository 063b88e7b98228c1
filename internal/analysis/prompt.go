package analysis

const analysisSystemPrompt = `You analyze news segments to plan searches on a stock news-footage platform.
Respond with a single JSON object and nothing else, using exactly these keys:

{
  "queries": ["..."],            // 3-5 search queries, 1-3 words each, ordered most specific to most generic
  "main_subject": "...",         // the primary visual subject of the segment
  "country": "...",              // country most relevant to the story, or ""
  "has_important_person": false, // true only if the footage must show a specific named person
  "person_name": "...",          // full name when has_important_person is true, else ""
  "person_description": "...",   // short description of the person (role, appearance), else ""
  "key_visuals": ["..."],        // concrete things that would appear on screen
  "must_show": ["..."],          // elements the footage must contain
  "avoid": ["..."]               // elements that disqualify footage
}

Rules:
- Queries must be short keyword phrases, never full sentences.
- Order queries from the most specific (names, places) to the most generic.
- Set has_important_person only for individuals whose identity matters on
  screen (heads of state, named officials), not for generic roles.`

const personCheckSystemPrompt = `You verify the identity of a person in an image.
Respond with a single JSON object and nothing else:

{"match": true, "confidence": 0.0, "reason": "..."}

confidence is between 0 and 1. Be conservative: when unsure, answer false
with a low confidence and say why.`
