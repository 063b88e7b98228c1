package scoring

// topicKeywords groups story-domain vocabulary. A keyword only earns its
// bonus when it also appears in the declared main subject, so incidental
// vocabulary overlap never inflates a score.
var topicKeywords = map[string][]string{
	"military": {"military", "army", "troops", "soldiers", "missile", "drone", "airstrike", "navy"},
	"disaster": {"earthquake", "flood", "hurricane", "wildfire", "tsunami", "landslide", "storm"},
	"protest":  {"protest", "demonstration", "rally", "march", "strike", "riot"},
	"economy":  {"economy", "inflation", "market", "trade", "tariff", "currency", "bank"},
	"politics": {"election", "parliament", "summit", "president", "minister", "congress", "senate"},
}

// HotTopics is the denylist of geopolitical flashpoint terms penalized when
// they appear in a candidate title without being part of the declared story.
// The point values around this list are default policy, tunable per
// deployment rather than contractual.
var HotTopics = []string{
	"ukraine",
	"gaza",
	"israel",
	"russia",
	"taiwan",
	"syria",
	"north korea",
	"iran",
}
