package words

// vocabulary is the fixed pool match challenges are drawn from.
// Common short English words keep races about speed, not spelling.
var vocabulary = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "it",
	"for", "not", "on", "with", "he", "as", "you", "do", "at", "this",
	"but", "his", "by", "from", "they", "we", "say", "her", "she", "or",
	"an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know",
	"take", "people", "into", "year", "your", "good", "some", "could",
	"them", "see", "other", "than", "then", "now", "look", "only",
	"come", "its", "over", "think", "also", "back", "after", "use",
	"two", "how", "our", "work", "first", "well", "way", "even", "new",
	"want", "because", "any", "these", "give", "day", "most", "us",
	"great", "between", "need", "large", "often", "both", "early",
	"while", "world", "hand", "life", "place", "right", "small", "find",
	"where", "much", "before", "move", "thing", "down", "should",
	"house", "long", "very", "still", "own", "here", "never", "under",
	"last", "might", "home", "keep", "point", "water", "word", "side",
	"again", "each", "high", "such", "every", "found", "same", "part",
	"sound", "light", "night", "story", "young", "begin", "always",
	"those", "came", "show", "around", "three", "state", "learn",
	"plant", "cover", "start", "city", "earth", "father", "head",
	"stand", "page", "letter", "mother", "answer", "study", "spell",
	"change", "play", "animal", "river", "chair", "close", "north",
	"paper", "group", "music", "field", "plane", "order", "class",
	"south", "horse", "money", "table", "green", "brown", "shape",
	"clear", "space", "heard", "best", "hour", "better", "during",
	"hundred", "five", "since", "against", "pattern", "slowly",
	"listen", "travel", "simple", "toward", "leave", "family", "paint",
	"measure", "second", "window", "ground", "island", "summer",
	"winter", "strong", "special", "bright", "ocean", "common", "gold",
	"finish", "quick", "wind", "rock", "fire", "speed", "type", "race",
}
