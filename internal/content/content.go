// Package content defines the normalized fetch result and the identifier
// codec used for duplicate avoidance.
package content

// Category is a content type with its own schedule, channel and history.
type Category string

const (
	Fact         Category = "fact"
	TriviaSingle Category = "trivia"
	TriviaBatch  Category = "quiz"
)

// Item is the normalized result of one fetch. Constructed fresh on every
// fetch call, immutable, discarded after dispatch and identifier recording.
type Item struct {
	Category Category

	// Text is the formatted message payload (fact categories).
	Text string
	// Quiz is the poll payload (trivia categories).
	Quiz *Quiz

	// NaturalKey is the raw source text identity is derived from
	// (pre-formatting, pre-shuffle).
	NaturalKey string
	// ID is the resolved content identifier. See DeriveID/FallbackID.
	ID string

	// Fallback marks static placeholder content substituted after an
	// upstream failure.
	Fallback bool
}

// Quiz carries one multiple-choice question ready for a quiz poll.
// CorrectIndex is the post-shuffle index of the correct option.
type Quiz struct {
	Question     string
	Options      []string
	CorrectIndex int
	Subject      string
	Difficulty   string
}
