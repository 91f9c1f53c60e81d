package rankingports

// Scorer computes one relevance signal between a candidate next query and
// each entry of the recent session history. It returns one value per history
// entry and never pads; callers pad to the fixed history window.
type Scorer interface {
	Name() string
	Score(candidate string, history []string) []float64
}
