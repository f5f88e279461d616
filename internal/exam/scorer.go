package exam

// Score grades a submitted answer set against the questions frozen into
// the attempt at creation time. One point per exact match, no negative
// marking; the result is a whole percentage, rounded half up.
//
// The caller passes the sampled questions, never the live pool, so a
// grade can never drift if the pool were edited afterwards.
func Score(sampled []Question, answers map[string]string) int {
	if len(sampled) == 0 {
		return 0
	}
	points := 0
	for _, q := range sampled {
		sel := NormalizeLetter(answers[q.ID])
		if sel != "" && sel == NormalizeLetter(q.CorrectAnswer) {
			points++
		}
	}
	return roundPercent(points, len(sampled))
}

// roundPercent returns round-half-up of 100*points/total in integers.
func roundPercent(points, total int) int {
	return (200*points + total) / (2 * total)
}
