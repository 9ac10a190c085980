package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ashureev/deepfake-defender/internal/domain"
)

// DrawPolicy controls whether images return to the deck after a round.
type DrawPolicy int

const (
	// NoRepeat consumes images; the deck shrinks until exhausted.
	NoRepeat DrawPolicy = iota
	// WithReplacement resamples from the full pool every round.
	WithReplacement
)

func (p DrawPolicy) String() string {
	if p == WithReplacement {
		return "with_replacement"
	}
	return "no_repeat"
}

// ParseDrawPolicy parses a configured draw policy name.
func ParseDrawPolicy(s string) (DrawPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no_repeat", "no-repeat":
		return NoRepeat, nil
	case "with_replacement", "with-replacement", "repeat":
		return WithReplacement, nil
	default:
		return NoRepeat, fmt.Errorf("unknown draw policy %q", s)
	}
}

// Deck is a finite pool of image refs split by label.
// It implements Source and is owned by exactly one State.
type Deck struct {
	policy DrawPolicy
	rng    *rand.Rand
	pools  map[domain.Label][]domain.ImageRef
}

// NewDeck builds a deck from refs. The rng is shared with the Manager.
func NewDeck(refs []domain.ImageRef, policy DrawPolicy, rng *rand.Rand) *Deck {
	d := &Deck{
		policy: policy,
		rng:    rng,
		pools:  make(map[domain.Label][]domain.ImageRef, len(domain.Labels)),
	}
	for _, ref := range refs {
		d.pools[ref.Label] = append(d.pools[ref.Label], ref)
	}
	return d
}

// Available returns how many images of label can still be drawn.
func (d *Deck) Available(label domain.Label) int {
	return len(d.pools[label])
}

// Draw picks a random image of label. Under NoRepeat it is removed from the deck.
func (d *Deck) Draw(_ context.Context, label domain.Label) (domain.ImageRef, error) {
	pool := d.pools[label]
	if len(pool) == 0 {
		return domain.ImageRef{}, fmt.Errorf("draw %s image: %w", label, domain.ErrImageNotAvailable)
	}

	i := d.rng.IntN(len(pool))
	ref := pool[i]
	if d.policy == NoRepeat {
		last := len(pool) - 1
		pool[i] = pool[last]
		d.pools[label] = pool[:last]
	}
	return ref, nil
}

// Putback returns a drawn ref that never made it into a round.
func (d *Deck) Putback(ref domain.ImageRef) {
	if d.policy == WithReplacement {
		return
	}
	d.pools[ref.Label] = append(d.pools[ref.Label], ref)
}
