// Package imagesource supplies labelled face images to games.
package imagesource

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
)

// ErrUnknownImage is returned by Open for IDs the provider never issued.
var ErrUnknownImage = errors.New("unknown image")

// Blob is raw image bytes with their MIME type.
type Blob struct {
	Data        []byte
	ContentType string
}

// Provider backs every session's deck and serves image bytes by ID.
type Provider interface {
	// NewDeck returns a fresh per-session image source.
	NewDeck(policy game.DrawPolicy, rng *rand.Rand) game.Source
	// Open returns the bytes of an image previously handed out by a deck.
	Open(ctx context.Context, id string) (*Blob, error)
	// Counts reports the pool size per label; game.Unlimited for remote pools.
	Counts() map[domain.Label]int
	// Warnings lists non-fatal problems found while preparing the pool.
	Warnings() []string
}
