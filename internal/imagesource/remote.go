package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/google/uuid"
)

// Default remote endpoints. RealURL takes the picsum seed.
const (
	DefaultAIURL   = "https://thispersondoesnotexist.com/image"
	DefaultRealURL = "https://picsum.photos/seed/%d/400/300"

	maxSeed       = 99999
	maxImageBytes = 10 << 20
)

// RemoteConfig configures a Remote provider.
type RemoteConfig struct {
	AIURL      string
	RealURL    string // fmt pattern with one %d for the seed
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
	CacheSize  int
	Client     *http.Client
}

// DefaultRemoteConfig returns the stock endpoints with five attempts per image.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		AIURL:      DefaultAIURL,
		RealURL:    DefaultRealURL,
		MaxRetries: 5,
		BaseDelay:  200 * time.Millisecond,
		Timeout:    10 * time.Second,
		CacheSize:  512,
	}
}

// Remote fetches a fresh image per draw and keeps the bytes in a bounded
// in-memory cache so the display surface can request them by ID.
type Remote struct {
	cfg    RemoteConfig
	client *http.Client

	mu    sync.Mutex
	cache map[string]*Blob
	order []string
}

// NewRemote creates a remote provider.
func NewRemote(cfg RemoteConfig) *Remote {
	def := DefaultRemoteConfig()
	if cfg.AIURL == "" {
		cfg.AIURL = def.AIURL
	}
	if cfg.RealURL == "" {
		cfg.RealURL = def.RealURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Remote{
		cfg:    cfg,
		client: client,
		cache:  make(map[string]*Blob),
	}
}

// NewDeck returns an unlimited per-session source.
func (r *Remote) NewDeck(_ game.DrawPolicy, rng *rand.Rand) game.Source {
	return &remoteDeck{remote: r, rng: rng}
}

// Open returns cached bytes for id.
func (r *Remote) Open(_ context.Context, id string) (*Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.cache[id]
	if !ok {
		return nil, ErrUnknownImage
	}
	return b, nil
}

// Counts reports both pools as unlimited.
func (r *Remote) Counts() map[domain.Label]int {
	return map[domain.Label]int{
		domain.LabelAI:   game.Unlimited,
		domain.LabelReal: game.Unlimited,
	}
}

// Warnings is always empty for remote pools; failures surface per draw.
func (r *Remote) Warnings() []string {
	return nil
}

func (r *Remote) urlFor(label domain.Label, rng *rand.Rand) string {
	if label == domain.LabelAI {
		return r.cfg.AIURL
	}
	seed := rng.IntN(maxSeed) + 1
	if strings.Contains(r.cfg.RealURL, "%") {
		return fmt.Sprintf(r.cfg.RealURL, seed)
	}
	return r.cfg.RealURL
}

// fetchWithRetry downloads url with exponential backoff between attempts.
func (r *Remote) fetchWithRetry(ctx context.Context, url string) (*Blob, error) {
	var lastErr error
	for i := 0; i < r.cfg.MaxRetries; i++ {
		blob, err := r.fetch(ctx, url)
		if err == nil {
			return blob, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < r.cfg.MaxRetries-1 {
			delay := r.cfg.BaseDelay * time.Duration(1<<i)
			slog.Debug("Image fetch failed, retrying",
				"url", url,
				"attempt", i+1,
				"delay", delay,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch %s: %w: %w", url, domain.ErrImageNotAvailable, ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w: %w", url, r.cfg.MaxRetries, domain.ErrImageNotAvailable, lastErr)
}

func (r *Remote) fetch(ctx context.Context, url string) (*Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "deepfake-defender/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close response body", "url", url, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %s", ct)
	}
	return &Blob{Data: data, ContentType: ct}, nil
}

func (r *Remote) store(id string, b *Blob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[id] = b
	r.order = append(r.order, id)
	for len(r.order) > r.cfg.CacheSize {
		delete(r.cache, r.order[0])
		r.order = r.order[1:]
	}
}

type remoteDeck struct {
	remote *Remote
	rng    *rand.Rand
}

func (d *remoteDeck) Draw(ctx context.Context, label domain.Label) (domain.ImageRef, error) {
	url := d.remote.urlFor(label, d.rng)
	blob, err := d.remote.fetchWithRetry(ctx, url)
	if err != nil {
		slog.Warn("Remote image unavailable", "label", label.String(), "error", err)
		return domain.ImageRef{}, err
	}

	ref := domain.ImageRef{ID: uuid.NewString(), Label: label}
	d.remote.store(ref.ID, blob)
	return ref, nil
}

func (d *remoteDeck) Available(domain.Label) int {
	return game.Unlimited
}
