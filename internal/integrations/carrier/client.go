package carrier

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VaultTrack/internal/models"
)

var ErrUnknownProvider = errors.New("unknown tracking provider")

// Client asks a provider for the current state of one shipment.
type Client interface {
	GetTracking(ctx context.Context, sh *models.Shipment) (models.CanonicalUpdate, error)
}

// Adapter turns a provider webhook body into canonical updates. Entries
// without a tracking code are skipped, so an empty result with a nil error is
// a valid answer (verification pings and the like).
type Adapter interface {
	Provider() string
	Normalize(payload []byte) ([]models.CanonicalUpdate, error)
}

// Registry picks a Client by the shipment's provider.
type Registry map[string]Client

func (r Registry) For(provider string) (Client, error) {
	c, ok := r[strings.ToLower(provider)]
	if !ok || c == nil {
		return nil, errors.Wrap(ErrUnknownProvider, provider)
	}
	return c, nil
}

func (r Registry) Providers() []string {
	out := make([]string, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ParseTime accepts the timestamp layouts seen in carrier payloads. Empty or
// unparseable input yields nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"02-01-2006 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
