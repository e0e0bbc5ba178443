// Package countries resolves the dialing-code directory shown on the login
// screen. The remote directory is best-effort: any fetch or decode failure
// degrades to a hard-coded fallback list, and results are cached for the
// lifetime of the directory.
package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avendal/go-chatroom-backend/internal/domain"
)

// DefaultEndpoint serves name + international dialing data per country.
const DefaultEndpoint = "https://restcountries.com/v3.1/all?fields=name,idd"

// Directory lists countries with their dialing codes. Implementations must
// never fail: a lookup problem yields the fallback list.
type Directory interface {
	List(ctx context.Context) []domain.Country
}

// Fallback is the static directory used when the remote lookup is
// unavailable.
var Fallback = []domain.Country{
	{Name: "India", DialCode: "+91"},
	{Name: "United States", DialCode: "+1"},
	{Name: "United Kingdom", DialCode: "+44"},
	{Name: "Canada", DialCode: "+1"},
	{Name: "Australia", DialCode: "+61"},
	{Name: "Germany", DialCode: "+49"},
	{Name: "France", DialCode: "+33"},
	{Name: "Brazil", DialCode: "+55"},
	{Name: "Japan", DialCode: "+81"},
	{Name: "South Korea", DialCode: "+82"},
}

// restCountry mirrors the subset of the remote payload we read.
type restCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	IDD struct {
		Root     string   `json:"root"`
		Suffixes []string `json:"suffixes"`
	} `json:"idd"`
}

// REST fetches the directory over HTTP once and caches the result.
type REST struct {
	Endpoint string
	Client   *http.Client
	Log      zerolog.Logger

	once   sync.Once
	cached []domain.Country
}

// NewREST returns a Directory backed by the public endpoint with a bounded
// client timeout.
func NewREST(log zerolog.Logger) *REST {
	return &REST{
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Log:      log,
	}
}

// List returns the fetched directory, or Fallback when the fetch failed.
func (r *REST) List(ctx context.Context) []domain.Country {
	r.once.Do(func() {
		list, err := r.fetch(ctx)
		if err != nil {
			r.Log.Warn().Err(err).Msg("country lookup failed, using fallback")
			list = Fallback
		}
		r.cached = list
	})
	return r.cached
}

func (r *REST) fetch(ctx context.Context) ([]domain.Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("country lookup: unexpected status %d", resp.StatusCode)
	}

	var raw []restCountry
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]domain.Country, 0, len(raw))
	for _, c := range raw {
		if c.Name.Common == "" || c.IDD.Root == "" || len(c.IDD.Suffixes) == 0 {
			continue
		}
		out = append(out, domain.Country{
			Name:     c.Name.Common,
			DialCode: c.IDD.Root + c.IDD.Suffixes[0],
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("country lookup: empty directory")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Static is a Directory over a fixed list; useful for tests and offline runs.
type Static []domain.Country

// List returns the fixed list.
func (s Static) List(context.Context) []domain.Country { return s }
