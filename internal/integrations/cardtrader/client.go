// Package cardtrader reads the card catalog and marketplace listings from the
// CardTrader v2 API.
package cardtrader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/BearBump/VaultTrack/internal/models"
)

const (
	DefaultBaseURL = "https://api.cardtrader.com/api/v2"

	// PokemonGameID is the CardTrader game id for the Pokémon TCG.
	PokemonGameID = 5

	siteURL = "https://www.cardtrader.com"
)

type Client struct {
	baseURL string
	token   string
	gameID  int
	httpc   *http.Client
	now     func() time.Time
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		gameID:  PokemonGameID,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// WithGame limits Expansions to one game; 0 returns every game.
func (c *Client) WithGame(id int) *Client {
	c.gameID = id
	return c
}

type expansion struct {
	ID     int    `json:"id"`
	GameID int    `json:"game_id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

type blueprint struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Version         string `json:"version"`
	GameID          int    `json:"game_id"`
	CategoryID      int    `json:"category_id"`
	ExpansionID     int    `json:"expansion_id"`
	ImageURL        string `json:"image_url"`
	FixedProperties struct {
		CollectorNumber string `json:"collector_number"`
		Rarity          string `json:"pokemon_rarity"`
	} `json:"fixed_properties"`
	Expansion *expansion `json:"expansion,omitempty"`
}

type product struct {
	ID          int `json:"id"`
	BlueprintID int `json:"blueprint_id"`
	Quantity    int `json:"quantity"`
	Price       struct {
		Cents    int64  `json:"cents"`
		Currency string `json:"currency"`
	} `json:"price"`
}

func (c *Client) Expansions(ctx context.Context) ([]models.Expansion, error) {
	var raw []expansion
	if err := c.get(ctx, "/expansions", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Expansion, 0, len(raw))
	for _, e := range raw {
		if c.gameID != 0 && e.GameID != c.gameID {
			continue
		}
		out = append(out, models.Expansion{ID: e.ID, GameID: e.GameID, Code: e.Code, Name: e.Name})
	}
	return out, nil
}

// Blueprints returns every catalog entry of one expansion.
func (c *Client) Blueprints(ctx context.Context, exp models.Expansion) ([]models.CatalogEntry, error) {
	var raw []blueprint
	q := url.Values{"expansion_id": {strconv.Itoa(exp.ID)}}
	if err := c.get(ctx, "/blueprints/export", q, &raw); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	out := make([]models.CatalogEntry, 0, len(raw))
	for _, b := range raw {
		if b.ID == 0 {
			continue
		}
		out = append(out, models.CatalogEntry{
			BlueprintID:     strconv.Itoa(b.ID),
			Name:            b.Name,
			Kind:            kindOf(b),
			GameID:          b.GameID,
			ExpansionID:     exp.ID,
			ExpansionCode:   exp.Code,
			ExpansionName:   exp.Name,
			CollectorNumber: b.FixedProperties.CollectorNumber,
			Rarity:          b.FixedProperties.Rarity,
			ImageURL:        absoluteURL(b.ImageURL),
			UpdatedAt:       now,
		})
	}
	return out, nil
}

// CheapestPrices returns the lowest listed price per blueprint of one
// expansion. Blueprints without listings are absent.
func (c *Client) CheapestPrices(ctx context.Context, expansionID int) ([]models.PriceUpdate, error) {
	var raw map[string][]product
	q := url.Values{"expansion_id": {strconv.Itoa(expansionID)}}
	if err := c.get(ctx, "/marketplace/products", q, &raw); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	out := make([]models.PriceUpdate, 0, len(raw))
	for id, listings := range raw {
		var best *product
		count := 0
		for i := range listings {
			p := &listings[i]
			if p.Price.Cents <= 0 {
				continue
			}
			count++
			if best == nil || p.Price.Cents < best.Price.Cents {
				best = p
			}
		}
		if best == nil {
			continue
		}
		out = append(out, models.PriceUpdate{
			BlueprintID: id,
			Price: models.MarketPrice{
				Amount:       decimal.New(best.Price.Cents, -2),
				Currency:     strings.ToUpper(best.Price.Currency),
				ListingCount: count,
				UpdatedAt:    now,
			},
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cardtrader GET %s: http %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}

// Singles carry a collector number; sealed product does not.
func kindOf(b blueprint) string {
	if b.FixedProperties.CollectorNumber != "" {
		return models.KindSingle
	}
	name := strings.ToLower(b.Name)
	switch {
	case strings.Contains(name, "booster box"), strings.Contains(name, "elite trainer"), strings.Contains(name, "bundle"):
		return models.KindBundle
	case strings.Contains(name, "booster"):
		return models.KindBooster
	}
	return models.KindOther
}

func absoluteURL(s string) string {
	if strings.HasPrefix(s, "/") {
		return siteURL + s
	}
	return s
}

// maxImageBytes bounds a downloaded card image.
const maxImageBytes = 8 << 20

// Image downloads a card image. CardTrader CDN URLs need no token.
func (c *Client) Image(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("image %s: http %d", imageURL, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	return b, nil
}
