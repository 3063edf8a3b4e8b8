// Package geocode defines the narrow contracts through which the ingest
// pipeline consumes reverse-geocoding and cell-tower location services.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fleet-track/ingestion/internal/domain"
)

// Address is the result of a reverse-geocode lookup. Blank fields were not
// resolved by the provider.
type Address struct {
	FullAddress   string
	StreetAddress string
	City          string
	StateProvince string
	PostalCode    string
	Country       string
	Subdivision   string
	SpeedLimitKPH float64
}

// ReverseGeocodeProvider resolves a point to an address. Providers
// self-classify their latency: a slow provider (remote web service) must
// return false from IsFastOperation so the pipeline can defer the lookup to
// a background worker instead of blocking the ingest call.
type ReverseGeocodeProvider interface {
	IsEnabled() bool
	IsFastOperation() bool
	Resolve(ctx context.Context, p domain.GeoPoint, locale string) (*Address, error)
}

// CellTowerLocator resolves mobile-network cell identifiers to an
// approximate location.
type CellTowerLocator interface {
	Locate(ctx context.Context, mcc, mnc, cellID, lac int) (*domain.GeoPoint, error)
}

// NopReverseGeocoder is the null provider: disabled, resolves nothing.
type NopReverseGeocoder struct{}

func (NopReverseGeocoder) IsEnabled() bool       { return false }
func (NopReverseGeocoder) IsFastOperation() bool { return true }
func (NopReverseGeocoder) Resolve(context.Context, domain.GeoPoint, string) (*Address, error) {
	return nil, nil
}

// NopCellLocator is the null locator: resolves nothing.
type NopCellLocator struct{}

func (NopCellLocator) Locate(context.Context, int, int, int, int) (*domain.GeoPoint, error) {
	return nil, nil
}

// HTTPProvider reverse-geocodes through a Nominatim-compatible HTTP endpoint.
// It reports itself as a slow operation unless configured otherwise.
type HTTPProvider struct {
	baseURL string
	fast    bool
	client  *http.Client
}

func NewHTTPProvider(baseURL string, fast bool) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		fast:    fast,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) IsEnabled() bool       { return p.baseURL != "" }
func (p *HTTPProvider) IsFastOperation() bool { return p.fast }

func (p *HTTPProvider) Resolve(ctx context.Context, pt domain.GeoPoint, locale string) (*Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", pt.Latitude))
	q.Set("lon", fmt.Sprintf("%.6f", pt.Longitude))
	q.Set("accept-language", locale)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
		Address     struct {
			Road     string `json:"road"`
			City     string `json:"city"`
			Town     string `json:"town"`
			State    string `json:"state"`
			Postcode string `json:"postcode"`
			Country  string `json:"country_code"`
			County   string `json:"county"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reverse geocode decode failed: %w", err)
	}
	if body.DisplayName == "" {
		return nil, nil
	}

	city := body.Address.City
	if city == "" {
		city = body.Address.Town
	}
	return &Address{
		FullAddress:   body.DisplayName,
		StreetAddress: body.Address.Road,
		City:          city,
		StateProvince: body.Address.State,
		PostalCode:    body.Address.Postcode,
		Country:       body.Address.Country,
		Subdivision:   body.Address.County,
	}, nil
}

// HTTPCellLocator resolves cell identifiers through an OpenCellID-style
// HTTP endpoint.
type HTTPCellLocator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCellLocator(baseURL string) *HTTPCellLocator {
	return &HTTPCellLocator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *HTTPCellLocator) Locate(ctx context.Context, mcc, mnc, cellID, lac int) (*domain.GeoPoint, error) {
	q := url.Values{}
	q.Set("mcc", fmt.Sprint(mcc))
	q.Set("mnc", fmt.Sprint(mnc))
	q.Set("cellid", fmt.Sprint(cellID))
	q.Set("lac", fmt.Sprint(lac))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/cell/get?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cell lookup request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cell lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("cell lookup decode failed: %w", err)
	}
	pt := domain.GeoPoint{Latitude: body.Lat, Longitude: body.Lon}
	if !pt.Valid() {
		return nil, nil
	}
	return &pt, nil
}
