// Package osm provides best-effort reverse geocoding through Nominatim.
// Results only pre-fill optional address fields on reports; ward resolution
// never depends on them.
package osm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	// UserAgent is required by Nominatim usage policy
	UserAgent = "CivicReports/1.0"
	// Rate limit: 1 request per second for Nominatim
	minRequestInterval = time.Second
)

// Client handles Nominatim interactions with rate limiting
type Client struct {
	baseURL       string
	httpClient    *http.Client
	lastRequest   time.Time
	rateLimitLock sync.Mutex
}

// NewClient creates a new reverse-geocoding client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Address is the best-effort street/locality guess used to pre-fill report
// address fields.
type Address struct {
	Building     string `json:"building"`
	Street       string `json:"street"`
	Locality     string `json:"locality"`
	PropertyType string `json:"property_type"`
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Class       string `json:"class"`
	Name        string `json:"name"`
	Address     struct {
		Amenity       string `json:"amenity"`
		Building      string `json:"building"`
		HouseNumber   string `json:"house_number"`
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

// ReverseGeocode looks up the address at the given coordinates.
func (c *Client) ReverseGeocode(lat, lon float64) (*Address, error) {
	c.waitForRateLimit()

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())
	req, err := http.NewRequest("GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call nominatim: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned %d", resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return addressFromResponse(&nr), nil
}

func addressFromResponse(nr *nominatimResponse) *Address {
	addr := &Address{
		Street:       nr.Address.Road,
		PropertyType: nr.Type,
	}
	if nr.Address.Building != "" {
		addr.Building = nr.Address.Building
	} else if nr.Address.Amenity != "" {
		addr.Building = nr.Address.Amenity
	} else if nr.Name != "" {
		addr.Building = nr.Name
	}
	switch {
	case nr.Address.Suburb != "":
		addr.Locality = nr.Address.Suburb
	case nr.Address.Neighbourhood != "":
		addr.Locality = nr.Address.Neighbourhood
	case nr.Address.City != "":
		addr.Locality = nr.Address.City
	case nr.Address.Town != "":
		addr.Locality = nr.Address.Town
	case nr.Address.Village != "":
		addr.Locality = nr.Address.Village
	}
	return addr
}

func (c *Client) waitForRateLimit() {
	c.rateLimitLock.Lock()
	defer c.rateLimitLock.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < minRequestInterval {
		time.Sleep(minRequestInterval - elapsed)
	}
	c.lastRequest = time.Now()
}
