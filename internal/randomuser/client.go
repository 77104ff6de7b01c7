// Package randomuser fetches demo contacts from the randomuser.me API and maps them to contacts.
package randomuser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// DefaultBaseURL is the public randomuser.me endpoint.
const DefaultBaseURL = "https://randomuser.me"

// BatchSize is the number of contacts requested per fetch.
const BatchSize = 10

// ErrUnexpectedStatus is returned when the API answers with a non-2xx status code.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// HTTPDoer is the part of http.Client the adapter needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the randomuser.me API.
type Client struct {
	baseURL string
	client  HTTPDoer
}

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// response mirrors the parts of the API response that we use.
type response struct {
	Results []person `json:"results"`
}

type person struct {
	Gender string `json:"gender"`
	Name   struct {
		First string `json:"first"`
		Last  string `json:"last"`
	} `json:"name"`
	Login struct {
		UUID string `json:"uuid"`
	} `json:"login"`
	Dob struct {
		Date string `json:"date"`
		Age  int    `json:"age"`
	} `json:"dob"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Nat      string `json:"nat"`
	Location struct {
		Street struct {
			Number int    `json:"number"`
			Name   string `json:"name"`
		} `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"location"`
	Picture struct {
		Large string `json:"large"`
	} `json:"picture"`
}

// FetchBatch performs a single request for a batch of demo persons and maps them to contacts.
func (c *Client) FetchBatch(ctx context.Context) ([]model.Contact, error) {
	url := fmt.Sprintf("%s/api/?results=%d", c.baseURL, BatchSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, res.StatusCode)
	}

	var body response
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	contacts := make([]model.Contact, 0, len(body.Results))
	for _, p := range body.Results {
		contacts = append(contacts, p.toContact())
	}
	return contacts, nil
}

func (p person) toContact() model.Contact {
	return model.Contact{
		UUID:        p.Login.UUID,
		FirstName:   p.Name.First,
		LastName:    p.Name.Last,
		BirthDate:   p.Dob.Date,
		Phone:       p.Phone,
		PhotoURL:    p.Picture.Large,
		Email:       p.Email,
		Nationality: p.Nat,
		Gender:      p.Gender,
		Age:         p.Dob.Age,
		Street:      fmt.Sprintf("%d %s", p.Location.Street.Number, p.Location.Street.Name),
		City:        p.Location.City,
		State:       p.Location.State,
		Country:     p.Location.Country,
	}
}
