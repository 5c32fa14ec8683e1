package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/digital-store/internal/resilience"
)

// DefaultViaCEPBaseURL is the public ViaCEP endpoint.
const DefaultViaCEPBaseURL = "https://viacep.com.br"

var (
	// ErrCepNotFound is returned when the postal code is well formed but unknown.
	ErrCepNotFound = errors.New("postal code not found")
	// ErrNetwork covers transport failures, upstream errors and undecodable responses.
	ErrNetwork = errors.New("postal code lookup unavailable")
)

// Address is the destination resolved for a postal code.
type Address struct {
	PostalCode string `json:"postalCode"`
	Street     string `json:"street"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

// String renders the address on one line, the way it is stored on an order.
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.District} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch {
	case a.City != "" && a.State != "":
		parts = append(parts, a.City+"/"+a.State)
	case a.State != "":
		parts = append(parts, a.State)
	}
	if a.PostalCode != "" {
		parts = append(parts, "CEP "+FormatPostalCode(a.PostalCode))
	}
	return strings.Join(parts, ", ")
}

// AddressLookup resolves a normalised postal code into an address.
type AddressLookup interface {
	Lookup(ctx context.Context, postalCode string) (Address, error)
}

// ViaCEPClient queries the ViaCEP JSON API.
type ViaCEPClient struct {
	BaseURL string
	HTTP    resilience.HTTPClient
}

// NewViaCEPClient builds a client with a traced transport, per-attempt timeout and retries.
// The breaker may be nil.
func NewViaCEPClient(baseURL string, timeout time.Duration, breaker *resilience.Breaker) *ViaCEPClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultViaCEPBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ViaCEPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

type viaCEPResponse struct {
	CEP        string   `json:"cep"`
	Logradouro string   `json:"logradouro"`
	Bairro     string   `json:"bairro"`
	Localidade string   `json:"localidade"`
	UF         string   `json:"uf"`
	Erro       flagBool `json:"erro"`
}

// flagBool accepts both true and "true"; ViaCEP has served either.
type flagBool bool

func (f *flagBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Lookup fetches the address for a postal code. Masked input is accepted.
func (c *ViaCEPClient) Lookup(ctx context.Context, postalCode string) (Address, error) {
	cep, err := NormalizePostalCode(postalCode)
	if err != nil {
		return Address{}, err
	}
	endpoint := fmt.Sprintf("%s/ws/%s/json/", strings.TrimRight(c.BaseURL, "/"), cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Address{}, fmt.Errorf("build viacep request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Address{}, ctxErr
		}
		return Address{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return Address{}, ErrCepNotFound
	case resp.StatusCode != http.StatusOK:
		return Address{}, fmt.Errorf("%w: upstream responded %s", ErrNetwork, resp.Status)
	}

	var payload viaCEPResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("%w: decode response: %w", ErrNetwork, err)
	}
	if payload.Erro {
		return Address{}, ErrCepNotFound
	}
	return Address{
		PostalCode: cep,
		Street:     strings.TrimSpace(payload.Logradouro),
		District:   strings.TrimSpace(payload.Bairro),
		City:       strings.TrimSpace(payload.Localidade),
		State:      strings.ToUpper(strings.TrimSpace(payload.UF)),
	}, nil
}
