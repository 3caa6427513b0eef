package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// REST paths of the host contract. The host is the server; the engine is
// the client.
const (
	devicesInfoPath  = "/devices_info"
	devicesValuePath = "/devices_value"
	deviceSetPath    = "/device_set"
)

// Transport-level sentinels, distinguished so the refresh pass can tell an
// unreachable host from one that answered garbage.
var (
	errRequestFailed = errors.New("engine: host request failed")
	errInvalidBody   = errors.New("engine: invalid response body")
)

// responseSnippet is how much of an unparseable body is quoted in reports.
const responseSnippet = 120

// client speaks the host REST contract. There is no retry policy: each
// polling cycle re-attempts naturally on its next tick.
type client struct {
	http *http.Client
}

func newClient(h *http.Client) *client {
	if h == nil {
		h = &http.Client{}
	}
	return &client{http: h}
}

type inventoryDevice struct {
	Name *string `json:"name"`
}

type inventoryResponse struct {
	Devices *[]inventoryDevice `json:"devices"`
}

// fetchInventory retrieves the device inventory from a host. Order is
// preserved as reported by the host.
func (c *client) fetchInventory(ctx context.Context, hostURL string) ([]string, error) {
	body, err := c.get(ctx, hostURL+devicesInfoPath)
	if err != nil {
		return nil, err
	}

	var resp inventoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidBody, snippet(body))
	}
	if resp.Devices == nil {
		return nil, fmt.Errorf("%w: missing \"devices\" field", errInvalidBody)
	}

	names := make([]string, 0, len(*resp.Devices))
	for _, d := range *resp.Devices {
		if d.Name == nil {
			return nil, fmt.Errorf("%w: device entry with no name", errInvalidBody)
		}
		names = append(names, *d.Name)
	}
	return names, nil
}

// valueEntry is one device entry of a values response. Pointer fields
// distinguish a missing field from an empty one; structural validation
// depends on presence, not content.
type valueEntry struct {
	Name  *string `json:"name"`
	Value *string `json:"value"`
	Error *string `json:"error"`
}

type valuesResponse struct {
	Error   *string       `json:"error"`
	Devices *[]valueEntry `json:"devices"`
}

// fetchValues retrieves current device values from a host. A transport
// failure wraps errRequestFailed; a body that is not valid JSON wraps
// errInvalidBody. Structural validation of the parsed response is the
// caller's job.
func (c *client) fetchValues(ctx context.Context, hostURL string) (*valuesResponse, error) {
	body, err := c.get(ctx, hostURL+devicesValuePath)
	if err != nil {
		return nil, err
	}

	var resp valuesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidBody, snippet(body))
	}
	return &resp, nil
}

// writeDevice serializes {name, value} and issues the remote write. The
// returned string is the host's reported failure ("" on success): either a
// parsed "error" field or a note about an unparseable body. Only transport
// failures are returned as errors; this is a fire-and-report operation.
func (c *client) writeDevice(ctx context.Context, hostURL, name, value string) (string, error) {
	payload, err := json.Marshal(map[string]string{"name": name, "value": value})
	if err != nil {
		return "", fmt.Errorf("marshalling write payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, hostURL+deviceSetPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", errRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errRequestFailed, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errRequestFailed, err)
	}

	// An empty body is a successful write with nothing to report.
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}

	var parsed struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Sprintf("invalid response body: %s", snippet(body)), nil
	}
	if parsed.Error != nil {
		return *parsed.Error, nil
	}
	return "", nil
}

// get issues a GET and returns the raw body. Transport failures wrap
// errRequestFailed; the body is returned regardless of status code, since
// hosts report failures in the payload rather than the status line.
func (c *client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRequestFailed, err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRequestFailed, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRequestFailed, err)
	}
	return body, nil
}

// snippet trims a response body for inclusion in an error message.
func snippet(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > responseSnippet {
		return s[:responseSnippet] + "..."
	}
	return s
}
