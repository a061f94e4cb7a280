package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPOracle asks a remote model. The endpoint receives {"text": ...} and
// answers with a body containing TRUE for a scam and FALSE otherwise.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle builds an oracle for url. Timeouts come from the caller's context.
func NewHTTPOracle(url string, client *http.Client) *HTTPOracle {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPOracle{url: url, client: client}
}

func (o *HTTPOracle) Classify(ctx context.Context, text string) (bool, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false, err
	}
	if resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("classifier returned %d", resp.StatusCode)
	}
	return strings.Contains(strings.ToUpper(string(raw)), "TRUE"), nil
}
