package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleServer(t *testing.T, status int, reply string, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["text"])
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPOracleParsesVerdict(t *testing.T) {
	scam, err := NewHTTPOracle(oracleServer(t, http.StatusOK, " true\n", 0).URL, nil).Classify(context.Background(), "gift card pls")
	require.NoError(t, err)
	assert.True(t, scam)

	scam, err = NewHTTPOracle(oracleServer(t, http.StatusOK, "FALSE", 0).URL, nil).Classify(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, scam)
}

func TestHTTPOracleErrorStatus(t *testing.T) {
	_, err := NewHTTPOracle(oracleServer(t, http.StatusBadGateway, "TRUE", 0).URL, nil).Classify(context.Background(), "x")
	assert.Error(t, err)
}

func TestHTTPOracleTimeout(t *testing.T) {
	srv := oracleServer(t, http.StatusOK, "TRUE", time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPOracle(srv.URL, nil).Classify(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
