package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoringClientScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/score", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var signal scoring.Signal
		require.NoError(t, json.NewDecoder(r.Body).Decode(&signal))
		assert.Equal(t, "l1", signal.LoadID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scoring.Assessment{RiskLevel: scoring.RiskLow, RiskScore: 3, Recommendation: scoring.RecommendApprove})
	}))
	defer srv.Close()

	client := NewScoringClient(&config.ScoringConfig{Url: srv.URL + "/", Timeout: 500})
	a, err := client.Score(context.Background(), scoring.Signal{LoadID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, scoring.RiskLow, a.RiskLevel)
	assert.Equal(t, 3, a.RiskScore)
}

func TestScoringClientErrorsFallBack(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	for name, url := range map[string]string{"timeout": slow.URL, "server error": failing.URL} {
		t.Run(name, func(t *testing.T) {
			client := NewScoringClient(&config.ScoringConfig{Url: url, Timeout: 50})

			_, err := client.Score(context.Background(), scoring.Signal{LoadID: "l1"})
			assert.Error(t, err)

			a, err := scoring.WithFallback(client).Score(context.Background(), scoring.Signal{LoadID: "l1"})
			require.NoError(t, err)
			assert.True(t, a.Fallback)
		})
	}
}
