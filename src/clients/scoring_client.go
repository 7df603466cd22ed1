package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/scoring"

	"github.com/sirupsen/logrus"
)

// ScoringClient calls the external risk scoring service.
type ScoringClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewScoringClient(cfg *config.ScoringConfig) *ScoringClient {
	return &ScoringClient{
		baseURL: strings.TrimRight(cfg.Url, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
	}
}

// Score posts the signal to {baseURL}/score.
func (c *ScoringClient) Score(ctx context.Context, signal scoring.Signal) (*scoring.Assessment, error) {
	body, err := json.Marshal(signal)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call scoring service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring service returned status: %d", resp.StatusCode)
	}

	var assessment scoring.Assessment
	if err := json.NewDecoder(resp.Body).Decode(&assessment); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if assessment.RiskLevel == "" {
		return nil, fmt.Errorf("scoring service returned an empty assessment")
	}

	log.WithFields(logrus.Fields{
		"load_id":    signal.LoadID,
		"risk_level": assessment.RiskLevel,
		"risk_score": assessment.RiskScore,
	}).Debug("Risk assessment received")

	return &assessment, nil
}
