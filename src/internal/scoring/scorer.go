package scoring

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
)

// Risk levels
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Recommendations
const (
	RecommendApprove = "APPROVE"
	RecommendReview  = "REVIEW"
	RecommendBlock   = "BLOCK"
)

// Signal describes an acceptance about to be committed.
type Signal struct {
	LoadID       string  `json:"loadId"`
	OwnerID      string  `json:"ownerId"`
	CustomerID   string  `json:"customerId"`
	Amount       float64 `json:"amount"`
	Weight       float64 `json:"weight"`
	TripDistance float64 `json:"tripDistance"`
	IsNewUser    bool    `json:"isNewUser"`
}

type Assessment struct {
	RiskLevel      string   `json:"riskLevel"`
	RiskScore      int      `json:"riskScore"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"`
	Fallback       bool     `json:"fallback,omitempty"`
}

// Meta flattens the assessment for an audit entry.
func (a *Assessment) Meta() map[string]any {
	meta := map[string]any{
		"riskLevel":      a.RiskLevel,
		"riskScore":      a.RiskScore,
		"recommendation": a.Recommendation,
	}
	if a.Fallback {
		meta["scoringFallback"] = true
	}
	return meta
}

type Scorer interface {
	Score(ctx context.Context, signal Signal) (*Assessment, error)
}

// Neutral is returned whenever scoring is unavailable. It never blocks an acceptance.
func Neutral() *Assessment {
	return &Assessment{
		RiskLevel:      RiskMedium,
		RiskScore:      50,
		Flags:          []string{"scoring unavailable, manual review suggested"},
		Recommendation: RecommendReview,
		Fallback:       true,
	}
}

type fallbackScorer struct {
	next Scorer
}

// WithFallback wraps a scorer so that errors, panics and nil results degrade to Neutral.
func WithFallback(next Scorer) Scorer {
	return &fallbackScorer{next: next}
}

func (f *fallbackScorer) Score(ctx context.Context, signal Signal) (assessment *Assessment, err error) {
	if f.next == nil {
		return Neutral(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("load_id", signal.LoadID).Errorf("Scorer panicked: %v", r)
			assessment, err = Neutral(), nil
		}
	}()

	result, scoreErr := f.next.Score(ctx, signal)
	if scoreErr != nil || result == nil {
		logrus.WithError(scoreErr).WithField("load_id", signal.LoadID).Warn("Risk scoring failed, using neutral assessment")
		return Neutral(), nil
	}
	return result, nil
}

type ruleScorer struct{}

// Rules is a local weighted-rule scorer used when no remote scoring service is configured.
func Rules() Scorer {
	return ruleScorer{}
}

func (ruleScorer) Score(_ context.Context, signal Signal) (*Assessment, error) {
	score := 0
	var flags []string

	if signal.IsNewUser && signal.Amount > 50000 {
		score += 25
		flags = append(flags, "high-value load from new account")
	}
	if signal.TripDistance > 0 && signal.Amount/signal.TripDistance > 200 {
		score += 15
		flags = append(flags, "price-per-km ratio is abnormally high")
	}
	if signal.Weight > 0 && signal.Amount/signal.Weight > 10000 {
		score += 10
		flags = append(flags, "price-per-ton ratio is abnormally high")
	}
	score = int(math.Min(100, float64(score)))

	a := &Assessment{RiskScore: score, Flags: flags}
	switch {
	case score >= 70:
		a.RiskLevel, a.Recommendation = RiskCritical, RecommendBlock
	case score >= 45:
		a.RiskLevel, a.Recommendation = RiskHigh, RecommendReview
	case score >= 20:
		a.RiskLevel, a.Recommendation = RiskMedium, RecommendReview
	default:
		a.RiskLevel, a.Recommendation = RiskLow, RecommendApprove
	}
	return a, nil
}
