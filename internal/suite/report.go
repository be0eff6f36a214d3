package suite

import (
	"fmt"
	"time"

	"seadog/internal/model"
)

// Pass threshold and quality weighting for the suite verdict. Quality blends
// the mean validation score with the raw scenario success rate, score first.
const (
	passSuccessRate = 0.8
	scoreWeight     = 0.7
	rateWeight      = 0.3

	maxFindings        = 10
	maxRecommendations = 10
)

// BuildReport aggregates scenario results into the suite report.
func BuildReport(execID string, cfg model.SuiteConfig, start, end time.Time, results []model.ScenarioResult) model.SuiteReport {
	metrics := computeSuiteMetrics(results, end.Sub(start))
	return model.SuiteReport{
		ExecutionID: execID,
		SuiteType:   cfg.SuiteType,
		StartTime:   start,
		EndTime:     end,
		Parallel:    cfg.Parallel,
		Config:      cfg,
		Metrics:     metrics,
		Scenarios:   results,
		Summary:     summarize(metrics, results),
	}
}

func computeSuiteMetrics(results []model.ScenarioResult, wall time.Duration) model.SuiteMetrics {
	m := model.SuiteMetrics{
		TotalScenarios:   len(results),
		TotalDurationSec: wall.Seconds(),
	}
	if len(results) == 0 {
		return m
	}

	var scoreSum float64
	var scored int
	for _, r := range results {
		if r.Status == model.ScenarioCompleted {
			m.SuccessfulScenarios++
		} else {
			m.FailedScenarios++
		}
		if score, ok := r.QualityScore(); ok {
			scoreSum += score
			scored++
		}
	}
	m.SuccessRate = float64(m.SuccessfulScenarios) / float64(m.TotalScenarios)
	m.AvgScenarioSec = m.TotalDurationSec / float64(m.TotalScenarios)
	if scored > 0 {
		m.OverallScore = scoreSum / float64(scored)
	} else {
		m.OverallScore = m.SuccessRate
	}
	return m
}

func summarize(metrics model.SuiteMetrics, results []model.ScenarioResult) model.SuiteSummary {
	verdict := model.VerdictFailed
	if metrics.TotalScenarios > 0 && metrics.SuccessRate >= passSuccessRate {
		verdict = model.VerdictPassed
	}

	quality := scoreWeight*metrics.OverallScore + rateWeight*metrics.SuccessRate
	return model.SuiteSummary{
		Verdict:         verdict,
		Quality:         qualityLabel(quality),
		KeyFindings:     collectFindings(metrics, results),
		Recommendations: collectRecommendations(results),
	}
}

func qualityLabel(q float64) model.QualityLabel {
	switch {
	case q >= 0.9:
		return model.QualityExcellent
	case q >= 0.8:
		return model.QualityGood
	case q >= 0.6:
		return model.QualityAcceptable
	case q >= 0.4:
		return model.QualityPoor
	default:
		return model.QualityCritical
	}
}

func collectFindings(metrics model.SuiteMetrics, results []model.ScenarioResult) []string {
	var findings []string
	add := func(f string) {
		if len(findings) < maxFindings {
			findings = append(findings, f)
		}
	}

	add(fmt.Sprintf("%d of %d scenarios completed (%.0f%%)",
		metrics.SuccessfulScenarios, metrics.TotalScenarios, metrics.SuccessRate*100))

	for _, r := range results {
		switch r.Status {
		case model.ScenarioFailed:
			cause := "unknown cause"
			if v, ok := r.ValidationResults["error"].(string); ok {
				cause = v
			}
			add(fmt.Sprintf("scenario %s (%s) failed: %s", r.ScenarioID, r.Type, cause))
		case model.ScenarioAborted:
			add(fmt.Sprintf("scenario %s (%s) aborted before completion", r.ScenarioID, r.Type))
		default:
			if len(r.ObjectivesFailed) > 0 {
				add(fmt.Sprintf("scenario %s completed with %d unmet objective(s)", r.ScenarioID, len(r.ObjectivesFailed)))
			}
		}
	}
	return findings
}

func collectRecommendations(results []model.ScenarioResult) []string {
	var recs []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, rec := range r.Recommendations {
			if seen[rec] || len(recs) >= maxRecommendations {
				continue
			}
			seen[rec] = true
			recs = append(recs, rec)
		}
	}
	return recs
}
