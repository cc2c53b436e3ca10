package predict

import (
	"math"
	"sort"
	"time"

	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/severity"
)

// Candidate is one disease with the primary model's confidence in percent.
type Candidate struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// Result is the outcome of one prediction. It is built once per request and
// not modified afterwards.
type Result struct {
	PrimaryPrediction    string         `json:"primary_prediction"`
	Confidence           float64        `json:"confidence"`
	Top3Predictions      []Candidate    `json:"top3_predictions"`
	RFPrediction         string         `json:"rf_prediction"`
	NBPrediction         string         `json:"nb_prediction"`
	SVMPrediction        string         `json:"svm_prediction"`
	Description          string         `json:"description"`
	Precautions          []string       `json:"precautions"`
	SeverityScore        float64        `json:"severity_score"`
	RiskLevel            severity.Level `json:"risk_level"`
	RiskCategory         string         `json:"risk_category"`
	SymptomsEntered      []string       `json:"symptoms_entered"`
	ModelAgreement       int            `json:"model_agreement"`
	UnrecognizedSymptoms []string       `json:"unrecognized_symptoms"`
	PredictedAt          time.Time      `json:"predicted_at"`
}

// TopK is the number of candidates reported.
const TopK = 3

// Percent converts a probability to a percentage rounded to two decimals.
func Percent(p float64) float64 {
	return math.Round(p*100*100) / 100
}

// TopCandidates returns up to k classes by descending probability. Equal
// probabilities keep class-code order.
func TopCandidates(proba []float64, labels *model.LabelEncoder, k int) ([]Candidate, error) {
	idx := make([]int, len(proba))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return proba[idx[a]] > proba[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	out := make([]Candidate, 0, len(idx))
	for _, i := range idx {
		name, err := labels.Decode(i)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{Disease: name, Confidence: Percent(proba[i])})
	}
	return out, nil
}

// Agreement counts the pairwise equal labels among the three models.
func Agreement(rf, nb, svm string) int {
	n := 0
	if rf == nb {
		n++
	}
	if rf == svm {
		n++
	}
	if nb == svm {
		n++
	}
	return n
}
