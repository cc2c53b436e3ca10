// Package fixture provides a tiny trained model set and data tables for
// tests: five symptoms, three diseases.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/symptom"
)

var (
	Symptoms = []string{"itching", "skin_rash", "fever", "joint_pain", "cough"}
	Diseases = []string{"Allergy", "Common Cold", "Fungal infection"}
)

const (
	SeverityCSV = "Symptom,weight\nitching,1\nskin_rash,3\nfever,5\njoint_pain,3\ncough,4\n"

	DescriptionsCSV = "Disease,Description\n" +
		"Fungal infection,In humans fungal infections occur when an invading fungus takes over an area of the body.\n" +
		"Common Cold,The common cold is a viral infection of the nose and throat.\n"

	PrecautionsCSV = "Disease,Precaution_1,Precaution_2,Precaution_3,Precaution_4\n" +
		"Fungal infection,bath twice,use detol or neem in bathing water,keep infected area dry,use clean cloths\n" +
		"Common Cold,drink vitamin c rich drinks,take vapour,avoid cold food,\n"
)

// Forest sends any itching or skin rash case to Fungal infection.
func Forest() *model.Forest {
	return &model.Forest{
		Features: len(Symptoms),
		Classes:  len(Diseases),
		Trees: []model.Tree{
			{Nodes: []model.TreeNode{
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
				{Feature: 2, Threshold: 0.5, Left: 3, Right: 4},
				{Feature: -1, Value: []float64{0, 1, 9}},
				{Feature: -1, Value: []float64{6, 2, 2}},
				{Feature: -1, Value: []float64{1, 7, 2}},
			}},
			{Nodes: []model.TreeNode{
				{Feature: 1, Threshold: 0.5, Left: 1, Right: 2},
				{Feature: -1, Value: []float64{5, 4, 1}},
				{Feature: -1, Value: []float64{1, 1, 8}},
			}},
		},
	}
}

// prototypes are the per-disease symptom centers used by the bayes and svm
// fixtures.
var prototypes = [][]float64{
	{0, 0, 0, 0, 1},
	{0, 0, 1, 0, 1},
	{1, 1, 0, 0, 0},
}

// Bayes picks the disease whose prototype is nearest.
func Bayes() *model.GaussianNB {
	nb := &model.GaussianNB{ClassPrior: []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}}
	for _, p := range prototypes {
		theta := append([]float64(nil), p...)
		variance := make([]float64, len(p))
		for i := range variance {
			variance[i] = 0.25
		}
		nb.Theta = append(nb.Theta, theta)
		nb.Var = append(nb.Var, variance)
	}
	return nb
}

// SVM votes for the disease whose prototype is nearest.
func SVM() *model.SVC {
	svs := make([][]float64, len(prototypes))
	for i, p := range prototypes {
		svs[i] = append([]float64(nil), p...)
	}
	return &model.SVC{
		Gamma:          0.5,
		SupportVectors: svs,
		NSupport:       []int{1, 1, 1},
		DualCoef: [][]float64{
			{1, -1, -1},
			{1, 1, -1},
		},
		Intercept: []float64{0, 0, 0},
	}
}

// Artifacts returns the in-memory model set.
func Artifacts() *model.Artifacts {
	vocab, err := symptom.NewVocabulary(Symptoms)
	if err != nil {
		panic(err)
	}
	labels, err := model.NewLabelEncoder(Diseases)
	if err != nil {
		panic(err)
	}
	return &model.Artifacts{
		Vocabulary: vocab,
		Labels:     labels,
		Forest:     Forest(),
		Bayes:      Bayes(),
		SVM:        SVM(),
	}
}

// WriteModels writes the model set to dir in the on-disk artifact layout.
func WriteModels(dir string) error {
	files := map[string]any{
		model.VocabularyFile:   Symptoms,
		model.LabelEncoderFile: map[string]any{"classes": Diseases},
	}
	for name, v := range files {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	models := map[string]model.Classifier{
		model.ForestFile: Forest(),
		model.BayesFile:  Bayes(),
		model.SVMFile:    SVM(),
	}
	for name, c := range models {
		data, err := model.EncodeClassifier(c)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Data table file names, matching the layout of the data directory.
const (
	SeverityFile     = "symptom_severity.csv"
	DescriptionsFile = "symptom_Description.csv"
	PrecautionsFile  = "symptom_precaution.csv"
)

// WriteData writes the severity and metadata tables to dir.
func WriteData(dir string) error {
	files := map[string]string{
		SeverityFile:     SeverityCSV,
		DescriptionsFile: DescriptionsCSV,
		PrecautionsFile:  PrecautionsCSV,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}
