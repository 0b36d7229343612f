package impute

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/tubemetrics/trendpipe/internal/dataset"
	"github.com/tubemetrics/trendpipe/internal/forest"
)

// columnModel is the persisted form of one trained imputation model:
// the forest plus the feature encoding it was fitted with. It is
// independent of any single dataset instance and can be replayed on a
// compatible schema.
type columnModel struct {
	Column   string
	Kind     string
	Features []string
	Means    []float64
	Stds     []float64
	Cats     []map[string]int
	Classes  []string // categorical targets only
	Forest   []byte
}

func marshalColumnModel(target *dataset.Column, enc *featureEncoder, model encodingBinaryMarshaler, classes []string) ([]byte, error) {
	forestBytes, err := model.MarshalBinary()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(enc.features))
	for i, c := range enc.features {
		names[i] = c.Name
	}
	cm := columnModel{
		Column:   target.Name,
		Kind:     target.Kind.String(),
		Features: names,
		Means:    enc.means,
		Stds:     enc.stds,
		Cats:     enc.cats,
		Classes:  classes,
		Forest:   forestBytes,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cm); err != nil {
		return nil, fmt.Errorf("encode column model: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadedModel is a deserialized imputation model ready for inspection
// or reuse against a compatible schema.
type LoadedModel struct {
	Column   string
	Kind     string
	Features []string
	Classes  []string

	Regressor  *forest.Regressor
	Classifier *forest.Classifier
}

// UnmarshalModel decodes a model previously written to the store.
func UnmarshalModel(data []byte) (*LoadedModel, error) {
	var cm columnModel
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&cm); err != nil {
		return nil, fmt.Errorf("decode column model: %w", err)
	}

	m := &LoadedModel{
		Column:   cm.Column,
		Kind:     cm.Kind,
		Features: cm.Features,
		Classes:  cm.Classes,
	}
	switch cm.Kind {
	case dataset.KindNumeric.String():
		m.Regressor = &forest.Regressor{}
		if err := m.Regressor.UnmarshalBinary(cm.Forest); err != nil {
			return nil, err
		}
	case dataset.KindCategorical.String():
		m.Classifier = &forest.Classifier{}
		if err := m.Classifier.UnmarshalBinary(cm.Forest); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("decode column model: unknown kind %q", cm.Kind)
	}
	return m, nil
}
