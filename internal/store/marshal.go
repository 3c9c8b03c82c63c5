package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/epiband/internal/ir"
)

// encodeJSON serializes v with HTML escaping disabled and no trailing newline.
// Go's encoder sorts map keys, so equal values always produce equal text.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func marshalWidths(widths []float64) (string, error) {
	if widths == nil {
		widths = []float64{}
	}
	data, err := encodeJSON(widths)
	if err != nil {
		return "", fmt.Errorf("marshal widths: %w", err)
	}
	return data, nil
}

func unmarshalWidths(data string) ([]float64, error) {
	var widths []float64
	if err := json.Unmarshal([]byte(data), &widths); err != nil {
		return nil, fmt.Errorf("unmarshal widths: %w", err)
	}
	return widths, nil
}

func marshalSample(s ir.ParameterSample) (string, error) {
	data, err := encodeJSON(s)
	if err != nil {
		return "", fmt.Errorf("marshal sample %s: %w", s.Tag(), err)
	}
	return data, nil
}

func unmarshalSample(data string) (ir.ParameterSample, error) {
	var s ir.ParameterSample
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return ir.ParameterSample{}, fmt.Errorf("unmarshal sample: %w", err)
	}
	return s, nil
}

func marshalRun(run ir.SimulationRun) (string, error) {
	data, err := encodeJSON(run)
	if err != nil {
		return "", fmt.Errorf("marshal run %s: %w", run.Key, err)
	}
	return data, nil
}

func unmarshalRun(data string) (ir.SimulationRun, error) {
	var run ir.SimulationRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return ir.SimulationRun{}, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
