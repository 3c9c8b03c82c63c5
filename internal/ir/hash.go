package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScenario = "epiband/scenario/v1"
	DomainConfig   = "epiband/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScenarioID computes the content-addressed id of a scenario key.
// The id is stable across runs given the same key.
func ScenarioID(key ScenarioKey) (string, error) {
	obj := map[string]any{
		"sample_tag": key.SampleTag,
		"policy_id":  key.PolicyID,
		"window": map[string]any{
			"start": key.Window.Start,
			"end":   key.Window.End,
		},
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ScenarioID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScenario, canonical), nil
}

// MustScenarioID is like ScenarioID but panics on error.
// Scenario keys only contain strings and ints, so this cannot fail in practice.
func MustScenarioID(key ScenarioKey) string {
	id, err := ScenarioID(key)
	if err != nil {
		panic(err)
	}
	return id
}

// ConfigHash identifies the exact experiment definition a run was made from.
func ConfigHash(data []byte) string {
	return hashWithDomain(DomainConfig, data)
}
