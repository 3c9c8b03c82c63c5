package reshape

import "github.com/roach88/epiband/internal/ir"

// Labels maps internal codes to display labels.
//
// Keys are compared in NFC form. A code without a mapping is returned
// unchanged; that fallback is intended, not an error.
type Labels struct {
	m map[string]string
}

// NewLabels builds a label table from code -> label pairs.
func NewLabels(m map[string]string) Labels {
	l := Labels{m: make(map[string]string, len(m))}
	for code, label := range m {
		l.m[ir.NormalizeLabel(code)] = label
	}
	return l
}

// Label returns the display label for code, or code itself when unmapped.
func (l Labels) Label(code string) string {
	if label, ok := l.m[ir.NormalizeLabel(code)]; ok {
		return label
	}
	return code
}

// Len returns the number of mappings.
func (l Labels) Len() int { return len(l.m) }
