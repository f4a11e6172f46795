// Package workflow holds the per-deployment mapping from case type to its
// ordered stage list. The table is fixed at startup; operators extend it via
// the config file, never at runtime.
package workflow

import (
	"fmt"
)

type Table struct {
	stages   map[string][]string
	order    []string
	terminal map[string]bool
}

// ErrUnknownCaseType reports a case type absent from the table.
type ErrUnknownCaseType struct {
	CaseType string
}

func (e ErrUnknownCaseType) Error() string {
	return fmt.Sprintf("unknown case type %q", e.CaseType)
}

// New builds a table from the config mapping. types preserves the config
// declaration order for listing; terminal names the closing stages shared by
// all workflows.
func New(stages map[string][]string, types []string, terminal []string) (*Table, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("workflow table is empty")
	}
	t := &Table{
		stages:   make(map[string][]string, len(stages)),
		terminal: make(map[string]bool, len(terminal)),
	}
	for caseType, list := range stages {
		if len(list) == 0 {
			return nil, fmt.Errorf("case type %q has no stages", caseType)
		}
		t.stages[caseType] = append([]string(nil), list...)
	}
	for _, caseType := range types {
		if _, ok := t.stages[caseType]; ok {
			t.order = append(t.order, caseType)
		}
	}
	if len(t.order) == 0 {
		for caseType := range t.stages {
			t.order = append(t.order, caseType)
		}
	}
	for _, s := range terminal {
		t.terminal[s] = true
	}
	return t, nil
}

// StagesFor returns the ordered stage list for a case type.
func (t *Table) StagesFor(caseType string) ([]string, error) {
	list, ok := t.stages[caseType]
	if !ok {
		return nil, ErrUnknownCaseType{CaseType: caseType}
	}
	return append([]string(nil), list...), nil
}

// InitialStage returns the first stage of a case type's workflow.
func (t *Table) InitialStage(caseType string) (string, error) {
	list, ok := t.stages[caseType]
	if !ok {
		return "", ErrUnknownCaseType{CaseType: caseType}
	}
	return list[0], nil
}

// KnownStage reports whether stage belongs to the case type's list. Used only
// when strict stage validation is enabled.
func (t *Table) KnownStage(caseType, stage string) bool {
	for _, s := range t.stages[caseType] {
		if s == stage {
			return true
		}
	}
	return false
}

// IsTerminal reports whether stage closes a case. Terminal cases are excluded
// from deadline-expiry counts.
func (t *Table) IsTerminal(stage string) bool {
	return t.terminal[stage]
}

// CaseTypes lists the registered case types in declaration order.
func (t *Table) CaseTypes() []string {
	return append([]string(nil), t.order...)
}
