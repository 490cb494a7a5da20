// Package bindings is the host side of the game's binding layer. It checks
// a compiled binary against the export table, resolves the inputs an
// initializer accepts and wraps the resulting instance in typed calls.
package bindings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/simple-gravity/gravity-host/api/gravity"
	"github.com/simple-gravity/gravity-host/internal/wasm"
)

// ExportTable returns a copy of the export table binaries are verified
// against.
func ExportTable() []gravity.Export {
	table := make([]gravity.Export, len(gravity.Exports))
	copy(table, gravity.Exports)
	return table
}

// Mismatch is an export whose compiled signature differs from the table.
type Mismatch struct {
	Name string
	Want string
	Got  string
}

// Report is the result of comparing a compiled module with the export table.
type Report struct {
	Module string

	// Present lists table exports found with the declared signature.
	Present []string
	// Missing lists required exports the binary lacks.
	Missing []string
	// Absent lists optional exports the binary lacks.
	Absent     []string
	Mismatched []Mismatch
	// Extra lists exported functions the table does not know.
	Extra []string

	HasMemory bool

	// Imports lists "module.name" for every imported function.
	Imports []string
}

// OK reports whether the binary satisfies the export table.
func (r *Report) OK() bool {
	return r.HasMemory && len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Err returns a *SignatureMismatchError describing r, or nil if r is OK.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return &SignatureMismatchError{
		Module:     r.Module,
		Missing:    r.Missing,
		Mismatched: r.Mismatched,
		NoMemory:   !r.HasMemory,
	}
}

// SignatureMismatchError occurs when a binary does not satisfy the export table.
type SignatureMismatchError struct {
	Module     string
	Missing    []string
	Mismatched []Mismatch
	NoMemory   bool
}

func (e *SignatureMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	for _, m := range e.Mismatched {
		parts = append(parts, fmt.Sprintf("%s is %s, want %s", m.Name, m.Got, m.Want))
	}
	if e.NoMemory {
		parts = append(parts, "memory not exported")
	}
	return fmt.Sprintf("module '%s' does not match the export table: %s",
		e.Module, strings.Join(parts, "; "))
}

// Verify compares compiled against the export table. The returned error is
// report.Err().
func Verify(compiled *wasm.CompiledModule) (*Report, error) {
	report := &Report{Module: compiled.Name}

	exported := compiled.Module.ExportedFunctions()
	for _, exp := range gravity.Exports {
		def, ok := exported[exp.Name]
		if !ok {
			if exp.Optional {
				report.Absent = append(report.Absent, exp.Name)
			} else {
				report.Missing = append(report.Missing, exp.Name)
			}
			continue
		}

		if !exp.Matches(def.ParamTypes(), def.ResultTypes()) {
			report.Mismatched = append(report.Mismatched, Mismatch{
				Name: exp.Name,
				Want: exp.Signature(),
				Got:  gravity.FormatSignature(def.ParamTypes(), def.ResultTypes()),
			})
			continue
		}
		report.Present = append(report.Present, exp.Name)
	}

	for name := range exported {
		if _, ok := gravity.LookupExport(name); !ok {
			report.Extra = append(report.Extra, name)
		}
	}
	sort.Strings(report.Extra)

	_, report.HasMemory = compiled.Module.ExportedMemories()[gravity.ExportMemory]

	for _, def := range compiled.Module.ImportedFunctions() {
		module, name, _ := def.Import()
		report.Imports = append(report.Imports, module+"."+name)
	}
	sort.Strings(report.Imports)

	return report, report.Err()
}
