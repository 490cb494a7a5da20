package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/simple-gravity/gravity-host/internal/bindings"
	"github.com/simple-gravity/gravity-host/internal/bundle"
	"github.com/urfave/cli/v2"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "check a binary against the export table",
		ArgsUsage: "[module path, URL or -]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "imports",
				Usage: "also list the functions the binary imports",
			},
		},
		Action: inspect,
	}
}

func inspect(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	_, report, err := e.host.Initializer().Compile(c.Context, inputFromArg(c.Args().First()), &bindings.Options{
		DefaultPath: e.cfg.Module,
	})
	if report == nil {
		return err
	}

	if err := renderReport(c.App.Writer, report); err != nil {
		return err
	}
	if c.Bool("imports") {
		if err := renderImports(c.App.Writer, report); err != nil {
			return err
		}
	}
	// A mismatching binary still gets its table printed.
	return err
}

func versionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "versions",
		Usage:     "print the crate versions a binary reports",
		ArgsUsage: "[module path, URL or -]",
		Action:    versions,
	}
}

func versions(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	out, err := e.host.Initializer().Init(c.Context, inputFromArg(c.Args().First()), &bindings.Options{
		DefaultPath: e.cfg.Module,
		SkipStart:   true,
		Timeout:     e.cfg.Wasm.ExecutionTimeout,
	})
	if err != nil {
		return err
	}
	defer out.Close(c.Context)

	reported, err := out.Versions(c.Context)
	if err != nil {
		return err
	}
	return renderVersions(c.App.Writer, reported)
}

func bundlesCommand() *cli.Command {
	return &cli.Command{
		Name:   "bundles",
		Usage:  "list the bundles found in the bundle paths",
		Action: listBundles,
	}
}

func listBundles(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	manager, err := e.host.Bundles(c.Context)
	if err != nil {
		return err
	}
	return renderBundles(c.App.Writer, manager.Registry().List())
}

func renderReport(w io.Writer, report *bindings.Report) error {
	status := make(map[string]string)
	for _, name := range report.Present {
		status[name] = "ok"
	}
	for _, name := range report.Missing {
		status[name] = "missing"
	}
	for _, name := range report.Absent {
		status[name] = "absent"
	}
	got := make(map[string]string)
	for _, m := range report.Mismatched {
		status[m.Name] = "mismatch"
		got[m.Name] = m.Got
	}

	table := tablewriter.NewWriter(w)
	table.Header("Export", "Signature", "Status", "Found")
	for _, exp := range bindings.ExportTable() {
		if err := table.Append([]string{exp.Name, exp.Signature(), status[exp.Name], got[exp.Name]}); err != nil {
			return err
		}
	}
	for _, name := range report.Extra {
		if err := table.Append([]string{name, "", "extra", ""}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	memory := "exported"
	if !report.HasMemory {
		memory = "not exported"
	}
	verdict := "ok"
	if !report.OK() {
		verdict = "does not match the export table"
	}
	_, err := fmt.Fprintf(w, "module %s: memory %s, %s\n", report.Module, memory, verdict)
	return err
}

func renderImports(w io.Writer, report *bindings.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Module", "Import")
	for _, imp := range report.Imports {
		module, name, _ := strings.Cut(imp, ".")
		if err := table.Append([]string{module, name}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderVersions(w io.Writer, reported map[string]bindings.CrateVersion) error {
	probes := make([]string, 0, len(reported))
	for probe := range reported {
		probes = append(probes, probe)
	}
	sort.Strings(probes)

	table := tablewriter.NewWriter(w)
	table.Header("Probe", "Version")
	for _, probe := range probes {
		if err := table.Append([]string{probe, reported[probe].String()}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderBundles(w io.Writer, bundles []*bundle.Bundle) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Version", "Module", "Exports")
	for _, b := range bundles {
		exports := "ok"
		if b.Report != nil && !b.Report.OK() {
			exports = "mismatch"
		}
		if err := table.Append([]string{b.Name(), b.Version(), b.Manifest.WasmPath(), exports}); err != nil {
			return err
		}
	}
	return table.Render()
}
