package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"airgen/internal/diagfmt"
	"airgen/internal/fuir"
	"airgen/internal/irfile"
	"airgen/internal/pipeline"
)

// isIRFile reports paths that name a serialized IR rather than a description.
func isIRFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".air")
}

// loadIR returns the IR at path: a library for .air files, or the IR
// generated in memory from a program description. res is nil for libraries.
func loadIR(cmd *cobra.Command, path string) (fuir.IR, *pipeline.Result, error) {
	if isIRFile(path) {
		lib, err := irfile.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", irfile.DiagCode(err).ID(), err)
		}
		return lib, nil, nil
	}
	r, err := runDescription(cmd, path)
	if err != nil {
		return nil, nil, err
	}
	return r.IR, &r, nil
}

// runDescription generates the IR of a description without writing it and
// prints the diagnostics to stderr.
func runDescription(cmd *cobra.Command, path string) (pipeline.Result, error) {
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return pipeline.Result{}, err
	}
	colored, err := useColor(cmd)
	if err != nil {
		return pipeline.Result{}, err
	}
	res, err := pipeline.Run(cmd.Context(), &pipeline.Request{Path: path, MaxDiagnostics: maxDiagnostics})
	if res.Diagnostics != nil && res.Diagnostics.Len() > 0 {
		res.Diagnostics.Sort()
		diagfmt.Pretty(cmd.ErrOrStderr(), res.Diagnostics, res.Files, diagfmt.PrettyOpts{
			Color:     colored,
			Context:   1,
			ShowNotes: true,
		})
	}
	return res, err
}
