package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"airgen/internal/fuir"
	"airgen/internal/hir"
	"airgen/internal/mono"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] <program.yaml|file.air>",
	Short: "Print the sites of an IR",
	Long:  "Print every clazz and its code. --clazzes prints the registry of a description instead, --hir the loaded features.",
	Args:  cobra.ExactArgs(1),
	RunE:  dumpExecution,
}

func init() {
	dumpCmd.Flags().Bool("all", false, "include clazzes that need no code")
	dumpCmd.Flags().Bool("positions", false, "append source positions to sites")
	dumpCmd.Flags().Bool("clazzes", false, "dump the clazz registry (descriptions only)")
	dumpCmd.Flags().Bool("hir", false, "dump the loaded features and their code (descriptions only)")
	dumpCmd.Flags().Int("max-name", 0, "truncate clazz names in --clazzes output")
}

func dumpExecution(cmd *cobra.Command, args []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	positions, err := cmd.Flags().GetBool("positions")
	if err != nil {
		return err
	}
	clazzes, err := cmd.Flags().GetBool("clazzes")
	if err != nil {
		return err
	}
	maxName, err := cmd.Flags().GetInt("max-name")
	if err != nil {
		return err
	}
	hirOnly, err := cmd.Flags().GetBool("hir")
	if err != nil {
		return err
	}

	if hirOnly {
		if isIRFile(args[0]) {
			return errors.New("--hir needs a program description, not an IR file")
		}
		res, err := runDescription(cmd, args[0])
		if res.Program == nil {
			return err
		}
		return hir.Dump(cmd.OutOrStdout(), res.Program)
	}

	if clazzes {
		if isIRFile(args[0]) {
			return errors.New("--clazzes needs a program description, not an IR file")
		}
		res, err := runDescription(cmd, args[0])
		if err != nil {
			return err
		}
		return mono.Dump(cmd.OutOrStdout(), res.Registry, mono.DumpOptions{OnlyInstantiated: !all, MaxName: maxName})
	}

	ir, _, err := loadIR(cmd, args[0])
	if err != nil {
		return err
	}
	if err := fuir.Print(cmd.OutOrStdout(), ir, fuir.PrintOptions{All: all, Positions: positions}); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	return nil
}
