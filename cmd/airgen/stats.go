package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"airgen/internal/fuir"
	"airgen/internal/irfile"
)

var statsCmd = &cobra.Command{
	Use:   "stats <program.yaml|file.air>",
	Short: "Count clazzes and sites of an IR",
	Args:  cobra.ExactArgs(1),
	RunE:  statsExecution,
}

func statsExecution(cmd *cobra.Command, args []string) error {
	ir, res, err := loadIR(cmd, args[0])
	if err != nil {
		return err
	}
	st, err := fuir.CollectStats(cmd.Context(), ir)
	if err != nil {
		return err
	}

	var size uint64
	if res == nil {
		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		size = uint64(info.Size()) // #nosec G115 -- file sizes are non-negative
	} else {
		data, err := irfile.Encode(res.File)
		if err != nil {
			return err
		}
		size = uint64(len(data))
	}
	return printStats(cmd.OutOrStdout(), st, size)
}

func printStats(out io.Writer, st fuir.Stats, size uint64) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	row := func(name string, n int) {
		fmt.Fprintf(tw, "%s\t%s\t\n", name, humanize.Comma(int64(n)))
	}
	row("clazzes", st.Clazzes)
	row("  ref", st.Refs)
	row("  choice", st.Choices)
	row("  with code", st.WithCode)
	for _, k := range sortedKeys(st.ByKind) {
		row("  "+k.String(), st.ByKind[k])
	}
	row("sites", st.Sites)
	for _, k := range sortedKeys(st.BySite) {
		row("  "+k.String(), st.BySite[k])
	}
	row("longest code", st.MaxCode)
	for _, k := range sortedKeys(st.Instances) {
		row("lifetime "+k.String(), st.Instances[k])
	}
	fmt.Fprintf(tw, "size\t%s\t\n", humanize.Bytes(size))
	return tw.Flush()
}

func sortedKeys[K ~uint8, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
