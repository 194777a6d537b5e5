// Command mp4info dumps the box tree of an ISOBMFF/MP4 file as indented
// text, for inspecting files produced by this module or any other encoder.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/streammux/isobmff/box"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mp4info:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var showSizes bool
	var validate bool
	cmd := &cobra.Command{
		Use:   "mp4info <file>",
		Short: "Dump the box tree of an MP4 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			nodes, err := box.DecodeTopLevel(data)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if validate {
				if err := box.ValidateTopLevel(nodes); err != nil {
					return fmt.Errorf("validate: %w", err)
				}
			}
			w := cmd.OutOrStdout()
			for _, n := range nodes {
				printNode(w, n, 0, showSizes)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSizes, "sizes", false, "print each box's encoded size in bytes")
	cmd.Flags().BoolVar(&validate, "validate", false, "check the decoded tree against the mandatory box nesting grammar")
	return cmd
}

func printNode(w io.Writer, n *box.Node, depth int, showSizes bool) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if showSizes {
		fmt.Fprintf(w, "%s%s (%d bytes)\n", indent, n.Box.Type(), n.Size())
	} else {
		fmt.Fprintf(w, "%s%s\n", indent, n.Box.Type())
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1, showSizes)
	}
}
