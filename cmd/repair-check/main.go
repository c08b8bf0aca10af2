// repair-check shows what the resilient parser recovers from model output.
// It reads each file argument, or stdin when there are none, and prints the
// winning stage, whether the balancer closed the document and the JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/donortrace/internal/repair"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "repair-check [file ...]",
		Short: "Show what the resilient parser recovers from model output",
		Long: `repair-check runs each file (or stdin, or "-") through the parser used for
model responses and prints the stage that succeeded, whether unclosed
delimiters were balanced, and the recovered JSON.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"-"}
			}

			failed := 0
			for _, name := range args {
				text, err := readInput(cmd.InOrStdin(), name)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					failed++
					continue
				}
				if !check(cmd.OutOrStdout(), name, text, compact) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d inputs not recovered", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print the recovered JSON on one line")
	return cmd
}

func readInput(stdin io.Reader, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(name)
	return string(data), err
}

// check prints the parse result for one input and reports whether a value
// was recovered
func check(w io.Writer, name, text string, compact bool) bool {
	res := repair.Parse(text)

	fmt.Fprintf(w, "=== %s\n", name)
	fmt.Fprintf(w, "stage:    %s\n", res.Stage)
	fmt.Fprintf(w, "balanced: %v\n", res.Balanced)
	if !res.OK() {
		fmt.Fprintf(w, "failure:  %s\n\n", res.Failure.Reason)
		return false
	}

	var out []byte
	var err error
	if compact {
		out, err = json.Marshal(res.Value)
	} else {
		out, err = json.MarshalIndent(res.Value, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(w, "encode:   %v\n\n", err)
		return false
	}
	fmt.Fprintf(w, "%s\n\n", out)
	return true
}
