package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tlmbus/ordering"
	"github.com/sarchlab/tlmbus/protocol"
)

func newCheckReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-replay [file]",
		Short: "Parse a replay file and summarize it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := ordering.LoadReplayFile(args[0])
			if err != nil {
				return err
			}

			var reads, writes int
			var last uint64
			ids := make(map[uint32]bool)

			for _, e := range entries {
				if e.Command == protocol.Read {
					reads++
				} else {
					writes++
				}

				ids[e.ID] = true
				if e.StartCycle > last {
					last = e.StartCycle
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "entries:    %d\n", len(entries))
			fmt.Fprintf(w, "reads:      %d\n", reads)
			fmt.Fprintf(w, "writes:     %d\n", writes)
			fmt.Fprintf(w, "ids:        %d\n", len(ids))
			fmt.Fprintf(w, "last start: %d\n", last)

			return nil
		},
	}
}
