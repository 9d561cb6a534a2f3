package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-mx/internal/model"
)

var (
	leadsSource  string
	leadsSession string
	leadsLimit   int
	leadsOffset  int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		filter := model.LeadFilter{
			SessionID: leadsSession,
			Limit:     leadsLimit,
			Offset:    leadsOffset,
		}
		if leadsSource != "" {
			source, err := model.ParseSource(leadsSource)
			if err != nil {
				return err
			}
			filter.Source = source
		}

		found, err := st.ListLeads(cmd.Context(), filter)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsSource, "source", "", "filter by source")
	leadsCmd.Flags().StringVar(&leadsSession, "session", "", "filter by session UUID")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 100, "maximum leads to list")
	leadsCmd.Flags().IntVar(&leadsOffset, "offset", 0, "offset into the result set")
	rootCmd.AddCommand(leadsCmd)
}
