package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
	"github.com/sells-group/leadscout/internal/search"
)

var (
	searchQuery      string
	searchLocation   string
	searchRadius     float64
	searchMaxResults int
	searchFile       string
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for local businesses and score them as leads",
	Long:  "Runs a Places text search, scores every result, and records the search. Each run consumes one unit of the monthly API quota. With --file, runs a batch of searches concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initSearchEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if searchFile != "" {
			return runBatch(cmd, env)
		}

		req := search.Request{
			Query:      searchQuery,
			Location:   searchLocation,
			RadiusKm:   searchRadius,
			MaxResults: searchMaxResults,
		}
		if req.RadiusKm == 0 {
			req.RadiusKm = cfg.Search.DefaultRadiusKm
		}
		if req.MaxResults == 0 {
			req.MaxResults = cfg.Search.DefaultMaxResults
		}

		result, err := env.orch.Execute(ctx, req)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		formatBusinesses(os.Stdout, result.Businesses)
		fmt.Printf("\n%d businesses (search %s)\n", result.Count, result.SearchID)
		return nil
	},
}

// runBatch executes every request in the batch file, bounded by the
// configured concurrency. Requests that fail are reported and skipped.
func runBatch(cmd *cobra.Command, env *searchEnv) error {
	data, err := os.ReadFile(searchFile)
	if err != nil {
		return eris.Wrap(err, "read batch file")
	}

	var reqs []search.Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return eris.Wrap(err, "parse batch file")
	}
	if len(reqs) == 0 {
		return eris.New("batch file contains no searches")
	}
	for i := range reqs {
		if reqs[i].RadiusKm == 0 {
			reqs[i].RadiusKm = cfg.Search.DefaultRadiusKm
		}
		if reqs[i].MaxResults == 0 {
			reqs[i].MaxResults = cfg.Search.DefaultMaxResults
		}
	}

	results, err := env.orch.ExecuteMany(cmd.Context(), reqs, cfg.Search.MaxConcurrent)
	if err != nil {
		return eris.Wrap(err, "batch search")
	}

	for i, r := range results {
		fmt.Printf("%s in %s: %d businesses (search %s)\n",
			reqs[i].Query, reqs[i].Location, r.Count, r.SearchID)
	}

	fmt.Printf("\n%d searches complete\n", len(results))
	return nil
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "business type to search for, e.g. \"plumbers\"")
	searchCmd.Flags().StringVarP(&searchLocation, "location", "l", "", "free-text location, e.g. \"Austin, TX\"")
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "search radius in km (default from config)")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", 0, "max results to request (default from config)")
	searchCmd.Flags().StringVar(&searchFile, "file", "", "JSON file with an array of searches to run as a batch")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(searchCmd)
}

// formatBusinesses writes a tabular lead list to w in the order given.
func formatBusinesses(out io.Writer, businesses []model.Business) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tBAND\tNAME\tRATING\tREVIEWS\tWEBSITE\tPHONE")
	_, _ = fmt.Fprintln(w, "-----\t----\t----\t------\t-------\t-------\t-----")

	for _, b := range businesses {
		rating := ""
		if b.Rating != nil {
			rating = fmt.Sprintf("%.1f", *b.Rating)
		}
		reviews := ""
		if b.ReviewCount != nil {
			reviews = fmt.Sprintf("%d", *b.ReviewCount)
		}
		website := "none"
		if b.Website != nil {
			website = *b.Website
		}
		phone := ""
		if b.Phone != nil {
			phone = *b.Phone
		}

		name := b.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		if len(website) > 40 {
			website = website[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.LeadScore,
			scorer.BandFor(b.LeadScore),
			name,
			rating,
			reviews,
			website,
			phone,
		)
	}
	_ = w.Flush()
}
