package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/careledger/claimsort/internal/match"
	"github.com/careledger/claimsort/internal/registry"
	"github.com/careledger/claimsort/internal/store"
	"github.com/spf13/cobra"
)

var claimsDest string

// claimsCmd represents the claims command
var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "List known claims in the destination",
	Long: `Claims re-derives the claim registry from the destination location
exactly the way a batch run does (sidecar metadata first, legacy folder
name parsing as fallback) and prints the known clusters.

Example:
  claimsort claims --dest ./claims`,
	RunE: runClaims,
}

func init() {
	rootCmd.AddCommand(claimsCmd)

	claimsCmd.Flags().StringVar(&claimsDest, "dest", "./claims", "destination location for claim folders")
}

func runClaims(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	grouping := store.NewGrouping(claimsDest)
	reg, err := registry.Load(ctx, grouping, match.ParseLegacyLabel)
	if err != nil {
		return fmt.Errorf("load claims: %w", err)
	}

	if reg.Len() == 0 {
		fmt.Fprintf(os.Stderr, "No claims found in %s\n", claimsDest)
		return nil
	}

	fmt.Printf("%-45s %-20s %s\n", "LABEL", "IDENTITY", "ANCHOR DATE")
	for _, claim := range reg.Claims() {
		fmt.Printf("%-45s %-20s %s\n", claim.Label, claim.ClusterKey, claim.AnchorDate.Format("2006-01-02"))
	}
	fmt.Printf("\n%d claim(s)\n", reg.Len())

	return nil
}
