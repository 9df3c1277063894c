package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NeverShitty/chittyfinance-sub000/internal/aggregate"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

var (
	analyzeEntity        string
	analyzeSnapshotsFile string
	analyzeChargesFile   string
	analyzeJSON          bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate snapshots and detect contradictions for an entity",
	Long:  "Fetches a snapshot from every connected source (or reads snapshots from a file), merges them, and runs contradiction detection with a risk score.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var parts []aggregate.Part
		if analyzeSnapshotsFile != "" {
			parts, err = loadSnapshotParts(analyzeSnapshotsFile)
			if err != nil {
				return err
			}
		} else {
			sources, err := e.store.ListSources(ctx, analyzeEntity)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return eris.Errorf("no sources linked for entity %q", analyzeEntity)
			}
			parts = e.aggregator.FetchAll(ctx, sources)
		}

		var charges []model.ChargeDetails
		if analyzeChargesFile != "" {
			charges, err = loadJSONFile[[]model.ChargeDetails](analyzeChargesFile)
			if err != nil {
				return err
			}
		} else {
			charges, err = e.store.ListCharges(ctx, analyzeEntity)
			if err != nil {
				return err
			}
		}

		snapshot := aggregate.Merge(parts, time.Now())
		analysis := e.detector.Detect(ctx, aggregate.Snapshots(parts), charges, analyzeEntity)

		if analyzeJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"snapshot": snapshot,
				"analysis": analysis,
			})
		}

		printAnalysis(snapshot, analysis)
		return nil
	},
}

// loadSnapshotParts reads a JSON array of partial snapshots and labels each
// one the way the fetch layer would have.
func loadSnapshotParts(path string) ([]aggregate.Part, error) {
	snaps, err := loadJSONFile[[]*model.PartialSnapshot](path)
	if err != nil {
		return nil, err
	}
	parts := make([]aggregate.Part, len(snaps))
	for i, s := range snaps {
		label := s.Source
		if label == "" {
			label = fmt.Sprintf("source %d", i+1)
		}
		parts[i] = aggregate.Part{Key: label, Label: label, Snapshot: s}
	}
	return parts, nil
}

func loadJSONFile[T any](path string) (T, error) {
	var out T
	data, err := os.ReadFile(path)
	if err != nil {
		return out, eris.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, eris.Wrapf(err, "parse %s", path)
	}
	return out, nil
}

func printAnalysis(snapshot *model.FinancialSnapshot, analysis model.ContradictionAnalysis) {
	fmt.Printf("Sources: %d contributed\n", len(snapshot.Sources))
	if snapshot.CashOnHand != nil {
		fmt.Printf("Cash on hand:     $%.2f\n", *snapshot.CashOnHand)
	}
	if snapshot.MonthlyRevenue != nil {
		fmt.Printf("Monthly revenue:  $%.2f\n", *snapshot.MonthlyRevenue)
	}
	if snapshot.MonthlyExpenses != nil {
		fmt.Printf("Monthly expenses: $%.2f\n", *snapshot.MonthlyExpenses)
	}
	if snapshot.Metrics != nil && snapshot.Metrics.Runway != nil {
		fmt.Printf("Runway:           %.1f months\n", *snapshot.Metrics.Runway)
	}
	fmt.Printf("Transactions:     %d\n\n", len(snapshot.Transactions))

	fmt.Printf("Risk score: %d/100 (%d contradictions, est. impact $%.2f)\n",
		analysis.RiskScore, analysis.Summary.Total, analysis.Summary.TotalImpactUSD)
	for _, c := range analysis.Contradictions {
		fmt.Printf("  [%s] %s: %s\n", c.Severity, c.Title, c.Description)
		fmt.Printf("         action: %s\n", c.RecommendedAction)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeEntity, "entity", "default", "entity whose sources and charges to analyze")
	analyzeCmd.Flags().StringVar(&analyzeSnapshotsFile, "snapshots", "", "JSON file of partial snapshots (bypasses source fetching)")
	analyzeCmd.Flags().StringVar(&analyzeChargesFile, "charges", "", "JSON file of recurring charges (bypasses the store)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(analyzeCmd)
}
