package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nexus-trading/scout/internal/rules"
)

var (
	scanModels    []string
	evalModel     string
	evalEnrich    bool
	checkModel    string
	moonProfile   string
	rulesCategory string
	rulesFormat   string
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Score a batch of snapshots (JSON array or JSON lines) against models",
	Long: `Score every snapshot in the input against the selected models and print
the run report. Reads stdin when no file (or "-") is given.

Example usage:
  scout scan tokens.json
  scout scan --model degen --model safe < tokens.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Evaluate one snapshot against a model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvaluate,
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Grade one snapshot against a check model",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var riskCmd = &cobra.Command{
	Use:   "risk [file]",
	Short: "Compute the risk score of one snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRisk,
}

var moonCmd = &cobra.Command{
	Use:   "moon [file]",
	Short: "Compute the moonshot score and exit ladder of one snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMoon,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the built-in rules",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func init() {
	rootCmd.AddCommand(scanCmd, evaluateCmd, checkCmd, riskCmd, moonCmd, rulesCmd)

	scanCmd.Flags().StringSliceVar(&scanModels, "model", nil, "Model ids to evaluate (default: all stored models)")
	evaluateCmd.Flags().StringVar(&evalModel, "model", "", "Model id (default: scoring.default_model_id)")
	evaluateCmd.Flags().BoolVar(&evalEnrich, "enrich", false, "Run risk, moonshot and wallet-age enrichment first")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "Check model id")
	_ = checkCmd.MarkFlagRequired("model")
	moonCmd.Flags().StringVar(&moonProfile, "profile", "", "Market profile hint: pre_bonding, graduated or established")
	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "Only list rules in this category")
	rulesCmd.Flags().StringVar(&rulesFormat, "format", "table", "Output format: table, json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	snaps, err := readSnapshots(argOrStdin(args))
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	models, err := a.selectModels(ctx, scanModels)
	if err != nil {
		return err
	}
	report, err := a.job().Run(ctx, snaps, models)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := readSnapshot(argOrStdin(args))
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id := evalModel
	if id == "" {
		id = cfg.Scoring.DefaultModelID
	}
	if id == "" {
		return fmt.Errorf("no --model given and scoring.default_model_id is empty")
	}
	m, err := a.models.Get(ctx, id)
	if err != nil {
		return err
	}

	out := map[string]any{}
	if evalEnrich {
		enriched, rr, mr := a.enricher.Enrich(ctx, s)
		s = enriched
		out["risk"], out["moonshot"] = rr, mr
	}
	out["result"] = a.evaluator.Evaluate(s, m)
	return printJSON(cmd.OutOrStdout(), out)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := readSnapshot(argOrStdin(args))
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.checkModels.GetCheckModel(ctx, checkModel)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), a.checks.Evaluate(ctx, s, m))
}

func runRisk(cmd *cobra.Command, args []string) error {
	s, err := readSnapshot(argOrStdin(args))
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return printJSON(cmd.OutOrStdout(), a.risk.Score(s))
}

func runMoon(cmd *cobra.Command, args []string) error {
	s, err := readSnapshot(argOrStdin(args))
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return printJSON(cmd.OutOrStdout(), a.moon.Score(s, moonProfile))
}

func runRules(cmd *cobra.Command, args []string) error {
	list := rules.Default().All()
	if rulesCategory != "" {
		c := rules.Category(strings.ToUpper(strings.ReplaceAll(rulesCategory, "_", " ")))
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", rulesCategory)
		}
		list = rules.ByCategory(c)
	}

	if rulesFormat == "json" {
		type row struct {
			ID        string         `json:"id"`
			Name      string         `json:"name"`
			Category  rules.Category `json:"category"`
			Weight    float64        `json:"weight"`
			Mandatory bool           `json:"mandatory"`
		}
		rows := make([]row, 0, len(list))
		for _, r := range list {
			rows = append(rows, row{r.ID(), r.Name(), r.Category(), r.Weight(), r.Mandatory()})
		}
		return printJSON(cmd.OutOrStdout(), rows)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tWEIGHT\tMANDATORY\tNAME")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%t\t%s\n", r.ID(), r.Category(), r.Weight(), r.Mandatory(), r.Name())
	}
	return tw.Flush()
}

func argOrStdin(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}
