package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gomdp/adapters/excel"
	"gomdp/adapters/results"
	"gomdp/adapters/sim"
	"gomdp/adapters/stats"
	"gomdp/adapters/wire"
	"gomdp/app"
	"gomdp/domain/core"
	"gomdp/domain/experiment"
	"gomdp/domain/mdp"
	"gomdp/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gomdp-cli",
		Short: "GoMDP CLI for generating, running, and verifying factored MDP models",
	}

	rootCmd.AddCommand(
		newGenerateCmd(),
		newInspectCmd(),
		newSimulateCmd(),
		newVerifyCmd(),
		newSummaryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultGeneratorConfig()

	cmd := &cobra.Command{
		Use:   "generate [output-file]",
		Short: "Generate a synthetic ring-of-machines model and write its wire file",
		Long: `Generate a synthetic factored MDP and encode it to the binary wire format.

The generated model is a ring of machines: each machine owns one state and
one action variable, and its transitions depend on its right neighbour, so
factor scopes overlap the way multi-agent problems do. The same seed always
produces the same model and therefore the same content hash.

Example: gomdp-cli generate ring.fmdp --machines 6 --seed 12345`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(args[0], cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.Machines, "machines", cfg.Machines, "Number of machines in the ring")
	cmd.Flags().IntVar(&cfg.StateSize, "state-size", cfg.StateSize, "Cardinality of each state variable")
	cmd.Flags().IntVar(&cfg.ActionSize, "action-size", cfg.ActionSize, "Cardinality of each action variable")
	cmd.Flags().Float64Var(&cfg.RewardScale, "reward-scale", cfg.RewardScale, "Rewards are drawn from [0, scale)")
	cmd.Flags().Float64Var(&cfg.RewardStdDev, "reward-std-dev", cfg.RewardStdDev, "Reward noise applied to every cell")
	cmd.Flags().Float64Var(&cfg.Gamma, "gamma", cfg.Gamma, "Discount factor")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for deterministic generation")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [model-file]",
		Short: "Decode a model wire file and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
}

func newSimulateCmd() *cobra.Command {
	var learner string
	var episodes, timesteps int
	var seed int64
	var outPath, xlsxPath string

	cmd := &cobra.Command{
		Use:   "simulate [model-file]",
		Short: "Run a recorded experiment against a model file",
		Long: `Run an experiment against a model wire file and record the result stream.

Outcomes are appended to the stream as the run progresses, and the end marker
is only written when the run finishes, so a crashed run is distinguishable
from a complete one. The full run is determined by the model and the seed.

Example: gomdp-cli simulate ring.fmdp --episodes 10 --timesteps 100 --seed 7 --xlsx ring.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), args[0], learner, episodes, timesteps, seed, outPath, xlsxPath)
		},
	}

	cmd.Flags().StringVar(&learner, "learner", experiment.LearnerRandom.String(), "Learner driving the run")
	cmd.Flags().IntVar(&episodes, "episodes", 10, "Episodes to run")
	cmd.Flags().IntVar(&timesteps, "timesteps", 100, "Timesteps per episode")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic runs")
	cmd.Flags().StringVar(&outPath, "out", "", "Result stream path (defaults to <model>.results)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also export the outcomes as a workbook")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	var alpha float64

	cmd := &cobra.Command{
		Use:   "verify [results-file]",
		Short: "Check a recorded run against the model that generated it",
		Long: `Check a result stream against its embedded model.

The setup record at the head of the stream carries the full model, so the
stream is self-describing. Transition factors get a chi-square goodness-of-fit
test of observed next-value counts against each conditional distribution;
reward factors get a mean test per scope assignment. A healthy simulator,
codec, and storage path passes both.

Example: gomdp-cli verify ring.results --alpha 0.01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], alpha)
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", stats.DefaultAlpha, "Significance level for the fit checks")

	return cmd
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [results-file]",
		Short: "Print summary statistics for a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(args[0])
		},
	}
}

func runGenerate(path string, cfg testkit.ModelGeneratorConfig) error {
	model, err := testkit.NewModelGenerator(cfg).Generate()
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	payload, err := wire.EncodeModel(model)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("=== GENERATED MODEL ===\n")
	fmt.Printf("Name: %s\n", model.Name)
	fmt.Printf("Gamma: %g\n", model.Gamma)
	fmt.Printf("Variables: %d state, %d action\n", model.Variables.NumState(), model.Variables.NumAction())
	fmt.Printf("Factors: %d reward, %d transition\n", len(model.Rewards), len(model.Transitions))
	fmt.Printf("Content Hash: %s\n", core.NewModelHash(payload))
	fmt.Printf("\n✅ Wrote %d bytes to %s\n", len(payload), path)
	return nil
}

func runInspect(path string) error {
	model, payload, err := loadModel(path)
	if err != nil {
		return err
	}
	reg := model.Variables

	fmt.Printf("=== MODEL ===\n")
	fmt.Printf("Name: %s\n", model.Name)
	if model.Description != "" {
		fmt.Printf("Description: %s\n", model.Description)
	}
	fmt.Printf("Gamma: %g\n", model.Gamma)
	fmt.Printf("Content Hash: %s\n", core.NewModelHash(payload))
	fmt.Printf("Payload: %d bytes\n", len(payload))

	fmt.Printf("\n=== STATE VARIABLES (%d) ===\n", reg.NumState())
	for _, v := range reg.StateVariables() {
		fmt.Printf("  %d: values 0..%d\n", v.ID, v.Size-1)
	}
	fmt.Printf("\n=== ACTION VARIABLES (%d) ===\n", reg.NumAction())
	for _, v := range reg.ActionVariables() {
		fmt.Printf("  %d: values 0..%d\n", v.ID, v.Size-1)
	}

	fmt.Printf("\n=== REWARD FACTORS (%d) ===\n", len(model.Rewards))
	for _, f := range model.Rewards {
		min, max := f.Values[0], f.Values[0]
		for _, v := range f.Values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		noisy := ""
		for _, sd := range f.StdDev {
			if sd > 0 {
				noisy = ", noisy"
				break
			}
		}
		fmt.Printf("  %d: scope [%s], %d entries, range [%.4g, %.4g]%s\n",
			f.ID, formatDomain(f.Scope), len(f.Values), min, max, noisy)
	}

	fmt.Printf("\n=== TRANSITION FACTORS (%d) ===\n", len(model.Transitions))
	for _, f := range model.Transitions {
		targetSize, _ := f.TargetSize(reg)
		condSize, _ := f.Conditions.Size(reg)
		fmt.Printf("  %d: conditions [%s], %d blocks x %d outcomes\n",
			f.Target, formatDomain(f.Conditions), condSize, targetSize)
	}

	return nil
}

func runSimulate(ctx context.Context, modelPath, learner string, episodes, timesteps int, seed int64, outPath, xlsxPath string) error {
	model, payload, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	kind, err := experiment.ParseLearner(learner)
	if err != nil {
		return err
	}

	setup := &experiment.Setup{
		Name:        model.Name,
		Description: model.Description,
		Learner:     kind,
		Episodes:    episodes,
		Timesteps:   timesteps,
		Problem:     model,
	}
	if err := setup.Validate(); err != nil {
		return fmt.Errorf("invalid setup: %w", err)
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".results"
	}
	sink, err := results.Create(outPath)
	if err != nil {
		return err
	}

	fmt.Printf("Running %s learner on %q for %d episodes x %d timesteps (seed %d)...\n",
		kind, model.Name, episodes, timesteps, seed)

	svc := app.NewExperimentService(sim.NewEnvironment, sim.PolicyFor, sim.NewSeededStreams())
	report, err := svc.Run(ctx, app.RunRequest{
		Setup:       setup,
		Seed:        seed,
		ModelHash:   core.NewModelHash(payload),
		CodeVersion: "cli",
		Sink:        sink,
	})
	if err != nil {
		// A partial stream without its end marker would only invite
		// misreading, so a failed run leaves no file behind.
		sink.Close()
		os.Remove(outPath)
		return fmt.Errorf("run failed: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("failed to close result stream: %w", err)
	}

	fmt.Printf("\n=== RUN REPORT ===\n")
	fmt.Printf("Run ID: %s\n", report.RunID)
	fmt.Printf("Fingerprint: %s\n", report.Manifest.Fingerprint.Short())
	fmt.Printf("Steps: %d\n", len(report.Outcomes))
	fmt.Printf("Total Reward: %.4f\n", report.TotalReward)
	fmt.Printf("Runtime: %d ms\n", report.RuntimeMs)
	fmt.Printf("Result Stream: %s\n", outPath)

	if xlsxPath != "" {
		if err := excel.NewRunExporter(xlsxPath).Export(setup, report.Outcomes); err != nil {
			return fmt.Errorf("failed to export workbook: %w", err)
		}
		fmt.Printf("Workbook: %s\n", xlsxPath)
	}

	fmt.Printf("\n✅ RUN COMPLETED\n")
	fmt.Printf("Replay it with the same model file and --seed %d.\n", seed)
	return nil
}

func runVerify(path string, alpha float64) error {
	setup, outcomes, complete, err := readStream(path)
	if err != nil {
		return err
	}
	if !complete {
		fmt.Printf("⚠️  Stream has no end marker; the producing run did not finish.\n\n")
	}

	report, err := stats.NewModelFit(alpha).Check(setup.Problem, outcomes)
	if err != nil {
		return fmt.Errorf("fit check failed to run: %w", err)
	}

	fmt.Printf("=== MODEL FIT ===\n")
	fmt.Printf("Model: %s\n", setup.Name)
	fmt.Printf("Steps: %d | Alpha: %g\n", report.Steps, alpha)

	fmt.Printf("\nTransition factors:\n")
	for _, t := range report.Transitions {
		mark := "✅"
		if !t.Passed {
			mark = "❌"
		}
		fmt.Printf("  %s variable %d: chi2 %.3f, df %d, p %.4f (%d samples)",
			mark, t.Target, t.Statistic, t.DegreesOfFreedom, t.PValue, t.Samples)
		if t.Impossible > 0 {
			fmt.Printf(" | %d impossible transitions", t.Impossible)
		}
		fmt.Println()
	}

	fmt.Printf("\nReward factors:\n")
	for _, r := range report.Rewards {
		mark := "✅"
		if !r.Passed {
			mark = "❌"
		}
		fmt.Printf("  %s factor %d: worst z %.3f, p %.4f (%d samples)\n",
			mark, r.FactorID, r.WorstZ, r.PValue, r.Samples)
	}

	if !report.Passed {
		fmt.Printf("\n❌ MODEL FIT CHECK FAILED\n")
		return fmt.Errorf("recorded outcomes do not fit the model at alpha %g", alpha)
	}
	fmt.Printf("\n✅ MODEL FIT CHECK PASSED\n")
	return nil
}

func runSummary(path string) error {
	reader, err := results.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	summary, err := app.NewResultsService().SummarizeStream(reader)
	if err != nil {
		return err
	}

	fmt.Printf("=== RUN SUMMARY ===\n")
	if setup := reader.Setup(); setup != nil {
		fmt.Printf("Model: %s | Learner: %s\n", setup.Name, setup.Learner)
	}
	fmt.Printf("Steps: %d | Episodes: %d | Complete: %t\n", summary.Steps, summary.Episodes, summary.Complete)
	fmt.Printf("Total Reward: %.4f\n", summary.TotalReward)

	fmt.Printf("\n%-20s %8s %8s %8s %8s %8s %8s\n", "Distribution", "Mean", "Median", "StdDev", "Min", "Max", "P95")
	printDistribution("Reward/step", summary.RewardPerStep)
	for id, d := range summary.RewardByFactor {
		printDistribution(fmt.Sprintf("Reward factor %d", id), d)
	}
	printDistribution("Act time (ms)", summary.ActMs)
	printDistribution("Update time (ms)", summary.UpdateMs)

	return nil
}

func printDistribution(name string, d app.Distribution) {
	fmt.Printf("%-20s %8.3f %8.3f %8.3f %8.3f %8.3f %8.3f\n",
		name, d.Mean, d.Median, d.StdDev, d.Min, d.Max, d.P95)
}

// loadModel reads and decodes a model wire file.
func loadModel(path string) (*mdp.Model, []byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	model, err := wire.DecodeModel(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return model, payload, nil
}

// readStream drains a result stream into memory.
func readStream(path string) (*experiment.Setup, []experiment.Outcome, bool, error) {
	reader, err := results.Open(path)
	if err != nil {
		return nil, nil, false, err
	}
	defer reader.Close()

	var outcomes []experiment.Outcome
	for {
		outcome, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to read result stream: %w", err)
		}
		outcomes = append(outcomes, *outcome)
	}

	setup := reader.Setup()
	if setup == nil || setup.Problem == nil {
		return nil, nil, false, fmt.Errorf("result stream %s has no setup record", path)
	}
	return setup, outcomes, reader.Complete(), nil
}

func formatDomain(d mdp.Domain) string {
	parts := make([]string, len(d))
	for i, id := range d {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " ")
}
