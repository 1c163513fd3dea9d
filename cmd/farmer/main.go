// Command farmer drives the airdrop farming side: the daily on-chain
// action plan, testnet cycles and opportunity scanning.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/executor"
	"github.com/ajitpratap0/hyperfarm/internal/farmer"
	"github.com/ajitpratap0/hyperfarm/internal/metrics"
	"github.com/ajitpratap0/hyperfarm/internal/notify"
	"github.com/ajitpratap0/hyperfarm/internal/oracle"
	"github.com/ajitpratap0/hyperfarm/internal/planner"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/wallet"
)

var (
	flagConfig  string
	flagEnvFile string
	flagDryRun  bool
)

func main() {
	root := &cobra.Command{
		Use:           "farmer",
		Short:         "EVM airdrop farming orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: search for hyperfarm.yaml)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Path to env file with credentials")
	root.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Log actions instead of broadcasting transactions")

	root.AddCommand(runCmd(), onceCmd(), statusCmd(), scanCmd(), testnetCmd(), balancesCmd())

	if err := root.Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "farmer: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything the subcommands need
type app struct {
	cfg     *config.Config
	orch    *farmer.Orchestrator
	monitor *farmer.AirdropMonitor
	testnet *farmer.TestnetFarmer
}

func build() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	env, err := config.NewEnvLoader(flagEnvFile)
	if err != nil {
		return nil, err
	}
	if err := env.ApplySecrets(cfg); err != nil {
		return nil, err
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	logger := config.NewLogger("farmer")

	stateDir := cfg.State.Dir
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	budget := evm.NewBudgetTracker(cfg.Farming.BudgetUSD, cfg.Farming.GasReservePct)
	mgr := evm.NewManager(budget, logger)

	vault, err := wallet.Open(statefile.NewSecretStore(filepath.Join(stateDir, "farming_wallets.json")), logger)
	if err != nil {
		return nil, err
	}
	if cfg.Farming.PrivateKey != "" {
		if _, err := vault.ImportPrimary(cfg.Farming.PrivateKey); err != nil {
			return nil, fmt.Errorf("import farming key: %w", err)
		}
	}

	dryRun := flagDryRun || cfg.Farming.DryRun
	exec := executor.New(mgr, cfg.Farming.ETHPriceUSD, dryRun, logger)

	pl, err := planner.New(statefile.NewStore(filepath.Join(stateDir, "farm_schedule.json")), cfg.Farming, budget, logger)
	if err != nil {
		return nil, err
	}

	monitor := farmer.NewAirdropMonitor(
		oracle.NewClient(cfg.Oracle),
		statefile.NewStore(filepath.Join(stateDir, "airdrop_report.json")),
		logger,
	)
	testnet := farmer.NewTestnetFarmer(mgr, vault, logger)
	notifier := notify.New(cfg.Telegram, logger)

	orch, err := farmer.NewOrchestrator(
		statefile.NewStore(filepath.Join(stateDir, "farm_state.json")),
		cfg.Farming,
		farmer.Deps{
			Planner:  pl,
			Executor: exec,
			Vault:    vault,
			Monitor:  monitor,
			Testnet:  testnet,
			Notifier: notifier,
			Budget:   budget,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, orch: orch, monitor: monitor, testnet: testnet}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the orchestration loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			if a.cfg.Metrics.Enabled {
				server := metrics.NewServer(a.cfg.Metrics.Port, metrics.Providers{
					Farm: func() any { return a.orch.Status() },
				}, config.NewLogger("farmer"))
				go func() {
					if err := server.Run(ctx); err != nil {
						fmt.Fprintf(os.Stderr, "status server: %v\n", err)
					}
				}()
			}

			return a.orch.Loop(ctx)
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Execute one orchestration pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return a.orch.RunOnce(ctx)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the farm state as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			return printJSON(cmd, a.orch.Status())
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan for new airdrop candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			report, fresh, err := a.monitor.Scan(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Found %d candidates, %d new\n", report.TotalFound, len(fresh))
			return printJSON(cmd, report)
		},
	}
}

func testnetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "testnet",
		Short: "Run one testnet transaction cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			res, err := a.testnet.Cycle(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Sent %d testnet transactions\n", res.TotalTxns)
			for _, chain := range res.Unfunded {
				cmd.Printf("Underfunded: %s (needs a faucet top-up)\n", chain)
			}
			return nil
		},
	}
}

func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show testnet wallet balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			balances, err := a.testnet.ScanBalances(ctx)
			if err != nil {
				return err
			}
			for chain, wei := range balances {
				cmd.Printf("%-20s %.6f ETH\n", chain, evm.WeiToEth(wei))
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
