// main.go - poolctl, the privacy pool client CLI.
//
// poolctl reads pool snapshots from a JSON file exported by an indexer,
// scores and selects pools, and assembles deposit and withdrawal payloads
// for an external builder to sign and submit. Deposit secrets are written
// out as bearer notes; whoever holds the note file can spend the deposit.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"poolcore/internal/assembler"
	"poolcore/internal/commit"
	"poolcore/internal/keys"
	"poolcore/internal/pool"
	"poolcore/internal/safety"
)

var (
	configPath string
	config     *Config
	logger     zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "Privacy pool deposit and withdrawal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			config, err = LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			level, err := zerolog.ParseLevel(config.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
			}
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "poolctl.json", "path to config file")

	root.AddCommand(poolsCommand())
	root.AddCommand(scoreCommand())
	root.AddCommand(depositCommand())
	root.AddCommand(withdrawCommand())
	root.AddCommand(statusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func poolsCommand() *cobra.Command {
	var denomination int64
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "List pools from the snapshot file",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, height, err := loadSnapshots(config.SnapshotPath)
			if err != nil {
				return err
			}
			logger.Info().Int64("height", height).Int("pools", len(snapshots)).Msg("snapshot loaded")

			if denomination > 0 {
				snapshots = pool.Filter(snapshots, denomination)
			}
			for _, s := range snapshots {
				report := pool.ScoreSnapshot(s)
				fmt.Printf("%-24s denom=%-12d ring=%d/%d unique=%d score=%s\n",
					s.PoolID, s.Denomination, len(s.Ring), s.MaxRingSize,
					report.UniqueDepositors, report.PrivacyScore)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&denomination, "denomination", "d", 0, "only pools of this denomination")
	return cmd
}

func scoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "score <pool-id>",
		Short: "Print the full health report for one pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, _, err := loadSnapshots(config.SnapshotPath)
			if err != nil {
				return err
			}
			s, err := findPool(snapshots, args[0])
			if err != nil {
				return err
			}
			return printJSON(pool.ScoreSnapshot(s))
		},
	}
}

func depositCommand() *cobra.Command {
	var denomination int64
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Assemble a deposit into the best pool of a denomination",
		RunE: func(cmd *cobra.Command, args []string) error {
			if denomination <= 0 {
				return fmt.Errorf("--denomination must be positive")
			}
			snapshots, height, err := loadSnapshots(config.SnapshotPath)
			if err != nil {
				return err
			}
			candidates := pool.Filter(snapshots, denomination)
			target := pool.SelectBest(candidates)
			if target == nil {
				return fmt.Errorf("no open pool with denomination %d", denomination)
			}
			logger.Info().Str("pool_id", target.PoolID).Msg("pool selected")

			guard := safety.NewGuard(config.Safety)
			a := assembler.New(guard, logger)
			payload, secret, err := a.AssembleDeposit(target)
			if err != nil {
				return err
			}

			notePath, err := writeNote(secret, payload, height)
			if err != nil {
				return err
			}
			logger.Info().Str("note", notePath).Msg("bearer note written; keep it safe")

			return printJSON(map[string]any{
				"pool_id":          payload.PoolID,
				"new_public_point": payload.NewPublicPoint.String(),
				"denomination":     payload.Denomination,
				"note_path":        notePath,
				"dry_run":          guard.DryRun(),
			})
		},
	}
	cmd.Flags().Int64VarP(&denomination, "denomination", "d", 0, "deposit denomination")
	return cmd
}

func withdrawCommand() *cobra.Command {
	var notePath, poolID string
	var recipient int64
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Assemble a withdrawal from a bearer note",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(notePath)
			if err != nil {
				return fmt.Errorf("failed to read note: %w", err)
			}
			note, err := commit.ImportNote(data)
			if err != nil {
				return err
			}
			if poolID == "" {
				poolID = note.Tier
			}
			if recipient == 0 {
				recipient = note.Amount
			}

			snapshots, height, err := loadSnapshots(config.SnapshotPath)
			if err != nil {
				return err
			}
			target, err := findPool(snapshots, poolID)
			if err != nil {
				return err
			}

			guard := safety.NewGuard(config.Safety)
			a := assembler.New(guard, logger)
			payload, err := a.AssembleWithdrawal(target, nil, note.Blinding, recipient, note.DepositHeight, height)
			if err != nil {
				return err
			}
			req := assembler.BuildSigningRequest(target, payload)

			ring := make([]string, len(req.Ring))
			for i, p := range req.Ring {
				ring[i] = p.String()
			}
			return printJSON(map[string]any{
				"pool_id":                payload.PoolID,
				"key_image":              payload.KeyImage.String(),
				"insert_proof":           hex.EncodeToString(payload.InsertProof),
				"new_digest":             hex.EncodeToString(payload.NewDigest),
				"context_extension":      hex.EncodeToString(payload.ContextExtension),
				"recipient_denomination": payload.RecipientDenomination,
				"ring":                   ring,
				"dry_run":                guard.DryRun(),
			})
		},
	}
	cmd.Flags().StringVarP(&notePath, "note", "n", "", "path to the bearer note file")
	cmd.Flags().StringVarP(&poolID, "pool", "p", "", "pool to withdraw from (default: the note's pool)")
	cmd.Flags().Int64VarP(&recipient, "recipient", "r", 0, "recipient denomination (default: the note's amount)")
	cmd.MarkFlagRequired("note")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the active safety policy and budget status",
		RunE: func(cmd *cobra.Command, args []string) error {
			guard := safety.NewGuard(config.Safety)
			return printJSON(map[string]any{
				"policy": config.Safety,
				"status": guard.Status(),
			})
		},
	}
}

// writeNote stores the deposit secret as a bearer note, binding it to the
// amount through a commitment so later tampering is detectable. The current
// height is recorded so the withdrawal delay counts from the deposit, not
// from the pool's creation.
func writeNote(secret *keys.Secret, payload *assembler.DepositPayload, height int64) (string, error) {
	c, err := commit.Commit(secret, payload.Denomination)
	if err != nil {
		return "", err
	}
	note := &commit.DepositSecret{
		Blinding:      secret,
		Commitment:    c,
		Amount:        payload.Denomination,
		Tier:          payload.PoolID,
		DepositHeight: height,
	}
	data, err := note.ExportNote()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(config.NotesDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create notes directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.json", payload.PoolID, payload.NewPublicPoint.String()[:8])
	path := filepath.Join(config.NotesDir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write note: %w", err)
	}
	return path, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
