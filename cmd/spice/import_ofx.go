package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/spice-capture/internal/cli"
	"github.com/Veraticus/spice-capture/internal/ofx"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Capture debits from OFX/QFX statements",
		Long: `Feed each debit in an OFX or QFX statement through the capture workflow.
Every line gets its own conversation, so drafts can be reviewed later with
spice capture -c ofx-<account>-<fitid>.

Examples:
  spice import-ofx ~/Downloads/chase_jan_2024.qfx
  spice import-ofx --confirm ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().Bool("confirm", false, "confirm each captured draft automatically")
	cmd.Flags().BoolP("dry-run", "d", false, "list the lines without capturing them")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	autoConfirm, _ := cmd.Flags().GetBool("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to import")
	}

	parser := ofx.NewParser(slog.Default())
	var lines []ofx.StatementLine
	seen := make(map[string]bool)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := parser.Parse(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, l := range parsed {
			key := l.AccountID + "/" + l.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			lines = append(lines, l)
		}
	}

	if dryRun {
		for _, l := range lines {
			if l.Debit {
				fmt.Fprintln(out, l.Utterance())
			}
		}
		return nil
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bar := progressbar.NewOptions(len(lines),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Capturing statement lines...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	result, err := ofx.NewImporter(a.engine, slog.Default()).Import(ctx, lines, ofx.ImportOptions{
		UserID:      a.userID(),
		AutoConfirm: autoConfirm,
		Progress: func(done, _ int) {
			_ = bar.Set(done)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Captured %d, confirmed %d, skipped %d, failed %d",
		result.Captured, result.Confirmed, result.Skipped, result.Failed)))
	return nil
}
