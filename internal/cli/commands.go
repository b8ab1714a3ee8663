package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/exporter"
	"github.com/hive-corporation/watchtower-chat/internal/adapter/provider"
	"github.com/hive-corporation/watchtower-chat/internal/bootstrap"
	"github.com/hive-corporation/watchtower-chat/internal/config"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
)

// ErrIOCsFound is returned by scan --fail when the input contains IOCs.
var ErrIOCsFound = errors.New("IOCs found in input")

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show IOC totals per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd, func(ctx context.Context, repo ports.IOCRepository) error {
				stats, err := repo.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonOutput() {
					return writeJSON(out, stats)
				}

				headerColor.Fprintln(out, "IOC STATISTICS")
				headerColor.Fprintln(out, strings.Repeat("=", 40))
				fmt.Fprintf(out, "%-18s %d\n", "Total IOCs:", stats.Total)
				fmt.Fprintf(out, "%-18s %d\n", "Distinct values:", stats.Distinct)
				for _, t := range domain.IOCTypes {
					fmt.Fprintf(out, "  %-16s %d\n", t, stats.PerType[t])
				}
				return nil
			})
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var typeFlag string
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the most recent IOCs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iocType, err := domain.ParseIOCType(typeFlag)
			if err != nil {
				return err
			}
			return a.withRepo(cmd, func(ctx context.Context, repo ports.IOCRepository) error {
				iocs, err := repo.Query(ctx, domain.QueryFilter{Type: iocType, Limit: limit})
				if err != nil {
					return err
				}
				return a.renderIOCs(cmd.OutOrStdout(), iocs)
			})
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "filter by type (ip, domain, url)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of IOCs")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search TERM",
		Short: "Find IOCs whose value contains TERM (case-sensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd, func(ctx context.Context, repo ports.IOCRepository) error {
				iocs, err := repo.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return a.renderIOCs(cmd.OutOrStdout(), iocs)
			})
		},
	}
}

func (a *app) newUniqueCmd() *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "unique",
		Short: "Print distinct IOC values, sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			iocType, err := domain.ParseIOCType(typeFlag)
			if err != nil {
				return err
			}
			return a.withRepo(cmd, func(ctx context.Context, repo ports.IOCRepository) error {
				values, err := repo.UniqueValues(ctx, iocType)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonOutput() {
					return writeJSON(out, values)
				}
				for _, v := range values {
					fmt.Fprintln(out, v)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "filter by type (ip, domain, url)")
	return cmd
}

func (a *app) newExportCmd() *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every IOC to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd, func(ctx context.Context, repo ports.IOCRepository) error {
				exp, err := exporter.New(format, repo)
				if err != nil {
					return err
				}

				if err := writeFileAtomic(output, func(w io.Writer) error {
					return exp.Export(ctx, w)
				}); err != nil {
					return err
				}

				successColor.Fprintf(cmd.OutOrStdout(), "Exported IOCs to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "iocs_export.csv", "output file")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "export format ("+strings.Join(exporter.Formats, ", ")+")")
	return cmd
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it over path only once write succeeded. A failed write leaves any
// previous file at path untouched and no partial file behind.
func writeFileAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (a *app) newScanCmd() *cobra.Command {
	var file, tldFile, tldURL string
	var fail bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Classify the tokens of a text file without storing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("error reading file: %w", err)
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg := &config.Config{
				TLDFile:      tldFile,
				TLDSourceURL: tldURL,
				TLDClient:    provider.DefaultResilientClientConfig(),
			}
			logger := a.logger()
			tlds, err := bootstrap.LoadTLDs(ctx, bootstrap.TLDSource(cfg, logger), true, logger)
			if err != nil {
				return err
			}

			found := domain.ExtractIOCs(string(text), tlds)
			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				if err := writeJSON(out, scanResults(found)); err != nil {
					return err
				}
			} else {
				for _, c := range found {
					fmt.Fprintf(out, "[%s] %s\n", strings.ToUpper(c.Verdict.String()), c.Token)
				}
				if len(found) == 0 {
					successColor.Fprintln(out, "No IOCs found.")
				} else {
					warningColor.Fprintf(out, "%d IOC(s) found.\n", len(found))
				}
			}

			if fail && len(found) > 0 {
				return ErrIOCsFound
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "text file to scan (default: stdin)")
	cmd.Flags().StringVar(&tldFile, "tld-file", os.Getenv("TLD_FILE"), "local TLD list")
	cmd.Flags().StringVar(&tldURL, "tld-url", provider.DefaultIANATLDURL, "TLD list URL")
	cmd.Flags().BoolVar(&fail, "fail", false, "exit non-zero when any IOC is found")
	return cmd
}

type scanResult struct {
	Value string         `json:"value"`
	Type  domain.IOCType `json:"type"`
}

func scanResults(found []domain.Classification) []scanResult {
	out := make([]scanResult, 0, len(found))
	for _, c := range found {
		t, _ := c.IOCType()
		out = append(out, scanResult{Value: c.Token, Type: t})
	}
	return out
}

func (a *app) renderIOCs(out io.Writer, iocs []domain.IOC) error {
	if a.jsonOutput() {
		return writeJSON(out, iocs)
	}
	if len(iocs) == 0 {
		warningColor.Fprintln(out, "No IOCs found")
		return nil
	}

	headerColor.Fprintf(out, "%-8s %-8s %-45s %-25s %s\n", "ID", "TYPE", "VALUE", "CHAT", "DETECTED AT")
	for _, ioc := range iocs {
		fmt.Fprintf(out, "%-8d %-8s %-45s %-25s %s\n",
			ioc.ID, ioc.Type, truncate(ioc.Value, 45), truncate(ioc.Source.ChatLabel(), 25),
			ioc.DetectedAt.Local().Format(time.DateTime))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
