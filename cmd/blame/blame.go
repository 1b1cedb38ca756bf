// Package blame contains the command that computes the blame of a single feature and prints it.
package blame

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/K-rankenste-in/facilpad/cmd/util"
	"github.com/K-rankenste-in/facilpad/internal/blame"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

const (
	outputFlag   = "output"
	progressFlag = "progress"

	OutputJSON = "json"
	OutputText = "text"
)

// NewBlameCommand returns the command that prints the blame of a way or relation.
func NewBlameCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blame <way|relation> <id>",
		Short: "Print which changesets produced the current geometry of a way or relation",
		Long: `Print which changesets produced the current geometry of a way or relation.

The result is printed as JSON, or as one line per path segment with --output text.`,
		Example: "osmblame blame way 4044522\nosmblame blame relation 62422 --output text --progress",
		Args:    cobra.ExactArgs(2),
		PreRun: func(cmd *cobra.Command, _ []string) {
			util.BindCommonFlags(cmd)
		},
		RunE: run,
	}

	util.AddCommonFlags(cmd)
	flags := cmd.Flags()
	flags.StringP(outputFlag, "o", OutputJSON, "the output format, one of 'json' or 'text'")
	flags.Bool(progressFlag, false, "report progress on stderr")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	featureType, err := osm.ParseFeatureType(args[0])
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid feature id %q", args[1])
	}

	output, _ := cmd.Flags().GetString(outputFlag)
	if output != OutputJSON && output != OutputText {
		return fmt.Errorf("--output must be one of ['%s', '%s'], got %q", OutputJSON, OutputText, output)
	}

	config, err := util.ReadConfig()
	if err != nil {
		return err
	}
	if err := config.Verify(); err != nil {
		return err
	}

	// logs go to stderr, the result to stdout
	log := logger.MustNewLogger(config.Log.Format, config.Log.Level, config.Log.TimestampFormat)

	historyFile, _ := cmd.Flags().GetString(util.HistoryFileFlag)
	source, err := util.NewHistorySource(&config.OSM, historyFile)
	if err != nil {
		return err
	}
	engine := util.NewEngine(config, source, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.Blame.Timeout)
	defer cancel()

	var opts []blame.BlameOption
	if progress, _ := cmd.Flags().GetBool(progressFlag); progress {
		opts = append(opts, blame.WithProgress(progressPrinter(cmd.ErrOrStderr())))
	}

	result, err := engine.Blame(ctx, featureType, id, opts...)
	if err != nil {
		return err
	}

	if output == OutputText {
		return WriteText(cmd.OutOrStdout(), result)
	}
	return WriteJSON(cmd.OutOrStdout(), result)
}

func progressPrinter(w io.Writer) blame.ProgressFunc {
	return func(fraction float64) error {
		_, err := fmt.Fprintf(w, "progress: %3.0f%%\n", fraction*100)
		return err
	}
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result *blame.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteText writes a header line for the feature and one tab aligned line per path segment:
// colour, user, changeset, timestamp and the nodes of the path.
func WriteText(w io.Writer, result *blame.Result) error {
	f := result.Feature
	if _, err := fmt.Fprintf(w, "%s v%d, changeset %d by %s at %s\n",
		f.Key(), f.Version, f.Changeset, f.User, f.Timestamp.UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range result.Segments {
		nodes := make([]string, 0, len(s.Path))
		for _, n := range s.Path {
			nodes = append(nodes, strconv.FormatInt(n.ID, 10))
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			result.Users[s.User].Colour,
			s.User,
			s.Changeset,
			s.Timestamp.UTC().Format(time.RFC3339),
			strings.Join(nodes, " "),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}
