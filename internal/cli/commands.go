package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/tether/internal/daemon"
	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/voice"
)

const commandTimeout = 2 * time.Minute

// --- sync command ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile local reminders with the remote service",
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.db.Close()

	list, err := a.Reminders.Sync(ctx)
	if err != nil {
		return err
	}

	synced := 0
	for _, r := range list {
		if r.Synced {
			synced++
		}
	}
	fmt.Printf("%d reminders, %d synced\n", len(list), synced)
	return nil
}

// --- queue commands ---

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the offline transcription queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.db.Close()

		items := a.Queue.Items()
		if len(items) == 0 {
			fmt.Println("Offline queue is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "HANDLE\tRETRIES\tQUEUED")
		for _, it := range items {
			queued := time.UnixMilli(it.Timestamp).Format(time.DateTime)
			fmt.Fprintf(tw, "%s\t%d\t%s\n", it.ResourceHandle, it.Retries, queued)
		}
		return tw.Flush()
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add [audio file]",
	Short: "Queue a recording for transcription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.db.Close()

		it := a.Queue.Add(args[0])
		fmt.Printf("queued %s (%d pending)\n", it.ResourceHandle, len(a.Queue.Items()))
		return nil
	},
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Submit every pending recording once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		rep, err := processQueue(ctx)
		if err != nil {
			return err
		}
		if rep.Offline {
			fmt.Println("Offline; nothing submitted.")
			return nil
		}
		fmt.Printf("delivered %d, failed %d, abandoned %d, remaining %d\n",
			rep.Delivered, rep.Failed, rep.Abandoned, rep.Remaining)
		return nil
	},
}

// processQueue hands the pass to a running server when there is one, so the
// single-flight guard covers both.
func processQueue(ctx context.Context) (queue.Report, error) {
	cfg, err := loadConfig()
	if err != nil {
		return queue.Report{}, err
	}
	if d := daemon.NewClient(cfg.ListenAddr()); d.Healthy(ctx) {
		return d.ProcessQueue(ctx)
	}

	a, err := openApp(ctx)
	if err != nil {
		return queue.Report{}, err
	}
	defer a.db.Close()

	a.Voice.Delivered = printResult
	return a.Queue.Process(ctx, a.Voice.Complete)
}

// --- capture command ---

var captureCmd = &cobra.Command{
	Use:   "capture [audio file]",
	Short: "Transcribe a voice note, queueing it if offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		handle, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}

		res, err := capture(ctx, handle)
		if err != nil {
			return err
		}
		if res.Queued {
			fmt.Printf("offline; queued %s\n", res.Handle)
		} else {
			printResult(res)
		}
		fmt.Printf("%d recordings left this month\n", res.Remaining)
		return nil
	},
}

func capture(ctx context.Context, handle string) (voice.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return voice.Result{}, err
	}
	if d := daemon.NewClient(cfg.ListenAddr()); d.Healthy(ctx) {
		return d.Capture(ctx, handle)
	}

	a, err := openApp(ctx)
	if err != nil {
		return voice.Result{}, err
	}
	defer a.db.Close()
	return a.Voice.Capture(ctx, handle)
}

func printResult(res voice.Result) {
	tag := ""
	if res.FromCache {
		tag = " (cached)"
	}
	fmt.Printf("%s: %s%s\n", res.Handle, res.Cleaned, tag)
}

// --- cache command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the transcription cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop stale, rarely used cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.db.Close()

		removed := a.Cache.ClearOldEntries()
		fmt.Printf("removed %d entries, %d kept\n", removed, len(a.Cache.Entries()))
		return nil
	},
}

// --- usage command ---

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show this month's voice recording usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.db.Close()

		c := a.Usage.Current()
		fmt.Printf("%04d-%02d: %d of %d recordings used, %d remaining\n",
			c.Year, c.Month, c.Count, a.Usage.Limit, a.Usage.Remaining())
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueProcessCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
