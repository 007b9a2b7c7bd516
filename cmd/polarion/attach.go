package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/almforge/go-polarion"
	"github.com/almforge/go-polarion/pkg/attachments"
)

var (
	attachDir     string
	attachPattern string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Mirror a directory against a work item's attachments",
	Long: `Mirror a local directory against the attachments of a work item.
push uploads changed files, pull downloads newer server content, and
watch keeps pushing as files change until interrupted.`,
}

// attachMirror loads the target work item and builds the mirror over
// the configured directory.
func attachMirror(ctx context.Context, id string) (*polarion.Client, *attachments.Mirror, error) {
	client, profile, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	project, err := openProject(ctx, client, profile)
	if err != nil {
		client.Close(ctx)
		return nil, nil, err
	}
	item, err := project.WorkItem(ctx, id)
	if err != nil {
		client.Close(ctx)
		return nil, nil, err
	}
	m, err := attachments.New(item, attachments.Config{
		Dir:     attachDir,
		Pattern: attachPattern,
		Logger:  slog.Default(),
	})
	if err != nil {
		client.Close(ctx)
		return nil, nil, err
	}
	return client, m, nil
}

var attachPushCmd = &cobra.Command{
	Use:   "push [workitem-id]",
	Short: "Upload changed local files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, m, err := attachMirror(ctx, args[0])
		if err != nil {
			fatal("Failed to open mirror", err)
		}
		defer client.Close(ctx)

		pushed, err := m.Push(ctx)
		if err != nil {
			fatal("Push failed", err)
		}
		for _, name := range pushed {
			fmt.Printf("pushed %s\n", name)
		}
		fmt.Printf("%d file(s) pushed.\n", len(pushed))
	},
}

var attachPullCmd = &cobra.Command{
	Use:   "pull [workitem-id]",
	Short: "Download newer server attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, m, err := attachMirror(ctx, args[0])
		if err != nil {
			fatal("Failed to open mirror", err)
		}
		defer client.Close(ctx)

		pulled, err := m.Pull(ctx)
		if err != nil {
			fatal("Pull failed", err)
		}
		for _, name := range pulled {
			fmt.Printf("pulled %s\n", name)
		}
		fmt.Printf("%d file(s) pulled.\n", len(pulled))
	},
}

var attachWatchCmd = &cobra.Command{
	Use:   "watch [workitem-id]",
	Short: "Push local changes as they happen",
	Long:  `Watch the directory and push every matching change until interrupted.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, m, err := attachMirror(ctx, args[0])
		if err != nil {
			fatal("Failed to open mirror", err)
		}
		defer client.Close(context.Background())

		events, err := m.Watch(ctx)
		if err != nil {
			fatal("Failed to start watcher", err)
		}
		fmt.Printf("Watching %s (interrupt to stop)\n", attachDir)

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				fmt.Println(e.String())
			case <-ctx.Done():
				if err := m.Stop(context.Background()); err != nil {
					fmt.Fprintf(os.Stderr, "stop: %v\n", err)
				}
				return
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.PersistentFlags().StringVarP(&attachDir, "dir", "d", ".", "Local mirror directory")
	attachCmd.PersistentFlags().StringVar(&attachPattern, "pattern", "", `Glob filter relative to the directory (default "**/*")`)
	attachCmd.AddCommand(attachPushCmd)
	attachCmd.AddCommand(attachPullCmd)
	attachCmd.AddCommand(attachWatchCmd)
}
