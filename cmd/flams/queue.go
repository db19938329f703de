package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queue"
	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
	"github.com/FlexiFormal/FLAMS-sub003/internal/scheduler"
	"github.com/FlexiFormal/FLAMS-sub003/internal/task"
	"github.com/FlexiFormal/FLAMS-sub003/internal/uris"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagQueueName string
	flagSandbox   bool
	flagArchive   string
	flagGroup     string
	flagPath      string
	flagFormat    string
	flagAll       bool
	flagThreads   int

	cmdQueue = &cobra.Command{
		Use:   "queue",
		Short: "Create, feed, and run build queues",
	}

	cmdQueueNew = &cobra.Command{
		Use:   "new",
		Short: "Create a new queue",
		RunE:  runQueueNew,
	}

	cmdQueueEnqueue = &cobra.Command{
		Use:   "enqueue QUEUE_ID",
		Short: "Enqueue source files for a format into a queue",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueEnqueue,
	}

	cmdQueueStart = &cobra.Command{
		Use:   "start QUEUE_ID",
		Short: "Run a queue to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueStart,
	}

	cmdQueueMigrate = &cobra.Command{
		Use:   "migrate QUEUE_ID",
		Short: "Promote a sandboxed queue's built artifacts into the global backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueMigrate,
	}

	cmdQueueDelete = &cobra.Command{
		Use:   "delete QUEUE_ID",
		Short: "Delete a queue",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueueDelete,
	}

	cmdQueueLs = &cobra.Command{
		Use:   "ls",
		Short: "List every queue",
		RunE:  runQueueLs,
	}
)

func init() {
	cmdQueueNew.Flags().StringVar(&flagQueueName, "name", "", "queue name")
	cmdQueueNew.Flags().BoolVar(&flagSandbox, "sandbox", false, "back the queue with a sandboxed overlay backend")
	cmdQueueNew.MarkFlagRequired("name")

	cmdQueueEnqueue.Flags().StringVar(&flagArchive, "archive", "", "archive id to enqueue")
	cmdQueueEnqueue.Flags().StringVar(&flagGroup, "group", "", "archive group (id prefix) to enqueue")
	cmdQueueEnqueue.Flags().StringVar(&flagPath, "path", "", "enqueue a single file by its relative path, instead of the whole archive")
	cmdQueueEnqueue.Flags().StringVar(&flagFormat, "format", "", "source format to enqueue")
	cmdQueueEnqueue.Flags().BoolVar(&flagAll, "all", false, "enqueue every matching file, not just New/Stale ones")
	cmdQueueEnqueue.MarkFlagRequired("format")

	cmdQueueStart.Flags().IntVar(&flagThreads, "threads", 1, "number of concurrent build permits; 1 runs the queue on the calling goroutine")

	cmdQueue.AddCommand(cmdQueueNew, cmdQueueEnqueue, cmdQueueStart, cmdQueueMigrate, cmdQueueDelete, cmdQueueLs)
}

func runQueueNew(cmd *cobra.Command, args []string) error {
	for _, q := range mgr.AllQueues() {
		if q.Name == flagQueueName {
			fmt.Fprintf(cmd.ErrOrStderr(), "flams: a queue named %q already exists\n", flagQueueName)
			exit(2)
		}
	}

	var q *queue.Queue
	if flagSandbox {
		overlayBase := filepath.Join(logDir, "sandboxes")
		sb, err := newSandboxedQueue(flagQueueName, overlayBase)
		if err != nil {
			return err
		}
		q = sb
	} else {
		q = mgr.NewQueue(flagQueueName, global, owner)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", q.ID)
	return nil
}

// newSandboxedQueue wraps Manager.NewSandboxedQueue and returns just the
// queue, since cmdQueueNew only needs to report its id.
func newSandboxedQueue(name, overlayBase string) (*queue.Queue, error) {
	q, _, err := mgr.NewSandboxedQueue(name, global, overlayBase, owner)
	return q, err
}

func parseQueueID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("flams: invalid QUEUE_ID %q: %w", s, err)
	}
	return id, nil
}

func runQueueEnqueue(cmd *cobra.Command, args []string) error {
	id, err := parseQueueID(args[0])
	if err != nil {
		return err
	}
	q, ok := mgr.GetQueue(id)
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "flams: no such queue %d\n", id)
		exit(3)
	}

	be, ok := q.Backend.(backend.Backend)
	if !ok {
		return fmt.Errorf("flams: queue %d has no usable backend", id)
	}

	format, ok := registry.FormatByName(flagFormat)
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "flams: no such format %q\n", flagFormat)
		exit(3)
	}
	targets := make([]string, 0, len(format.Targets))
	for _, t := range format.Targets {
		targets = append(targets, t.String())
	}

	var resolve queue.DependencyResolver
	if format.Dependencies != nil {
		resolve = func(t *task.BuildTask) []task.TargetedDependency {
			raw := format.Dependencies(be, t)
			deps := make([]task.TargetedDependency, 0, len(raw))
			for _, r := range raw {
				if d, ok := r.(task.TargetedDependency); ok {
					deps = append(deps, d)
				}
			}
			return deps
		}
	}

	staleOnly := !flagAll
	count := 0

	switch {
	case flagArchive != "":
		archiveID, err := uris.ParseArchiveId(flagArchive)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "flams: invalid archive id %q: %v\n", flagArchive, err)
			exit(3)
		}
		a, ok := be.FindArchive(archiveID)
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "flams: unknown archive %q\n", flagArchive)
			exit(3)
		}
		if flagPath != "" {
			f, ok := a.FindFile(flagPath)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "flams: unknown path %q in archive %q\n", flagPath, flagArchive)
				exit(3)
			}
			count = q.Enqueue(archiveID, format.Name, targets, staleOnly, []queue.FileCandidate{{RelPath: f.RelPath, States: f.States}}, resolve)
		} else {
			count = q.EnqueueArchive(a, format.Name, targets, staleOnly, resolve)
		}

	case flagGroup != "":
		if flagPath != "" {
			return fmt.Errorf("flams: --path is only valid together with --archive")
		}
		groupID, err := uris.ParseArchiveId(flagGroup)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "flams: invalid group id %q: %v\n", flagGroup, err)
			exit(3)
		}
		group := archive.NewArchiveGroup(groupID)
		matched := 0
		for _, a := range be.Archives() {
			if archiveInGroup(a.ID(), flagGroup) {
				group.AddArchive(a)
				matched++
			}
		}
		if matched == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "flams: no archives match group %q\n", flagGroup)
			exit(3)
		}
		count = q.EnqueueGroup(group, format.Name, targets, staleOnly, resolve)

	default:
		return fmt.Errorf("flams: exactly one of --archive or --group is required")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", humanize.Comma(int64(count)))
	return nil
}

// archiveInGroup reports whether id falls under the group prefix, matching
// either the group itself or any of its sub-archives ("a/b" is in group
// "a", "ab" is not).
func archiveInGroup(id uris.ArchiveId, group string) bool {
	s := id.String()
	return s == group || strings.HasPrefix(s, group+"/")
}

func runQueueStart(cmd *cobra.Command, args []string) error {
	id, err := parseQueueID(args[0])
	if err != nil {
		return err
	}
	q, ok := mgr.GetQueue(id)
	if !ok {
		return fmt.Errorf("flams: no such queue %d", id)
	}
	be, ok := q.Backend.(backend.Backend)
	if !ok {
		return fmt.Errorf("flams: queue %d has no usable backend", id)
	}

	q.Start()

	var sem scheduler.Semaphore
	if flagThreads <= 1 {
		sem = scheduler.Linear{}
	} else {
		sem = scheduler.NewCounting(flagThreads)
	}

	logEntry := log.WithField("target", fmt.Sprintf("queue/%d", id))
	scheduler.RunQueue(q, be, sem, logEntry)

	fmt.Fprintf(cmd.OutOrStdout(), "queue %d drained\n", id)
	return nil
}

func runQueueMigrate(cmd *cobra.Command, args []string) error {
	id, err := parseQueueID(args[0])
	if err != nil {
		return err
	}
	result, err := mgr.Migrate(id)
	if err != nil {
		return err
	}
	for _, ferr := range result.Failed {
		log.Warnf("flams: migrate: %v", ferr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s artifacts, %s repositories promoted\n",
		humanize.Comma(int64(result.Promoted)), humanize.Comma(int64(result.PromotedRepos)))
	return nil
}

func runQueueDelete(cmd *cobra.Command, args []string) error {
	id, err := parseQueueID(args[0])
	if err != nil {
		return err
	}
	mgr.Delete(id)
	return nil
}

func runQueueLs(cmd *cobra.Command, args []string) error {
	for _, q := range mgr.AllQueues() {
		state := "idle"
		if q.State() == queue.StateRunning {
			state = "running"
			if q.IsDrained() {
				state = "drained"
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", q.ID, q.Name, state)
	}
	return nil
}
