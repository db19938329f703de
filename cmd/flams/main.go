// Command flams drives the build-and-knowledge-management core from the
// shell: queue creation, enqueuing files for a format, running a queue to
// completion, and migrating a sandboxed queue's output into the main
// MathHub tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FlexiFormal/FLAMS-sub003/internal/archive"
	"github.com/FlexiFormal/FLAMS-sub003/internal/backend"
	"github.com/FlexiFormal/FLAMS-sub003/internal/logbus"
	"github.com/FlexiFormal/FLAMS-sub003/internal/queuemgr"
	"github.com/FlexiFormal/FLAMS-sub003/internal/registry"
	"github.com/FlexiFormal/FLAMS-sub003/internal/stexplugin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// pluginsInitialized tracks whether the format/target registry has already
// been populated, since PersistentPreRunE can run once per process but
// initializing twice (e.g. in tests constructing cmdRoot repeatedly) would
// hit registry's duplicate-registration error.
var pluginsInitialized bool

var (
	// mathHubRoots is parsed from the required MATHHUB environment
	// variable, colon-separated per spec §6.
	mathHubRoots []string

	// logDir is FLAMS_LOGDIR, or a per-user config dir default.
	logDir string

	// adminPwd is FLAMS_ADMIN_PWD, read but not enforced here: the access
	// layer that would check it is a named-interface collaborator out of
	// scope for this engine (spec §1 Non-goals).
	adminPwd string

	// owner is the identity every queue created by this process is
	// recorded under. There are no user accounts (spec §1 Non-goals); a
	// single constant owner is enough for a CLI that always runs as
	// whoever invoked it.
	owner = "cli"

	global *backend.Global
	mgr    *queuemgr.Manager
	tree   = logbus.NewLogTree()

	cmdRoot = &cobra.Command{
		Use:               "flams",
		Short:             "flams: sTeX/FTML build and knowledge-management engine",
		PersistentPreRunE: preRun,
		SilenceUsage:      true,
	}
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.AddHook(tree)

	cmdRoot.AddCommand(cmdQueue)
}

// exit terminates the process immediately with code, for the CLI table's
// non-zero exit codes (spec §6: duplicate queue name, unknown
// archive/path) that a plain returned error can't express through cobra's
// default exit-1-on-error behavior.
func exit(code int) {
	os.Exit(code)
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// preRun resolves the environment and discovers every archive under
// MATHHUB before any subcommand runs, mirroring gangplank's preRun reading
// its job spec once for the whole command tree.
func preRun(cmd *cobra.Command, args []string) error {
	mathHub := os.Getenv("MATHHUB")
	if mathHub == "" {
		return fmt.Errorf("flams: MATHHUB is required (colon-separated list of MathHub roots)")
	}
	mathHubRoots = strings.Split(mathHub, ":")

	adminPwd = os.Getenv("FLAMS_ADMIN_PWD")

	logDir = os.Getenv("FLAMS_LOGDIR")
	if logDir == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			cfgDir = os.TempDir()
		}
		logDir = filepath.Join(cfgDir, "flams")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("flams: creating log dir %s: %w", logDir, err)
	}

	entry := log.NewEntry(log.StandardLogger())
	discovered := archive.Discover(mathHubRoots, entry)
	for _, a := range discovered {
		if err := archive.Scan(a); err != nil {
			entry.Warnf("flams: scanning %s: %v", a.ID(), err)
		}
	}
	global = backend.NewGlobal(mathHubRoots[0], discovered)
	mgr = queuemgr.NewManager()

	if !pluginsInitialized {
		if err := stexplugin.Initialize(); err != nil {
			return fmt.Errorf("flams: initializing plugins: %w", err)
		}
		registry.Freeze()
		pluginsInitialized = true
	}
	return nil
}
