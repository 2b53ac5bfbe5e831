// Package cli implements the archivist command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rfowler1994/project-archivist/internal/paths"
	"github.com/rfowler1994/project-archivist/pkg/sqlite"
	"github.com/rfowler1994/project-archivist/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state shared by every subcommand of
// one invocation.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool

	// cfg is loaded from config.yaml before any subcommand runs.
	cfg    fileConfig
	logger *slog.Logger
	stderr io.Writer
}

// NewRootCmd creates the top-level "archivist" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "archivist",
		Short: "Schema-driven entity archive",
		Long: "Archivist stores typed entities whose custom fields are defined at run time.\n" +
			"Define entity types and their fields, then create, promote, and update entities\n" +
			"that are validated against the live schema.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			a.logger = newLogger(a.stderr, a.verbose)
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: data_dir from config.yaml, $"+paths.EnvDataDir+", or ./"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newTypeCmd(a))
	root.AddCommand(newFieldCmd(a))
	root.AddCommand(newEntityCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns its exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	printError(stderr, err)
	return exitCode(err)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withArchive attaches the archive described by the loaded configuration,
// runs fn, and detaches. A Detach failure is reported only when fn succeeded.
func (a *app) withArchive(fn func(archive types.Archive) error) (err error) {
	cfg, err := a.archiveConfig()
	if err != nil {
		return err
	}

	archive := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := archive.Attach(cfg); err != nil {
		return systemError(fmt.Errorf("attach archive: %w", err))
	}
	defer func() {
		if derr := archive.Detach(); derr != nil && err == nil {
			err = systemError(fmt.Errorf("detach archive: %w", derr))
		}
	}()

	return classify(fn(archive))
}

// classify marks archive errors that are not the caller's fault as system
// errors so they exit with exitSysError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ue userError
	if errors.As(err, &ue) {
		return err
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	var se sysError
	if errors.As(err, &se) {
		return err
	}
	return systemError(err)
}

// userError marks an error caused by bad input that no sentinel covers, such
// as a malformed flag value.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

// sysError marks an environment failure: file system, database, encoding.
type sysError struct{ err error }

func (e sysError) Error() string { return e.err.Error() }
func (e sysError) Unwrap() error { return e.err }

func systemError(err error) error {
	return sysError{err}
}

// userErrors are sentinels that mean the request itself was wrong.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrUnknownEntityType,
	types.ErrDuplicateName,
	types.ErrDuplicateField,
	types.ErrInvalidConfiguration,
	types.ErrInvalidFieldType,
	types.ErrValidationFailed,
	types.ErrConflictingUpdate,
	types.ErrTypeInUse,
	types.ErrInvalidName,
	types.ErrInvalidID,
	types.ErrTypeMismatch,
}

// exitCode maps err to exitUserError or exitSysError. Errors cobra raises
// for bad arguments or flags are user errors.
func exitCode(err error) int {
	var se sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	var ue userError
	if errors.As(err, &ue) {
		return exitUserError
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	if errors.Is(err, types.ErrArchiveDetached) || errors.Is(err, context.Canceled) {
		return exitSysError
	}
	// Anything left came from cobra's argument and flag parsing.
	return exitUserError
}

// printError writes err to w. Validation failures are listed one violation
// per line as "field: rule: message".
func printError(w io.Writer, err error) {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintln(w, "Error:", types.ErrValidationFailed)
		for _, fe := range ve.Errors {
			fmt.Fprintln(w, fe.String())
		}
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
