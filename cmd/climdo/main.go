package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/app"
)

var Version = "dev"

// Exit codes.
const (
	exitOK             = 0
	exitError          = 1
	exitSessionExpired = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &cli{stdin: stdin}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	return exitCode(root.ExecuteContext(ctx), stderr)
}

// exitCode prints err the way users see failures and maps it to the
// process exit status.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		fmt.Fprintf(stderr, "climdo: %s: %s\n", apiErr.Title, apiErr.Description)
		for _, field := range sortedKeys(apiErr.Fields) {
			for _, msg := range apiErr.Fields[field] {
				fmt.Fprintf(stderr, "  %s: %s\n", field, msg)
			}
		}
		if apiErr.Kind == api.KindUnauthorized {
			return exitSessionExpired
		}
		return exitError
	}
	fmt.Fprintf(stderr, "climdo: %v\n", err)
	return exitError
}

// cli holds the global flags shared by every command.
type cli struct {
	configPath string
	prefsPath  string
	apiURL     string
	logLevel   string

	stdin  io.Reader
	prompt *prompter
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "climdo",
		Short:         "Terminal client for the Climdo task manager",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          c.runDashboard,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.config/climdo/config.toml)")
	flags.StringVar(&c.prefsPath, "prefs", "", "dashboard preferences file (default ~/.config/climdo/prefs.toml)")
	flags.StringVar(&c.apiURL, "api-url", "", "API base URL, overriding config and CLIMDO_API_URL")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.whoamiCmd(),
		c.renameCmd(),
		c.tasksCmd(),
		c.groupsCmd(),
		c.dashboardCmd(),
		c.logsCmd(),
	)
	return root
}

// open builds the runtime for one command.
func (c *cli) open() (*app.Runtime, error) {
	return app.Open(app.Options{
		ConfigPath: c.configPath,
		PrefsPath:  c.prefsPath,
		APIURL:     c.apiURL,
		LogLevel:   c.logLevel,
	})
}

// errNotLoggedIn is reported by commands that need a session when none is
// saved.
var errNotLoggedIn = &api.Error{
	Kind:        api.KindUnauthorized,
	Title:       "Not Logged In",
	Description: "Run `climdo login` first.",
}

// withRuntime opens the runtime for fn and closes it afterwards. Close
// persists refreshed tokens; its failure is reported when fn succeeded.
func (c *cli) withRuntime(fn func(rt *app.Runtime) error) (err error) {
	rt, err := c.open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(rt)
}

// withSession is withRuntime for commands that need a saved session.
func (c *cli) withSession(fn func(rt *app.Runtime) error) error {
	return c.withRuntime(func(rt *app.Runtime) error {
		if !rt.LoggedIn() {
			return errNotLoggedIn
		}
		return fn(rt)
	})
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE:  c.runDashboard,
	}
}

func (c *cli) runDashboard(cmd *cobra.Command, _ []string) error {
	return c.withSession(func(rt *app.Runtime) error {
		if err := rt.Dashboard(cmd.Context()); err != nil {
			return err
		}
		if rt.SessionExpired() {
			return &api.Error{
				Kind:        api.KindUnauthorized,
				Title:       "Session Expired",
				Description: "Your session has expired. Please log in again.",
			}
		}
		return nil
	})
}
