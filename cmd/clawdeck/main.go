// Command clawdeck is the CLI for the clawdeck daemon: projects, threads,
// brain dumps, board cards, and interactive sends from the terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clawdeck/clawdeck/internal/config"
	"github.com/clawdeck/clawdeck/internal/control"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getClient() (*control.Client, error) {
	client, err := control.NewClient(cfg.Daemon.Socket)
	if err != nil {
		return nil, fmt.Errorf("is clawdeckd running? %w", err)
	}
	return client, nil
}

var rootCmd = &cobra.Command{
	Use:   "clawdeck",
	Short: "Threaded conversations over the openclaw agent",
	Long: `clawdeck - organize agent conversations into persistent threads.

Threads wrap agent sessions; projects group threads; brain dumps capture
quick notes the daemon can follow up on autonomously.

Examples:
  clawdeck thread                   # List threads
  clawdeck thread new               # Start a fresh thread
  clawdeck send <thread-id> "hi"    # Send a message
  clawdeck watch <thread-id>        # Stream a thread live
  clawdeck dump "look into X" -a    # Capture a proactive note`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThreadList(nil)
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectList()
	},
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		color, _ := cmd.Flags().GetString("color")
		return runProjectNew(args[0], description, color)
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a project and its threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectRm(args[0])
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		var projectID *string
		if project != "" {
			projectID = &project
		}
		return runThreadList(projectID)
	},
}

var threadNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a thread with a fresh session",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		var projectID *string
		if project != "" {
			projectID = &project
		}
		return runThreadNew(projectID)
	},
}

var threadRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThreadRename(args[0], args[1])
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runThreadRm(args[0])
	},
}

var showCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print a thread's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShow(args[0])
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <thread-id> <message...>",
	Short: "Send a message and print the exchange",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(args[0], strings.Join(args[1:], " "))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <thread-id>",
	Short: "Stream a thread's events until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(args[0])
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump [text...]",
	Short: "Capture and manage brain dumps",
	Long: `Capture quick notes.

With no args: list brain dumps
With text: capture a new note

Flags:
  -a  flag the note for autonomous follow-up
  -p  attach the note to a project`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runDumpList()
		}
		proactive, _ := cmd.Flags().GetBool("auto")
		project, _ := cmd.Flags().GetString("project")
		var projectID *string
		if project != "" {
			projectID = &project
		}
		return runDumpAdd(strings.Join(args, " "), projectID, proactive)
	},
}

var dumpStatusCmd = &cobra.Command{
	Use:   "status <id> <open|in_progress|done>",
	Short: "Update a brain dump's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDumpStatus(args[0], args[1])
	},
}

var dumpConvertCmd = &cobra.Command{
	Use:   "convert <id>",
	Short: "Turn a brain dump into a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDumpConvert(args[0])
	},
}

var dumpRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a brain dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDumpRm(args[0])
	},
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage the planning board",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		var projectID *string
		if project != "" {
			projectID = &project
		}
		return runBoardList(projectID)
	},
}

var boardAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a card to the board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		column, _ := cmd.Flags().GetString("column")
		var projectID *string
		if project != "" {
			projectID = &project
		}
		return runBoardAdd(args[0], projectID, column)
	},
}

var boardMoveCmd = &cobra.Command{
	Use:   "move <id> <backlog|this_week|in_progress|done>",
	Short: "Move a card to a column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBoardMove(args[0], args[1])
	},
}

var boardRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBoardRm(args[0])
	},
}

func init() {
	projectNewCmd.Flags().StringP("description", "d", "", "Project description")
	projectNewCmd.Flags().StringP("color", "c", "", "Project color")
	projectCmd.AddCommand(projectNewCmd, projectRmCmd)

	threadCmd.Flags().StringP("project", "p", "", "Filter by project id")
	threadNewCmd.Flags().StringP("project", "p", "", "Project id")
	threadCmd.AddCommand(threadNewCmd, threadRenameCmd, threadRmCmd)

	dumpCmd.Flags().BoolP("auto", "a", false, "Flag for autonomous follow-up")
	dumpCmd.Flags().StringP("project", "p", "", "Project id")
	dumpCmd.AddCommand(dumpStatusCmd, dumpConvertCmd, dumpRmCmd)

	boardCmd.Flags().StringP("project", "p", "", "Filter by project id")
	boardAddCmd.Flags().StringP("project", "p", "", "Project id")
	boardAddCmd.Flags().StringP("column", "c", "", "Starting column")
	boardCmd.AddCommand(boardAddCmd, boardMoveCmd, boardRmCmd)

	rootCmd.AddCommand(projectCmd, threadCmd, showCmd, sendCmd, watchCmd, dumpCmd, boardCmd)
}
