package cli

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the main CLI entry point. It parses args and dispatches to the
// appropriate subcommand, returning a process exit code.
func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "rotate":
		return runRotate(ctx, args[1:])
	case "cycle":
		return runCycle(ctx, args[1:])
	case "manage":
		return runManage(ctx, args[1:])
	case "monitor":
		return runMonitor(ctx, args[1:])
	case "log-access":
		return runLogAccess(args[1:])
	case "version", "--version", "-v":
		printVersion()
		return 0
	case "-h", "--help", "help":
		printUsage()
		return 0
	default:
		printUsage()
		return 2
	}
}
