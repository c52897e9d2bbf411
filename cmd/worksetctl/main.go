// worksetctl is the command-line control client for the workset daemon.
// It forwards one command over the daemon's named pipe and relays the
// response to stdout/stderr, mirroring the daemon's exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"workset/internal/ipc"
)

const usageText = `usage: worksetctl [-pipe <name>] <command> [args...]

workspace commands:
  list                                show all workspaces
  status                              dump workspace state as JSON
  add <name>                          create an empty workspace
  remove <name>                       delete a workspace
  rename <name> <new-name>            rename a workspace
  enable <name> | disable <name>      toggle activation dispatch

hotkey commands:
  set-hotkey <name> <binding>         bind a shortcut, e.g. Ctrl+Alt+F1
  clear-hotkey <name>                 remove the shortcut

window commands:
  capture <name>                      add the foreground window (rect = home = target)
  capture-home <name> <index>         set the window's home rect from its current position
  capture-target <name> <index>       set the window's target rect from its current position
  recapture <name> <index>            re-point a dead entry at the foreground window
  remove-window <name> <index>        drop a tracked window

daemon commands:
  toggle <name>                       toggle a workspace as if its hotkey fired
  save | reload                       persist or re-read the workspace file
  history [count]                     show recent activations
  ping                                check the daemon is up

The pipe name defaults to the per-user daemon pipe; WORKSET_PIPE overrides it.
`

func main() {
	pipeName := flag.String("pipe", "", "daemon pipe name (default: per-user)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	resp, err := ipc.Send(*pipeName, ipc.Request{Command: args[0], Args: args[1:]})
	if err != nil {
		if ipc.IsConnectionError(err) {
			fmt.Fprintln(os.Stderr, "worksetctl: cannot reach the workset daemon; is it running?")
		} else {
			fmt.Fprintf(os.Stderr, "worksetctl: %v\n", err)
		}
		os.Exit(1)
	}

	if resp.Stdout != "" {
		fmt.Fprint(os.Stdout, resp.Stdout)
	}
	if resp.Stderr != "" {
		fmt.Fprint(os.Stderr, resp.Stderr)
	}
	os.Exit(resp.ExitCode)
}
