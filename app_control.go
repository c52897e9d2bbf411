package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"workset/internal/hotkeys"
	"workset/internal/ipc"
	"workset/internal/win32"
	"workset/internal/workspace"
)

// Execute routes one worksetctl command. Implements ipc.CommandExecutor.
func (a *App) Execute(req ipc.Request) ipc.Response {
	slog.Debug("[control] executing", "command", req.Command, "args", req.Args)

	switch req.Command {
	case "ping":
		return a.cmdPing()
	case "list":
		return a.cmdList()
	case "status":
		return a.cmdStatus()
	case "add":
		return a.cmdAdd(req.Args)
	case "remove":
		return a.cmdRemove(req.Args)
	case "rename":
		return a.cmdRename(req.Args)
	case "enable":
		return a.cmdSetDisabled(req.Args, false)
	case "disable":
		return a.cmdSetDisabled(req.Args, true)
	case "set-hotkey":
		return a.cmdSetHotkey(req.Args)
	case "clear-hotkey":
		return a.cmdClearHotkey(req.Args)
	case "capture":
		return a.cmdCapture(req.Args)
	case "capture-home":
		return a.cmdCaptureRect(req.Args, true)
	case "capture-target":
		return a.cmdCaptureRect(req.Args, false)
	case "remove-window":
		return a.cmdRemoveWindow(req.Args)
	case "recapture":
		return a.cmdRecapture(req.Args)
	case "toggle":
		return a.cmdToggle(req.Args)
	case "save":
		return a.cmdSave()
	case "reload":
		return a.cmdReload()
	case "history":
		return a.cmdHistory(req.Args)
	default:
		return fail("unknown command %q", req.Command)
	}
}

func ok(format string, args ...any) ipc.Response {
	return ipc.Response{Stdout: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) ipc.Response {
	return ipc.Response{ExitCode: 1, Stderr: fmt.Sprintf(format+"\n", args...)}
}

// resolve maps a workspace name to its stored clone.
func (a *App) resolve(name string) (workspace.Workspace, ipc.Response, bool) {
	ws, found := a.store.FindByName(name)
	if !found {
		return workspace.Workspace{}, fail("no workspace named %q", name), false
	}
	return ws, ipc.Response{}, true
}

// saveAndPublish persists the list and pushes fresh state to observers.
// Called after every mutating command.
func (a *App) saveAndPublish() {
	if err := a.store.Save(); err != nil {
		slog.Warn("[control] save after mutation failed", "error", err)
	}
	a.publishState()
}

func (a *App) cmdPing() ipc.Response {
	streamURL := ""
	if a.hub != nil {
		streamURL = a.hub.URL()
	}
	return ok("pong pipe=%s stream=%s\n", a.pipeServer.PipeName(), streamURL)
}

func (a *App) cmdList() ipc.Response {
	snapshot := a.store.RevalidateAll(a.isLive)
	if len(snapshot) == 0 {
		return ok("no workspaces\n")
	}
	var b strings.Builder
	for _, ws := range snapshot {
		state := "valid"
		if !ws.Valid {
			state = "invalid"
		}
		if ws.Disabled {
			state += ",disabled"
		}
		hotkey := ws.HotkeyText()
		if hotkey == "" {
			hotkey = "-"
		}
		live := 0
		for _, w := range ws.Windows {
			if w.Valid {
				live++
			}
		}
		fmt.Fprintf(&b, "%-24s %-20s %d/%d windows  [%s]", ws.Name, hotkey, live, len(ws.Windows), state)
		if !ws.LastActivated.IsZero() {
			fmt.Fprintf(&b, "  last %s", ws.LastActivated.Format(time.RFC3339))
		}
		b.WriteByte('\n')
	}
	return ok("%s", b.String())
}

func (a *App) cmdStatus() ipc.Response {
	snapshot := a.store.RevalidateAll(a.isLive)
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fail("encode status: %v", err)
	}
	return ok("%s\n", raw)
}

func (a *App) cmdAdd(args []string) ipc.Response {
	if len(args) != 1 {
		return fail("usage: add <name>")
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fail("workspace name must not be empty")
	}
	if _, exists := a.store.FindByName(name); exists {
		return fail("workspace %q already exists", name)
	}
	ws := a.store.Add(name)
	a.saveAndPublish()
	return ok("added workspace %q (%s)\n", ws.Name, ws.UID)
}

func (a *App) cmdRemove(args []string) ipc.Response {
	if len(args) != 1 {
		return fail("usage: remove <name>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	a.registry.ClearWorkspace(ws.UID)
	a.store.Remove(ws.UID)
	a.saveAndPublish()
	return ok("removed workspace %q\n", ws.Name)
}

func (a *App) cmdRename(args []string) ipc.Response {
	if len(args) != 2 {
		return fail("usage: rename <name> <new-name>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	newName := strings.TrimSpace(args[1])
	if newName == "" {
		return fail("new name must not be empty")
	}
	if _, exists := a.store.FindByName(newName); exists {
		return fail("workspace %q already exists", newName)
	}
	if err := a.store.Rename(ws.UID, newName); err != nil {
		return fail("rename: %v", err)
	}
	a.saveAndPublish()
	return ok("renamed %q to %q\n", ws.Name, newName)
}

func (a *App) cmdSetDisabled(args []string, disabled bool) ipc.Response {
	verb := "enable"
	if disabled {
		verb = "disable"
	}
	if len(args) != 1 {
		return fail("usage: %s <name>", verb)
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	if err := a.store.SetDisabled(ws.UID, disabled); err != nil {
		return fail("%s: %v", verb, err)
	}
	a.saveAndPublish()
	return ok("%sd workspace %q\n", verb, ws.Name)
}

func (a *App) cmdSetHotkey(args []string) ipc.Response {
	if len(args) != 2 {
		return fail("usage: set-hotkey <name> <binding>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	b, err := hotkeys.ParseBinding(args[1])
	if err != nil {
		return fail("invalid hotkey %q: %v", args[1], err)
	}

	// The text is stored even when OS registration fails, so the user can
	// see and fix the conflicting shortcut rather than losing the edit.
	if storeErr := a.store.SetHotkey(ws.UID, b.Normalized()); storeErr != nil {
		return fail("set-hotkey: %v", storeErr)
	}
	_, regErr := a.registry.Reassign(ws.UID, b)
	a.saveAndPublish()
	if regErr != nil {
		return fail("hotkey %q stored but not active: %v", b.Normalized(), regErr)
	}
	return ok("workspace %q now bound to %s\n", ws.Name, b.Normalized())
}

func (a *App) cmdClearHotkey(args []string) ipc.Response {
	if len(args) != 1 {
		return fail("usage: clear-hotkey <name>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	a.registry.ClearWorkspace(ws.UID)
	if err := a.store.SetHotkey(ws.UID, ""); err != nil {
		return fail("clear-hotkey: %v", err)
	}
	a.saveAndPublish()
	return ok("cleared hotkey of workspace %q\n", ws.Name)
}

// cmdCapture adds the current foreground window to the workspace with its
// present rectangle as both home and target; capture-target then adjusts the
// other side.
func (a *App) cmdCapture(args []string) ipc.Response {
	if len(args) != 1 {
		return fail("usage: capture <name>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	h, title, err := win32.ForegroundWindow()
	if err != nil {
		return fail("no foreground window to capture: %v", err)
	}
	rect, err := a.ops.Rect(workspace.Handle(h))
	if err != nil {
		return fail("read window rectangle: %v", err)
	}
	entry := workspace.WindowEntry{
		Handle: workspace.Handle(h),
		Title:  title,
		Home:   rect,
		Target: rect,
		Valid:  true,
	}
	if err := a.store.AddWindow(ws.UID, entry); err != nil {
		return fail("capture: %v", err)
	}
	a.saveAndPublish()
	return ok("captured %q into workspace %q at %s\n", title, ws.Name, rect)
}

// cmdCaptureRect updates one side (home or target) of a tracked window from
// its current on-screen rectangle.
func (a *App) cmdCaptureRect(args []string, home bool) ipc.Response {
	side := "capture-target"
	if home {
		side = "capture-home"
	}
	if len(args) != 2 {
		return fail("usage: %s <name> <window-index>", side)
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fail("window index must be a number, got %q", args[1])
	}
	if index < 0 || index >= len(ws.Windows) {
		return fail("window index %d out of range (workspace has %d windows)", index, len(ws.Windows))
	}
	rect, err := a.ops.Rect(ws.Windows[index].Handle)
	if err != nil {
		return fail("read window rectangle: %v", err)
	}
	updateErr := a.store.UpdateWindow(ws.UID, index, func(w *workspace.WindowEntry) {
		if home {
			w.Home = rect
		} else {
			w.Target = rect
		}
	})
	if updateErr != nil {
		return fail("%s: %v", side, updateErr)
	}
	a.saveAndPublish()
	return ok("%s of window %d in %q set to %s\n", side, index, ws.Name, rect)
}

func (a *App) cmdRemoveWindow(args []string) ipc.Response {
	if len(args) != 2 {
		return fail("usage: remove-window <name> <window-index>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fail("window index must be a number, got %q", args[1])
	}
	if err := a.store.RemoveWindow(ws.UID, index); err != nil {
		return fail("remove-window: %v", err)
	}
	a.saveAndPublish()
	return ok("removed window %d from workspace %q\n", index, ws.Name)
}

// cmdRecapture re-points a tracked entry at the current foreground window,
// keeping its remembered home/target rectangles. This is how a dead entry is
// revived after the application it tracked was restarted.
func (a *App) cmdRecapture(args []string) ipc.Response {
	if len(args) != 2 {
		return fail("usage: recapture <name> <window-index>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fail("window index must be a number, got %q", args[1])
	}
	h, title, fgErr := win32.ForegroundWindow()
	if fgErr != nil {
		return fail("no foreground window to recapture: %v", fgErr)
	}
	updateErr := a.store.UpdateWindow(ws.UID, index, func(w *workspace.WindowEntry) {
		w.Handle = workspace.Handle(h)
		w.Title = title
		w.Valid = true
	})
	if updateErr != nil {
		return fail("recapture: %v", updateErr)
	}
	a.saveAndPublish()
	return ok("window %d in %q now tracks %q\n", index, ws.Name, title)
}

// cmdToggle runs the same pipeline as a hotkey press, routed through the
// workspace's dispatch queue so CLI and hotkey activations never interleave.
func (a *App) cmdToggle(args []string) ipc.Response {
	if len(args) != 1 {
		return fail("usage: toggle <name>")
	}
	ws, resp, found := a.resolve(args[0])
	if !found {
		return resp
	}
	if ws.Disabled {
		return fail("workspace %q is disabled", ws.Name)
	}
	a.queueFor(ws.UID).enqueue(hotkeys.Activation{
		WorkspaceID: ws.UID,
		Binding:     "worksetctl",
		Time:        time.Now(),
	})
	return ok("toggle of workspace %q dispatched\n", ws.Name)
}

func (a *App) cmdSave() ipc.Response {
	if err := a.store.Save(); err != nil {
		return fail("save: %v", err)
	}
	return ok("workspaces saved to %s\n", a.store.Path())
}

func (a *App) cmdReload() ipc.Response {
	a.reloadWorkspaces()
	return ok("workspaces reloaded from %s\n", a.store.Path())
}

func (a *App) cmdHistory(args []string) ipc.Response {
	if a.history == nil {
		return fail("activation history is disabled")
	}
	n := 20
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return fail("history count must be a positive number, got %q", args[0])
		}
		n = parsed
	} else if len(args) > 1 {
		return fail("usage: history [count]")
	}
	entries, err := a.history.Recent(a.ctx, n)
	if err != nil {
		return fail("history: %v", err)
	}
	if len(entries) == 0 {
		return ok("no recorded activations\n")
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %-24s %-20s -> %-6s moved=%d skipped=%d failed=%d\n",
			e.At.Format(time.RFC3339), e.WorkspaceName, e.Binding, e.Destination,
			e.Moved, e.Skipped, e.Failed)
	}
	return ok("%s", b.String())
}
