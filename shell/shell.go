// Package shell is a line-oriented command interpreter over a
// [history.Manager].
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/brettbedarf/cvfs/history"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/dustin/go-humanize"
)

// ErrQuit is returned by [Shell.Exec] for the quit command.
var ErrQuit = errors.New("quit")

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

type command struct {
	usage   string
	args    int // exact number of arguments; -1 for at least minArgs
	minArgs int
	run     func(s *Shell, args []string) error
}

// commands is filled in init since help refers back to it.
var commands map[string]command

func init() {
	commands = map[string]command{
		"newDisk":    {usage: "newDisk <capacity>", args: 1, run: (*Shell).newDisk},
		"newDoc":     {usage: "newDoc <name> <type> <content...>", args: -1, minArgs: 2, run: (*Shell).newDoc},
		"newDir":     {usage: "newDir <name>", args: 1, run: func(s *Shell, a []string) error { return s.mgr.NewDir(a[0]) }},
		"delete":     {usage: "delete <name>", args: 1, run: func(s *Shell, a []string) error { return s.mgr.Delete(a[0]) }},
		"rename":     {usage: "rename <old> <new>", args: 2, run: func(s *Shell, a []string) error { return s.mgr.Rename(a[0], a[1]) }},
		"changeDir":  {usage: "changeDir <name|..>", args: 1, run: func(s *Shell, a []string) error { return s.mgr.ChangeDir(a[0]) }},
		"list":       {usage: "list", args: 0, run: (*Shell).list},
		"rList":      {usage: "rList", args: 0, run: (*Shell).rList},
		"isDocument": {usage: "isDocument <name>", args: 1, run: (*Shell).isDocument},
		"pwd":        {usage: "pwd", args: 0, run: (*Shell).pwd},
		"usage":      {usage: "usage", args: 0, run: (*Shell).usage},
		"history":    {usage: "history", args: 0, run: (*Shell).history},
		"store":      {usage: "store", args: 0, run: func(s *Shell, _ []string) error { return s.mgr.Store() }},
		"load":       {usage: "load", args: 0, run: func(s *Shell, _ []string) error { return s.mgr.Load() }},
		"undo":       {usage: "undo", args: 0, run: func(s *Shell, _ []string) error { return s.mgr.Undo() }},
		"redo":       {usage: "redo", args: 0, run: func(s *Shell, _ []string) error { return s.mgr.Redo() }},
		"help":       {usage: "help", args: 0, run: (*Shell).help},
		"quit":       {usage: "quit", args: 0, run: func(*Shell, []string) error { return ErrQuit }},
	}
}

// Shell reads commands and prints their results.
type Shell struct {
	mgr    *history.Manager
	out    io.Writer
	prompt string
}

// New creates a shell writing to out. An empty prompt disables prompting.
func New(mgr *history.Manager, out io.Writer, prompt string) *Shell {
	return &Shell{mgr: mgr, out: out, prompt: prompt}
}

// Exec runs a single command line. Blank lines and lines starting with '#'
// are ignored.
func (s *Shell) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	name := strings.Fields(line)[0]
	rest := strings.TrimSpace(line[len(name):])
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", name)
	}

	var args []string
	if name == "newDoc" {
		args = splitContent(rest)
	} else {
		args = strings.Fields(rest)
	}
	if (cmd.args >= 0 && len(args) != cmd.args) || (cmd.args < 0 && len(args) < cmd.minArgs) {
		return fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}
	return cmd.run(s, args)
}

// splitContent splits "name type content..." keeping the content verbatim.
func splitContent(rest string) []string {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return fields
	}
	rest = strings.TrimSpace(rest)
	for i := 0; i < 2; i++ {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[i]))
	}
	return []string{fields[0], fields[1], rest}
}

// Run executes commands read from in until quit, end of input or ctx is
// done. Command errors are printed and do not stop the loop.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	logger := util.GetLogger("Shell.Run")
	scanner := bufio.NewScanner(in)

	for {
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.Exec(scanner.Text())
		switch {
		case errors.Is(err, ErrQuit):
			logger.Debug().Msg("Quit requested")
			return nil
		case err != nil:
			logger.Debug().Err(err).Str("line", scanner.Text()).Msg("Command failed")
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) newDisk(args []string) error {
	capacity, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: newDisk <capacity>: %v", ErrUsage, err)
	}
	return s.mgr.NewDisk(capacity)
}

func (s *Shell) newDoc(args []string) error {
	content := ""
	if len(args) > 2 {
		content = args[2]
	}
	return s.mgr.NewDoc(args[0], args[1], content)
}

// units formats a size in the disk's abstract units, not bytes.
func units(n int) string {
	return humanize.Comma(int64(n)) + " units"
}

func formatEntry(e filesystem.EntryInfo) string {
	size := units(e.Size)
	if e.Kind == filesystem.DirectoryKind {
		return fmt.Sprintf("%s/\t%s\t%s", e.Name, "dir", size)
	}
	return fmt.Sprintf("%s\t%s\t%s", e.Name, e.Type, size)
}

func (s *Shell) list(_ []string) error {
	entries := s.mgr.List()
	total := 0
	for _, e := range entries {
		fmt.Fprintln(s.out, formatEntry(e))
		total += e.Size
	}
	fmt.Fprintf(s.out, "%d entries, %s\n", len(entries), units(total))
	return nil
}

func (s *Shell) rList(_ []string) error {
	rows := s.mgr.RList()
	total := 0
	for _, row := range rows {
		fmt.Fprintf(s.out, "%s%s\n", strings.Repeat("  ", row.Depth), formatEntry(row))
		if row.Kind == filesystem.DocumentKind {
			total += row.Size
		}
	}
	fmt.Fprintf(s.out, "%d entries, %s in documents\n", len(rows), units(total))
	return nil
}

func (s *Shell) isDocument(args []string) error {
	ok, err := s.mgr.IsDocument(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, ok)
	return nil
}

func (s *Shell) pwd(_ []string) error {
	fmt.Fprintln(s.out, "/"+strings.Join(s.mgr.WorkingPath(), "/"))
	return nil
}

func (s *Shell) usage(_ []string) error {
	u := s.mgr.Usage()
	fmt.Fprintf(s.out, "capacity %s, used %s, free %s\n",
		units(u.Capacity), units(u.Used), units(max(u.Free, 0)))
	return nil
}

func (s *Shell) history(_ []string) error {
	undo, redo := s.mgr.History()
	for _, snap := range redo {
		fmt.Fprintf(s.out, "redo  %s  %s  %s\n", snap.ID.String()[:8], humanize.Time(snap.Taken), snap.Op)
	}
	for _, snap := range undo {
		fmt.Fprintf(s.out, "undo  %s  %s  %s\n", snap.ID.String()[:8], humanize.Time(snap.Taken), snap.Op)
	}
	fmt.Fprintf(s.out, "%d undo, %d redo\n", len(undo), len(redo))
	return nil
}

func (s *Shell) help(_ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(s.out, "  "+commands[name].usage)
	}
	return nil
}
