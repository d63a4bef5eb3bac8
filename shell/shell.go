// Package shell implements the line-oriented command interpreter for an sfs filesystem
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/diskfs/go-sfs/filesystem"
	"github.com/diskfs/go-sfs/util"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMalformedCommand is returned for a command with the wrong number of arguments
	ErrMalformedCommand = errors.New("malformed command (see help)")
	// ErrUnknownCommand is returned for a command the shell does not know
	ErrUnknownCommand = errors.New("unknown command (see help)")
)

type command struct {
	usage string
	help  string
	// minArgs and maxArgs bound the number of arguments
	minArgs, maxArgs int
	run              func(s *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"c":     {"c <path>", "create an empty file", 1, 1, (*Shell).create},
		"d":     {"d <path>", "delete a file", 1, 1, (*Shell).remove},
		"w":     {"w <path>", "replace the contents of a file with one line of input", 1, 1, (*Shell).write},
		"r":     {"r <path>", "print the contents of a file", 1, 1, (*Shell).read},
		"mkdir": {"mkdir <path>", "create a directory", 1, 1, (*Shell).mkdir},
		"rmdir": {"rmdir <path>", "delete an empty directory", 1, 1, (*Shell).rmdir},
		"rm":    {"rm <path>", "delete a directory and everything in it", 1, 1, (*Shell).rm},
		"mv":    {"mv <path> <dirpath>", "move a file or directory into a directory", 2, 2, (*Shell).move},
		"ls":    {"ls [path]", "list a directory, the current one by default", 0, 1, (*Shell).list},
		"cd":    {"cd <path>", "change the current directory (.. for the parent)", 1, 1, (*Shell).chdir},
		"pwd":   {"pwd", "print the current directory", 0, 0, (*Shell).pwd},
		"stat":  {"stat <path>", "show the inode, kind, size and blocks of an object", 1, 1, (*Shell).stat},
		"df":    {"df", "show block and inode usage", 0, 0, (*Shell).usage},
		"check": {"check", "verify the consistency of the filesystem", 0, 0, (*Shell).check},
		"help":  {"help", "show this help", 0, 0, (*Shell).help},
		"e":     {"e", "unmount and exit", 0, 0, nil},
	}
}

// Shell runs commands against a mounted filesystem
type Shell struct {
	fs     filesystem.FileSystem
	prompt *Prompter
	out    io.Writer
	log    logrus.FieldLogger
}

// New returns a Shell reading commands, and the payload lines of w, from prompt
func New(fs filesystem.FileSystem, prompt *Prompter, out io.Writer, log logrus.FieldLogger) *Shell {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Shell{fs: fs, prompt: prompt, out: out, log: log}
}

// Run reads and executes commands until e or the end of input, then unmounts the filesystem.
// Errors of individual commands are printed and do not stop the loop.
func (s *Shell) Run() error {
	for {
		line, err := s.prompt.Ask(fmt.Sprintf("\n%s: ", s.fs.Getwd()))
		if err == io.EOF {
			fmt.Fprintln(s.out)
			break
		}
		if err != nil {
			return fmt.Errorf("could not read command: %w", err)
		}
		exit, err := s.Exec(line)
		if err != nil {
			Fprint(s.out, err)
		}
		if exit {
			break
		}
	}
	if err := s.fs.Close(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Filesystem unmounted, all data saved.")
	return nil
}

// Exec runs a single command line. exit is true for e.
func (s *Shell) Exec(line string) (exit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, ErrMalformedCommand
	}
	name, args := fields[0], fields[1:]
	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("%s: %w", name, ErrUnknownCommand)
	}
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return false, fmt.Errorf("usage: %s: %w", cmd.usage, ErrMalformedCommand)
	}
	s.log.WithFields(logrus.Fields{"command": name, "args": args}).Debug("exec")
	if cmd.run == nil {
		return true, nil
	}
	return false, cmd.run(s, args)
}

func (s *Shell) create(args []string) error {
	if err := s.fs.CreateFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "File '%s' created.\n", args[0])
	return nil
}

func (s *Shell) remove(args []string) error {
	if err := s.fs.Remove(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "File '%s' deleted.\n", args[0])
	return nil
}

func (s *Shell) write(args []string) error {
	if _, err := s.fs.Stat(args[0]); err != nil {
		return err
	}
	data, err := s.prompt.Ask("data: ")
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not read data: %w", err)
	}
	n, err := s.fs.WriteFile(args[0], []byte(data))
	if err != nil {
		if n > 0 {
			fmt.Fprintf(s.out, "Wrote %d of %d bytes to '%s'.\n", n, len(data), args[0])
		}
		return err
	}
	fmt.Fprintf(s.out, "Wrote %d bytes to '%s'.\n", n, args[0])
	return nil
}

func (s *Shell) read(args []string) error {
	b, err := s.fs.ReadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s\n", b)
	return nil
}

func (s *Shell) mkdir(args []string) error {
	if err := s.fs.Mkdir(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Directory '%s' created.\n", args[0])
	return nil
}

func (s *Shell) rmdir(args []string) error {
	if err := s.fs.RemoveDir(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Directory '%s' deleted.\n", args[0])
	return nil
}

func (s *Shell) rm(args []string) error {
	if err := s.fs.RemoveAll(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Directory '%s' and its contents deleted.\n", args[0])
	return nil
}

func (s *Shell) move(args []string) error {
	if err := s.fs.Move(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Moved '%s' to '%s'.\n", args[0], args[1])
	return nil
}

func (s *Shell) list(args []string) error {
	var p string
	if len(args) > 0 {
		p = args[0]
	}
	infos, err := s.fs.ReadDir(p)
	if err != nil {
		return err
	}
	dir := s.fs.Getwd()
	if p != "" {
		dir = p
	}
	fmt.Fprintf(s.out, "Contents of '%s':\n", dir)
	if len(infos) == 0 {
		fmt.Fprintln(s.out, "Directory is empty.")
	}
	for _, info := range infos {
		if info.IsDir() {
			fmt.Fprintf(s.out, "- %s (directory)\n", info.Name())
			continue
		}
		fmt.Fprintf(s.out, "- %s (file, %d bytes)\n", info.Name(), info.Size())
	}
	return nil
}

func (s *Shell) chdir(args []string) error {
	if err := s.fs.Chdir(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Current directory: %s\n", s.fs.Getwd())
	return nil
}

func (s *Shell) pwd([]string) error {
	fmt.Fprintln(s.out, s.fs.Getwd())
	return nil
}

type inodeInfo interface {
	Inode() uint32
	Blocks() []uint32
}

func (s *Shell) stat(args []string) error {
	info, err := s.fs.Stat(args[0])
	if err != nil {
		return err
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	fmt.Fprintf(s.out, "name:   %s\nkind:   %s\nmode:   %s\nsize:   %d\n", info.Name(), kind, info.Mode(), info.Size())
	if ii, ok := info.(inodeInfo); ok {
		fmt.Fprintf(s.out, "inode:  %d\nblocks: %v\n", ii.Inode(), ii.Blocks())
	}
	return nil
}

type freeExtents interface {
	FreeExtents() []util.Contiguous
}

func (s *Shell) usage([]string) error {
	u := s.fs.Usage()
	fmt.Fprintf(s.out, "blocks: %d used, %d free, %d total (%d bytes each)\n", u.UsedBlocks(), u.FreeBlocks, u.TotalBlocks, u.BlockSize)
	fmt.Fprintf(s.out, "inodes: %d used, %d free, %d total\n", u.UsedInodes(), u.FreeInodes, u.TotalInodes)
	if fe, ok := s.fs.(freeExtents); ok {
		extents := fe.FreeExtents()
		var largest int
		for _, e := range extents {
			largest = max(largest, e.Count)
		}
		fmt.Fprintf(s.out, "free space: %d extents, largest %d blocks\n", len(extents), largest)
	}
	return nil
}

func (s *Shell) check([]string) error {
	problems := s.fs.Check()
	if len(problems) == 0 {
		fmt.Fprintln(s.out, "No problems found.")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(s.out, "problem: %v\n", p)
	}
	return fmt.Errorf("%d problems found", len(problems))
}

func (s *Shell) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "%-22s - %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintln(s.out, "\nPaths may be absolute (/home/notes) or relative to the current directory (notes, ./notes, ../notes).")
	return nil
}

// Fprint reports err the way the shell does
func Fprint(w io.Writer, err error) {
	var pe *os.PathError
	if errors.As(err, &pe) {
		fmt.Fprintf(w, "error: %s '%s': %v\n", pe.Op, pe.Path, pe.Err)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
