// paged is a simple CLI for inspecting and editing page files.
//
// Usage:
//
//	paged <page-file>               Open an existing page file
//	paged new [opts] <page-file>    Create a new page file
//
// Options for 'new' command:
//
//	-c, --capacity   Page capacity in bytes (default from config)
//
// Global options:
//
//	--config         Explicit config file (JSONC)
//
// Commands (in REPL):
//
//	insert <text...>    Insert a record, print its index
//	at <index>          Print the record at index
//	size                Number of records
//	free                Free space in bytes
//	fits <n>            Whether n bytes fit
//	contains <index>    Whether index holds a record
//	clear               Discard all records
//	save                Write the page back to disk
//	info                Show page info
//	bulk <count> [len]  Insert N records of len random bytes
//	help                Show this help
//	exit / quit / q     Exit
//
// A page file is a raw page image: its size is the page capacity, and
// nothing else is stored. While a file is open, paged holds
// <file>.lock so two sessions cannot edit the same page.
package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/cmaruan/simpledb/internal/fslock"
	"github.com/cmaruan/simpledb/pkg/page"
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()

		return errors.New("missing command or page file path")
	}

	if os.Args[1] == "new" {
		return runNew(os.Args[2:])
	}

	return runOpen(os.Args[1:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  paged <page-file>               Open an existing page file\n")
	fmt.Fprintf(os.Stderr, "  paged new [opts] <page-file>    Create a new page file\n")
	fmt.Fprintf(os.Stderr, "\nRun 'paged new --help' for options when creating a new page.\n")
}

func runNew(args []string) error {
	fs := pflag.NewFlagSet("new", pflag.ExitOnError)

	capacity := fs.IntP("capacity", "c", 0, "page capacity in bytes")
	configPath := fs.String("config", "", "config file (JSONC)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: paged new [options] <page-file>\n\n")
		fmt.Fprintf(os.Stderr, "Create a new page file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errors.New("missing page file path")
	}

	pagePath := fs.Arg(0)

	if _, err := os.Stat(pagePath); err == nil {
		return fmt.Errorf("page file already exists: %s (use 'paged %s' to open it)", pagePath, pagePath)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if *capacity == 0 {
		*capacity = cfg.DefaultCapacity
	}

	p, err := page.New(*capacity)
	if err != nil {
		return fmt.Errorf("creating page: %w", err)
	}

	fmt.Printf("Creating page file:\n")
	fmt.Printf("  Path:      %s\n", pagePath)
	fmt.Printf("  Capacity:  %d bytes\n", *capacity)
	fmt.Println()

	if err := savePage(pagePath, p); err != nil {
		return err
	}

	return runREPL(pagePath, p, cfg)
}

func runOpen(args []string) error {
	fs := pflag.NewFlagSet("open", pflag.ExitOnError)

	configPath := fs.String("config", "", "config file (JSONC)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: paged <page-file>\n\n")
		fmt.Fprintf(os.Stderr, "Open an existing page file.\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errors.New("missing page file path")
	}

	pagePath := fs.Arg(0)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	p, err := loadPage(pagePath)
	if err != nil {
		return err
	}

	return runREPL(pagePath, p, cfg)
}

// loadPage reads a page image. The image is not self-describing, so
// the file size is the capacity.
func loadPage(path string) (*page.Page, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("page file does not exist: %s (use 'paged new %s' to create it)", path, path)
	}

	if err != nil {
		return nil, fmt.Errorf("stat page file: %w", err)
	}

	p, err := page.New(int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("file size %d is not a valid page capacity: %w", info.Size(), err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening page file: %w", err)
	}
	defer f.Close()

	if _, err := p.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("reading page file %s: %w", path, err)
	}

	return p, nil
}

// savePage writes the page image atomically, so a crash mid-save never
// leaves a torn file.
func savePage(path string, p *page.Page) error {
	var buf bytes.Buffer

	if _, err := p.WriteTo(&buf); err != nil {
		return fmt.Errorf("serializing page: %w", err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing page file %s: %w", path, err)
	}

	return nil
}

func runREPL(pagePath string, p *page.Page, cfg Config) error {
	lock, err := fslock.TryLock(pagePath + ".lock")
	if err != nil {
		if errors.Is(err, fslock.ErrWouldBlock) {
			return fmt.Errorf("another session has %s open", pagePath)
		}

		return fmt.Errorf("locking page file: %w", err)
	}
	defer lock.Close()

	repl := &REPL{
		path:    pagePath,
		page:    p,
		history: historyFile(cfg),
	}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	path    string
	page    *page.Page
	history string
	dirty   bool
	liner   *liner.State
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(r.history); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("paged - page file CLI (capacity=%d, records=%d)\n", r.page.Capacity(), r.page.Size())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("paged> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			if r.dirty && !r.confirmDiscard() {
				continue
			}

			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "insert", "put", "add":
			r.cmdInsert(args)

		case "at", "get":
			r.cmdAt(args)

		case "size", "len", "count":
			fmt.Printf("Records: %d\n", r.page.Size())

		case "free":
			fmt.Printf("Free space: %d bytes\n", r.page.FreeSpace())

		case "fits":
			r.cmdFits(args)

		case "contains":
			r.cmdContains(args)

		case "clear":
			r.cmdClear()

		case "save", "w":
			r.cmdSave()

		case "info":
			r.cmdInfo()

		case "bulk":
			r.cmdBulk(args)

		case "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if r.history == "" {
		return
	}

	if f, err := os.Create(r.history); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}
}

// completer provides tab completion for commands.
func (r *REPL) completer(line string) []string {
	commands := []string{
		"insert", "put", "add",
		"at", "get",
		"size", "len", "count",
		"free", "fits", "contains",
		"clear", "save", "info", "bulk",
		"cls", "help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  insert <text...>    Insert a record, print its index")
	fmt.Println("  at <index>          Print the record at index")
	fmt.Println("  size                Number of records")
	fmt.Println("  free                Free space in bytes")
	fmt.Println("  fits <n>            Whether n bytes fit")
	fmt.Println("  contains <index>    Whether index holds a record")
	fmt.Println("  clear               Discard all records")
	fmt.Println("  save                Write the page back to disk")
	fmt.Println("  info                Show page info")
	fmt.Println("  bulk <count> [len]  Insert N records of len random bytes")
	fmt.Println("  help                Show this help")
	fmt.Println("  exit / quit / q     Exit")
	fmt.Println()
	fmt.Println("Records are inserted as the raw text after 'insert'.")
	fmt.Println("Unsaved changes are lost on exit; 'save' writes them back.")
}

func (r *REPL) confirmDiscard() bool {
	answer, err := r.liner.Prompt("Unsaved changes. Discard them? (yes/no): ")
	if err != nil {
		return false
	}

	answer = strings.TrimSpace(strings.ToLower(answer))

	return answer == "yes" || answer == "y"
}

func (r *REPL) cmdInsert(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: insert <text...>")

		return
	}

	record := strings.Join(args, " ")

	index, err := r.page.Insert([]byte(record))
	if err != nil {
		if errors.Is(err, page.ErrFull) {
			fmt.Printf("Page full: %d bytes free, record needs more\n", r.page.FreeSpace())

			return
		}

		fmt.Printf("Error: %v\n", err)

		return
	}

	r.dirty = true

	fmt.Printf("OK: index %d (%d bytes free)\n", index, r.page.FreeSpace())
}

func (r *REPL) cmdAt(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: at <index>")

		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing index: %v\n", err)

		return
	}

	record, err := r.page.At(index)
	if err != nil {
		if errors.Is(err, page.ErrOutOfRange) {
			fmt.Printf("(no record at %d, size is %d)\n", index, r.page.Size())

			return
		}

		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("%3d. %q (%d bytes)\n", index, record, len(record))
}

func (r *REPL) cmdFits(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: fits <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing size: %v\n", err)

		return
	}

	fmt.Printf("Fits(%d): %v (%d bytes free)\n", n, r.page.Fits(n), r.page.FreeSpace())
}

func (r *REPL) cmdContains(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: contains <index>")

		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing index: %v\n", err)

		return
	}

	fmt.Printf("Contains(%d): %v\n", index, r.page.Contains(index))
}

func (r *REPL) cmdClear() {
	answer, err := r.liner.Prompt("Discard all records? (yes/no): ")
	if err != nil {
		fmt.Println("Cancelled.")

		return
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "yes" && answer != "y" {
		fmt.Println("Cancelled.")

		return
	}

	r.page.Clear()
	r.dirty = true

	fmt.Println("OK: page cleared (not yet saved)")
}

func (r *REPL) cmdSave() {
	if err := savePage(r.path, r.page); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	r.dirty = false

	fmt.Printf("OK: wrote %d bytes to %s\n", r.page.Capacity(), r.path)
}

func (r *REPL) cmdInfo() {
	fmt.Printf("Page Info:\n")
	fmt.Printf("  Path:        %s\n", r.path)
	fmt.Printf("  Capacity:    %d bytes\n", r.page.Capacity())
	fmt.Printf("  Records:     %d\n", r.page.Size())
	fmt.Printf("  Free space:  %d bytes\n", r.page.FreeSpace())
	fmt.Printf("  Unsaved:     %v\n", r.dirty)
}

func (r *REPL) cmdBulk(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bulk <count> [len]")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Printf("Error: count must be a positive integer\n")

		return
	}

	size := 16
	if len(args) >= 2 {
		size, err = strconv.Atoi(args[1])
		if err != nil || size < 0 {
			fmt.Printf("Error: len must be a non-negative integer\n")

			return
		}
	}

	inserted := 0

	for range count {
		record := make([]byte, size)
		rand.Read(record)

		if _, err := r.page.Insert(record); err != nil {
			break
		}

		inserted++
	}

	if inserted > 0 {
		r.dirty = true
	}

	if inserted < count {
		fmt.Printf("OK: inserted %d of %d records, then the page filled up (%d bytes free)\n",
			inserted, count, r.page.FreeSpace())

		return
	}

	fmt.Printf("OK: inserted %d records (%d bytes free)\n", inserted, r.page.FreeSpace())
}
