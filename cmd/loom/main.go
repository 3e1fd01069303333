// Loom CLI - runs Loom scripts and an interactive REPL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/loom/compiler"
	"github.com/chazu/loom/manifest"
	"github.com/chazu/loom/store"
	"github.com/chazu/loom/vm"
)

func main() {
	interactive := flag.Bool("i", false, "Start interactive REPL")
	verbosity := flag.Int("v", 0, "Log verbosity (0 = quiet)")
	entry := flag.String("m", "", "Entry expression to evaluate after loading (e.g. 'Main run')")
	recordPath := flag.String("record", "", "Record installed method sources to this sqlite database")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loom [options] [scripts...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs Loom scripts; with no scripts, starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loom -i                  # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  loom app.loom            # Run a script\n")
		fmt.Fprintf(os.Stderr, "  loom src.loom -m 'App run'  # Load, then evaluate an entry expression\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	vmInst := vm.NewVM()

	// Project config, when the working directory carries one.
	record := *recordPath
	var projectFiles []string
	if manifest.Exists(".") {
		m, err := manifest.Load(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		vmInst.SetYieldOnSend(m.VM.YieldOnSend)
		if record == "" {
			record = m.VM.Record
		}
		projectFiles, err = m.SourceFiles()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if record != "" {
		st, err := store.Open(record)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		hookStore(vmInst, st)
	}

	for _, path := range append(projectFiles, flag.Args()...) {
		if err := runFile(vmInst, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *entry != "" {
		result, err := vmInst.Doit(*entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *interactive {
			fmt.Println(result.String())
		}
	}

	if *interactive || (len(flag.Args()) == 0 && *entry == "") {
		repl(vmInst)
	}
}

// currentSource tracks the text being evaluated so the install hook can
// slice method sources out of it by span.
var currentSource string

func runFile(vmInst *vm.VM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Spans refer to the shebang-stripped text; keep the same view for
	// the install hook's source slicing.
	currentSource = compiler.StripShebang(string(data))
	_, err = vmInst.RunScript(currentSource)
	return err
}

// hookStore records every Recv >> sel [...] installation.
func hookStore(vmInst *vm.VM, st *store.Store) {
	vmInst.OnMethodInstall = func(cls *vm.Class, def *compiler.MethodDef) {
		src := sliceSpan(currentSource, def.Span())
		if _, err := st.Record(cls.Name, def, src); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: store: %v\n", err)
		}
	}
}

func sliceSpan(source string, span compiler.Span) string {
	start := span.Start.Offset
	if start < 0 || start >= len(source) {
		return ""
	}
	// Spans carry statement starts; record to the end of the line
	// block by scanning to the closing bracket depth.
	depth := 0
	for i := start; i < len(source); i++ {
		switch source[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return source[start : i+1]
			}
		}
	}
	return source[start:]
}

func repl(vmInst *vm.VM) {
	fmt.Println("Loom REPL - type expressions, blank line to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("loom> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		result, err := vmInst.Doit(line)
		if err != nil {
			fmt.Println(err.Error())
			continue
		}
		fmt.Println(result.String())
	}
}
