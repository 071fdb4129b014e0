// Command dongvm loads an assembled .dong bytecode file and runs it.
// Assembling source into bytecode is out of scope for this binary (as
// for the rest of the runtime); dongvm is a driver around
// internal/bytecode.DecodeFile and internal/vm.Context.Run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/orizon-lang/dongvm/internal/bytecode"
	"github.com/orizon-lang/dongvm/internal/cli"
	"github.com/orizon-lang/dongvm/internal/devwatch"
	"github.com/orizon-lang/dongvm/internal/rtlog"
	"github.com/orizon-lang/dongvm/internal/vm"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		debugMode   = flag.Bool("debug", false, "trace every executed opcode to stderr")
		watch       = flag.Bool("watch", false, "re-run the file on every change instead of running it once")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <file.dong>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run an assembled dong bytecode file.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s prog.dong            # run once\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -watch prog.dong     # re-run on every edit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -debug prog.dong     # trace opcodes to stderr\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(cli.ExitOK)
	}

	if *showVersion {
		cli.PrintVersion("dongvm", *jsonOutput)
		os.Exit(cli.ExitOK)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(cli.ExitUsage)
	}
	path := flag.Arg(0)

	logger := rtlog.Default()
	if *debugMode {
		logger = rtlog.New(os.Stderr, rtlog.LevelDebug)
	}

	if *watch {
		runWatch(path, logger)
		return
	}
	runOnce(path, logger, *debugMode)
}

func runOnce(path string, logger rtlog.Logger, trace bool) {
	prog, err := bytecode.DecodeFile(path)
	if err != nil {
		cli.ExitWithCode(cli.ExitUsage, "dongvm: %v", err)
	}

	heaps := vm.NewHeaps()
	c := vm.NewContext(prog, heaps, nil, vm.WithLogger(logger), vm.WithOpcodeTrace(trace))
	if err := c.Run(); err != nil {
		cli.ExitWithCode(cli.ExitVMTrap, "dongvm: %v", err)
	}
}

func runWatch(path string, logger rtlog.Logger) {
	heaps := vm.NewHeaps()
	w, err := devwatch.New(heaps, logger)
	if err != nil {
		cli.ExitWithCode(cli.ExitUsage, "dongvm: %v", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		cli.ExitWithCode(cli.ExitUsage, "dongvm: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Infof("watching %s for changes to %s", dir, path)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		cli.ExitWithCode(cli.ExitVMTrap, "dongvm: %v", err)
	}
}
