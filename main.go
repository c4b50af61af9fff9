package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lookbusy1344/rv32i-emulator/api"
	"github.com/lookbusy1344/rv32i-emulator/config"
	"github.com/lookbusy1344/rv32i-emulator/debugger"
	"github.com/lookbusy1344/rv32i-emulator/loader"
	"github.com/lookbusy1344/rv32i-emulator/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		debugMode   = flag.Bool("debug", false, "Start in debugger mode")
		tuiMode     = flag.Bool("tui", false, "Use TUI (Text User Interface) debugger")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 8080, "API server port (used with -api-server)")
		maxCycles   = flag.Uint64("max-cycles", vm.DefaultMaxCycles, "Maximum cycles before halt (0 = unlimited)")
		format      = flag.String("format", "flat", "ROM image format: flat or hex")
		entryPoint  = flag.String("entry", "0x00000000", "Entry point address (hex or decimal)")
		randomize   = flag.Bool("randomize", false, "Seed registers and RAM with pseudo-random values instead of zero")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
		symbolsFile = flag.String("symbols", "", "JSON file mapping symbol names to addresses, for the debugger")

		enableTrace    = flag.Bool("trace", false, "Enable execution trace")
		traceFile      = flag.String("trace-file", "", "Execution trace output file (default: trace.log in log dir)")
		traceFilter    = flag.String("trace-filter", "", "Restrict trace register changes to these registers (comma-separated, e.g. x1,x2)")
		enableStats    = flag.Bool("stats", false, "Enable performance statistics")
		statsFile      = flag.String("stats-file", "", "Statistics output file (default: stats.json)")
		statsFormat    = flag.String("stats-format", "json", "Statistics format: text or json")
		enableCoverage = flag.Bool("coverage", false, "Enable code coverage tracking")
		coverageFile   = flag.String("coverage-file", "", "Coverage output file (default: coverage.txt)")
		coverageFormat = flag.String("coverage-format", "text", "Coverage format: text or json")

		enableStackTrace    = flag.Bool("stack-trace", false, "Enable stack-pointer (x2) move tracing")
		stackTraceFile      = flag.String("stack-trace-file", "", "Stack trace output file (default: stack_trace.txt)")
		enableRegisterTrace = flag.Bool("register-trace", false, "Enable register write tracing")
		registerTraceFile   = flag.String("register-trace-file", "", "Register trace output file (default: register_trace.txt)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("rv32i-emulator %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	romPath := flag.Arg(0)
	if _, err := os.Stat(romPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", romPath)
		os.Exit(1)
	}

	policy := vm.ResetZero
	if *randomize {
		policy = vm.ResetRandom
	}
	machine := vm.NewVM(policy)
	machine.MaxCycles = *maxCycles

	if *verboseMode {
		fmt.Printf("Loading ROM image: %s (format=%s)\n", romPath, *format)
	}

	var loadErr error
	switch *format {
	case "hex":
		loadErr = loader.LoadIntelHex(machine, romPath)
	case "flat":
		loadErr = loader.LoadFlatBinary(machine, romPath)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown ROM format %q (must be 'flat' or 'hex')\n", *format)
		os.Exit(1)
	}
	if loadErr != nil {
		fmt.Fprintf(os.Stderr, "Error loading ROM: %v\n", loadErr)
		os.Exit(1)
	}

	var entryAddr uint32
	if strings.HasPrefix(*entryPoint, "0x") || strings.HasPrefix(*entryPoint, "0X") {
		v, err := strconv.ParseUint((*entryPoint)[2:], 16, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid entry point: %s\n", *entryPoint)
			os.Exit(1)
		}
		entryAddr = uint32(v) // #nosec G115 -- ParseUint bitSize=32 bounds the value
	} else {
		v, err := strconv.ParseUint(*entryPoint, 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid entry point: %s\n", *entryPoint)
			os.Exit(1)
		}
		entryAddr = uint32(v) // #nosec G115 -- ParseUint bitSize=32 bounds the value
	}
	machine.PC.Set(entryAddr)

	symbols := make(map[string]uint32)
	if *symbolsFile != "" {
		var err error
		symbols, err = loadSymbolsFile(*symbolsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading symbols file: %v\n", err)
			os.Exit(1)
		}
	}

	if *verboseMode {
		fmt.Printf("Entry point: 0x%08X\n", entryAddr)
		fmt.Printf("Max cycles: %d\n", machine.MaxCycles)
		fmt.Printf("Symbols: %d defined\n", len(symbols))
	}

	var traceWriter, statsWriter, coverageWriter, stackTraceWriter, registerTraceWriter *os.File

	if *enableTrace {
		traceWriter = openDiagnosticFile(*traceFile, "trace.log")
		machine.Trace = vm.NewExecutionTrace(traceWriter)
		if *traceFilter != "" {
			machine.Trace.SetFilterRegisters(strings.Split(*traceFilter, ","))
		}
		if *verboseMode {
			fmt.Println("Execution trace enabled")
		}
	}

	if *enableStats {
		machine.Statistics = vm.NewPerformanceStatistics()
		if *verboseMode {
			fmt.Println("Performance statistics enabled")
		}
	}

	if *enableCoverage {
		coverageWriter = openDiagnosticFile(*coverageFile, "coverage.txt")
		machine.Coverage = vm.NewCodeCoverage(coverageWriter)
		if *verboseMode {
			fmt.Println("Code coverage enabled")
		}
	}

	if *enableStackTrace {
		stackTraceWriter = openDiagnosticFile(*stackTraceFile, "stack_trace.txt")
		machine.StackTrace = vm.NewStackTrace(stackTraceWriter)
		if *verboseMode {
			fmt.Println("Stack trace enabled")
		}
	}

	if *enableRegisterTrace {
		registerTraceWriter = openDiagnosticFile(*registerTraceFile, "register_trace.txt")
		machine.RegisterTrace = vm.NewRegisterTrace(registerTraceWriter)
		if *verboseMode {
			fmt.Println("Register trace enabled")
		}
	}

	defer closeIfOpen(traceWriter)
	defer closeIfOpen(coverageWriter)
	defer closeIfOpen(stackTraceWriter)
	defer closeIfOpen(registerTraceWriter)

	if *debugMode || *tuiMode {
		dbg := debugger.NewDebugger(machine)
		dbg.LoadSymbols(symbols)

		if *tuiMode {
			if err := debugger.RunTUI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Println("RV32I Debugger - Type 'help' for commands")
			fmt.Printf("ROM loaded: %s\n", romPath)
			fmt.Println()

			if err := debugger.RunCLI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
				os.Exit(1)
			}
		}
	} else {
		runToCompletion(machine, *verboseMode)
	}

	flushDiagnostics(machine, *verboseMode, *statsFile, *statsFormat, *coverageFormat, &statsWriter)
}

// runToCompletion steps the VM until it halts on an ECALL/EBREAK event or
// fails on a genuine fault, mirroring how the debugger's "continue" command
// drives execution outside an interactive session.
func runToCompletion(machine *vm.VM, verbose bool) {
	if verbose {
		fmt.Println("\nStarting execution...")
		fmt.Println("----------------------------------------")
	}

	for {
		err := machine.Step()
		if err == nil {
			continue
		}

		if f, ok := err.(*vm.Fault); ok && (f.Kind == vm.FaultEnvironmentCall || f.Kind == vm.FaultBreakpoint) {
			if verbose {
				fmt.Printf("\nHalted: %s at PC=0x%08X\n", f.Kind, machine.PC.Get())
			}
			break
		}

		fmt.Fprintf(os.Stderr, "\nRuntime error at PC=0x%08X: %v\n", machine.PC.Get(), err)
		os.Exit(1)
	}

	if verbose {
		fmt.Println("----------------------------------------")
		fmt.Println("Execution complete")
		fmt.Printf("CPU cycles: %d\n", machine.Cycles)
	}
}

func flushDiagnostics(machine *vm.VM, verbose bool, statsFile, statsFormat, coverageFormat string, statsWriter **os.File) {
	if machine.Trace != nil {
		if err := machine.Trace.WriteText(machine.Trace.Writer); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing execution trace: %v\n", err)
		} else if verbose {
			fmt.Printf("Execution trace written (%d entries)\n", len(machine.Trace.Entries()))
		}
	}

	if machine.Coverage != nil {
		var err error
		if coverageFormat == "json" {
			err = machine.Coverage.WriteJSON(machine.Coverage.Writer)
		} else {
			err = machine.Coverage.WriteText(machine.Coverage.Writer)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing coverage: %v\n", err)
		} else if verbose {
			fmt.Printf("Coverage written (%d addresses)\n", len(machine.Coverage.Entries()))
		}
	}

	if machine.StackTrace != nil {
		if err := machine.StackTrace.WriteText(machine.StackTrace.Writer); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing stack trace: %v\n", err)
		} else if verbose {
			fmt.Printf("Stack trace written (%d moves)\n", len(machine.StackTrace.Moves()))
		}
	}

	if machine.RegisterTrace != nil {
		if err := machine.RegisterTrace.WriteText(machine.RegisterTrace.Writer); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing register trace: %v\n", err)
		} else if verbose {
			fmt.Printf("Register trace written (%d writes)\n", len(machine.RegisterTrace.Writes()))
		}
	}

	if machine.Statistics != nil {
		path := statsFile
		if path == "" {
			ext := "json"
			if statsFormat == "text" {
				ext = "txt"
			}
			path = joinLogPath("stats." + ext)
		}

		f, err := os.Create(path) // #nosec G304 -- user-specified statistics output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating statistics file: %v\n", err)
		} else {
			*statsWriter = f
			if statsFormat == "text" {
				err = machine.Statistics.WriteText(f)
			} else {
				err = machine.Statistics.WriteJSON(f)
			}
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting statistics: %v\n", err)
			} else if verbose {
				fmt.Printf("Statistics exported: %s\n", path)
			}
		}

		if verbose {
			fmt.Println()
			var buf strings.Builder
			_ = machine.Statistics.WriteText(&buf)
			fmt.Print(buf.String())
		}
	}
}

func runAPIServer(port int) {
	server := api.NewServer(port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownOnce sync.Once
	performShutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down API server...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("API server stopped")
			os.Exit(0)
		})
	}

	monitor := api.NewProcessMonitor(performShutdown)
	monitor.Start()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	performShutdown()
}

func loadSymbolsFile(path string) (map[string]uint32, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified symbols file
	if err != nil {
		return nil, err
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid symbols JSON: %w", err)
	}

	symbols := make(map[string]uint32, len(raw))
	for name, addrStr := range raw {
		addrStr = strings.TrimPrefix(addrStr, "0x")
		v, err := strconv.ParseUint(addrStr, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q for symbol %q: %w", addrStr, name, err)
		}
		symbols[name] = uint32(v) // #nosec G115 -- ParseUint bitSize=32 bounds the value
	}
	return symbols, nil
}

func openDiagnosticFile(explicitPath, defaultName string) *os.File {
	path := explicitPath
	if path == "" {
		path = joinLogPath(defaultName)
	}
	f, err := os.Create(path) // #nosec G304 -- user-specified diagnostic output path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", path, err)
		os.Exit(1)
	}
	return f
}

func joinLogPath(name string) string {
	return config.GetLogPath() + string(os.PathSeparator) + name
}

func closeIfOpen(f *os.File) {
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", f.Name(), err)
	}
}

func printHelp() {
	fmt.Printf(`rv32i-emulator %s

Usage: rv32i-emulator [options] <rom-file>
       rv32i-emulator -api-server [-port N]

Options:
  -help                 Show this help message
  -version              Show version information
  -api-server           Start HTTP API server mode (no ROM file required)
  -port N               API server port (default: 8080, used with -api-server)
  -debug                Start in debugger mode (CLI)
  -tui                  Start in TUI debugger mode
  -format FMT           ROM image format: flat or hex (default: flat)
  -max-cycles N         Set maximum cycle count, 0 for unlimited (default: %d)
  -entry ADDR           Set entry point address (default: 0x00000000)
  -randomize            Seed registers and RAM with pseudo-random values instead of zero
  -verbose              Enable verbose output
  -symbols FILE         Load a JSON {name: "0xADDR"} symbol map for the debugger

Tracing & Performance Options:
  -trace                Enable execution trace
  -trace-file FILE      Trace output file (default: trace.log in log dir)
  -trace-filter REGS    Filter trace by registers (e.g., x1,x2)
  -stats                Enable performance statistics
  -stats-file FILE      Statistics output file (default: stats.json)
  -stats-format FMT     Statistics format: text or json (default: json)

Diagnostic Modes:
  -coverage             Enable code coverage tracking
  -coverage-file F      Coverage output file (default: coverage.txt)
  -coverage-format FMT  Coverage format: text or json (default: text)
  -stack-trace          Enable stack-pointer (x2) move tracing
  -stack-trace-file F   Stack trace output file (default: stack_trace.txt)
  -register-trace       Enable register write tracing
  -register-trace-file F Register trace output file (default: register_trace.txt)

Examples:
  # Start API server for GUI frontends
  rv32i-emulator -api-server
  rv32i-emulator -api-server -port 3000

  # Run a flat binary ROM image directly
  rv32i-emulator program.bin

  # Run an Intel HEX ROM image with a custom entry point
  rv32i-emulator -format hex -entry 0x100 program.hex

  # Run with the command-line debugger
  rv32i-emulator -debug program.bin

  # Run with the TUI debugger
  rv32i-emulator -tui program.bin

  # Run with execution trace and statistics
  rv32i-emulator -trace -stats -verbose program.bin

Debugger Commands (when in -debug mode):
  run, r             Start/restart program execution
  continue, c        Continue execution
  step, s            Execute single instruction
  next, n            Step over function calls
  break ADDR         Set breakpoint at address/label
  info registers     Show all registers
  print EXPR         Evaluate and print expression
  help               Show debugger help

Type 'help' at the debugger prompt for the full command list.
`, Version, vm.DefaultMaxCycles)
}
