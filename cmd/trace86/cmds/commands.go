package cmds

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pekd/trace86/pkg/config"
	"github.com/pekd/trace86/pkg/logflags"
	"github.com/pekd/trace86/pkg/proc"
	"github.com/pekd/trace86/pkg/proc/native"
	"github.com/pekd/trace86/pkg/regs"
	"github.com/pekd/trace86/pkg/snapshot"
	"github.com/pekd/trace86/pkg/terminal"
	"github.com/pekd/trace86/pkg/traceformat"
	"github.com/pekd/trace86/pkg/tracer"
	"github.com/pekd/trace86/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// maxSteps bounds the number of traced instructions.
	maxSteps uint64
	// disableASLR turns off address space randomization for the target.
	disableASLR bool
	// noForwardSignals suppresses signals received by the target.
	noForwardSignals bool
	// workingDir is the working directory for running the program.
	workingDir string

	// colorMode is one of auto, always or never.
	colorMode colorFlag
	// onlyChanged prints only registers that changed since the previous row.
	onlyChanged bool
	// header prints the register definition before the rows.
	header bool

	// verbose prints build information with the version.
	verbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const trace86CommandLongDesc = `trace86 records the execution of a program one instruction at a time.

The program is single-stepped under ptrace and the register state after
every instruction is appended to a trace file, which can be printed back
with 'trace86 print'.

Everything after the program name is passed to the program, for example:

` + "`trace86 record out.trace ./hello --verbose`"

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		conf = &config.Config{}
	}

	// Main trace86 root command.
	rootCommand = &cobra.Command{
		Use:   "trace86",
		Short: "trace86 is an instruction level execution tracer for x86-64 programs.",
		Long:  trace86CommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'trace86 help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'trace86 help log').")

	// 'record' subcommand.
	recordCommand := &cobra.Command{
		Use:   "record tracefile program [args]",
		Short: "Records the execution of a program.",
		Long: `Starts the program under ptrace and single-steps it until it exits.

The register state is written to tracefile at the first instruction and after
every single-step. Signals received by the program are reported and, unless
--no-forward-signals is given, delivered to it.`,
		Args: cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(recordCmd(args))
		},
	}
	// flags after the program name belong to the program
	recordCommand.Flags().SetInterspersed(false)
	recordCommand.Flags().Uint64Var(&maxSteps, "max-steps", conf.MaxSteps, "Stop tracing after this many instructions, 0 means no limit.")
	recordCommand.Flags().BoolVar(&disableASLR, "disable-aslr", conf.DisableASLR, "Disables address space randomization for the program.")
	recordCommand.Flags().BoolVar(&noForwardSignals, "no-forward-signals", !conf.ShouldForwardSignals(), "Does not deliver signals received by the program back to it.")
	recordCommand.Flags().StringVar(&workingDir, "wd", conf.WorkingDir, "Working directory for running the program.")
	rootCommand.AddCommand(recordCommand)

	// 'print' subcommand.
	printCommand := &cobra.Command{
		Use:   "print tracefile",
		Short: "Prints a trace.",
		Long: `Prints one line per register dump of the trace, each register as
name=value with the value in hexadecimal.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(printCmd(args[0]))
		},
	}
	colorMode = colorFlag(defaultString(conf.Color, "auto"))
	printCommand.Flags().Var(&colorMode, "color", "Highlights registers that changed: auto, always or never.")
	printCommand.Flags().BoolVar(&onlyChanged, "only-changed", false, "Prints only the registers that changed since the previous dump.")
	printCommand.Flags().BoolVar(&header, "header", false, "Prints the register definition before the dumps.")
	rootCommand.AddCommand(printCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trace86\n%s\n", version.Trace86Version)
			if verbose {
				fmt.Printf("%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	tracer		Log the step loop and the stops it observes (default)
	native		Log ptrace requests and wait statuses
	format		Log records skipped while decoding a trace

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// colorFlag is the value of --color.
type colorFlag string

var _ pflag.Value = (*colorFlag)(nil)

func (c *colorFlag) String() string { return string(*c) }

func (c *colorFlag) Set(s string) error {
	switch s {
	case "auto", "always", "never":
		*c = colorFlag(s)
		return nil
	}
	return fmt.Errorf("must be auto, always or never")
}

func (c *colorFlag) Type() string { return "mode" }

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func recordCmd(args []string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	fmt.Println("Execution Tracer")

	return record(args[0], args[1:], os.Stderr)
}

// record traces argv into the file at tracePath. Events and the final
// summary are reported on out.
func record(tracePath string, argv []string, out io.Writer) int {
	schema := regs.AMD64()
	enc, err := snapshot.NewEncoder(schema)
	if err != nil {
		fmt.Fprintf(out, "%v\n", err)
		return 1
	}

	// The trace file is created once there is a target to trace, a failed
	// launch leaves no file behind.
	p, err := native.Launch(argv, native.LaunchConfig{
		WorkingDir:  workingDir,
		DisableASLR: disableASLR,
	})
	if err != nil {
		var exited proc.ErrProcessExited
		if errors.As(err, &exited) {
			fmt.Fprintf(out, "%v\n", err)
		} else {
			fmt.Fprintf(out, "Could not launch program: %v\n", err)
		}
		return 1
	}
	fw, err := traceformat.Create(tracePath, schema)
	if err != nil {
		fmt.Fprintf(out, "Could not create trace file: %v\n", err)
		abandon(p)
		return 1
	}

	c := tracer.New(p, fw.Writer, enc, tracer.Config{
		MaxSteps:       maxSteps,
		ForwardSignals: !noForwardSignals,
		OnEvent: func(ev proc.StopEvent) {
			fmt.Fprintf(out, "%v\n", ev)
		},
	})
	sum, runErr := c.Run()
	if sum != nil {
		printSummary(out, p.Pid(), sum)
	}
	if runErr != nil {
		fmt.Fprintf(out, "%v\n", runErr)
	}
	if err := fw.Close(); err != nil {
		fmt.Fprintf(out, "Could not write trace file: %v\n", err)
		return 1
	}
	if runErr != nil {
		return 1
	}
	return 0
}

// abandon kills a target that will not be traced and reaps it.
func abandon(p *native.Process) {
	if err := p.Kill(); err != nil {
		return
	}
	for {
		ev, err := p.Wait()
		if err != nil || ev.Terminated() {
			return
		}
	}
}

func printSummary(out io.Writer, pid int, sum *tracer.Summary) {
	fmt.Fprintf(out, "Traced %d instructions, %d register dumps", sum.Steps, sum.Rows)
	if sum.Events > 0 {
		fmt.Fprintf(out, ", %d events", sum.Events)
	}
	fmt.Fprintln(out)
	switch {
	case sum.Truncated:
		fmt.Fprintf(out, "Process %d killed after %d instructions\n", pid, sum.Steps)
	case sum.Exited && sum.Signal != 0:
		fmt.Fprintf(out, "Process %d killed by signal %v\n", pid, sum.Signal)
	case sum.Exited:
		fmt.Fprintf(out, "Process %d has exited with status %d\n", pid, sum.ExitStatus)
	}
}

func printCmd(tracePath string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	color, err := terminal.UseColor(string(colorMode), os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	changedColor, err := terminal.ParseColor(conf.ChangedColor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	var stdout io.Writer = os.Stdout
	if color {
		stdout = terminal.Stdout()
	}
	return printTrace(tracePath, stdout, os.Stderr, terminal.PrinterConfig{
		Color:        color,
		ChangedColor: changedColor,
		OnlyChanged:  onlyChanged,
	}, header)
}

// printTrace prints the trace at tracePath to stdout, preceded by the
// register definition if withHeader is set. Decoding errors are reported
// on stderr after the rows decoded so far.
func printTrace(tracePath string, stdout, stderr io.Writer, pconf terminal.PrinterConfig, withHeader bool) int {
	f, err := os.Open(tracePath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	defer f.Close()

	w := bufio.NewWriter(stdout)
	p := terminal.NewPrinter(w, pconf)

	d := traceformat.NewDecoder(bufio.NewReader(f))
	schema, err := d.Schema()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", tracePath, err)
		return 1
	}
	if withHeader {
		if err := p.PrintHeader(schema); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}
	for {
		row, err := d.Next()
		if err == io.EOF {
			if err := w.Flush(); err != nil {
				fmt.Fprintf(stderr, "%v\n", err)
				return 1
			}
			return 0
		}
		if err != nil {
			w.Flush()
			fmt.Fprintf(stderr, "%s: %v\n", tracePath, err)
			return 1
		}
		if err := p.PrintRow(row); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}
}
