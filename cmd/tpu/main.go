package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AdamLeyshon/taraffic-vm/rgal"
	"github.com/AdamLeyshon/taraffic-vm/tpu"
)

var (
	maxSteps   uint
	verbose    bool
	peripheral string
)

var rootCmd = &cobra.Command{
	Use:   "tpu [program.rgal]",
	Short: "Traffic Processing Unit assembler and interpreter",
	Long: `tpu assembles RGAL source into a program image and steps a Traffic
Processing Unit core against it until the VM halts or the step budget is
exhausted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(args[0])
	},
}

func init() {
	rootCmd.Flags().UintVarP(&maxSteps, "max-steps", "n", 1_000_000, "abort after this many steps without halting")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every instruction as it executes")
	rootCmd.Flags().StringVarP(&peripheral, "peripheral", "p", "", "path to a TOML peripheral catalog (pin directions)")
}

func runFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	program, err := rgal.Parse(string(source))
	if err != nil {
		return fmt.Errorf("assembling %s: %w", path, err)
	}

	bus := tpu.NewSimBus(tpu.DefaultNetworkCapacity)
	if peripheral != "" {
		catalog, err := loadPeripheralCatalog(peripheral)
		if err != nil {
			return fmt.Errorf("loading peripheral catalog: %w", err)
		}
		catalog.apply(bus.Pins())
	}

	vm := tpu.NewVM(program, bus)

	var steps uint
	for !vm.IsHalted() {
		if steps >= maxSteps {
			return fmt.Errorf("step budget of %d exhausted without halting", maxSteps)
		}
		line := vm.ReadPC()
		cycles := vm.Step()
		steps++
		if verbose {
			instr, _ := program.At(line)
			fmt.Printf("% 5d  %-28s cycles=%d\n", line, instr.String(), cycles)
		}
	}

	fmt.Printf("halted: %s\n", vm.FaultKind())
	line, _ := vm.FaultLine()
	fmt.Printf("line: %d\n", line)
	fmt.Printf("cycles: %d\n", vm.Cycles())
	fmt.Printf("A=%d X=%d Y=%d\n", vm.ReadRegister(tpu.RegA), vm.ReadRegister(tpu.RegX), vm.ReadRegister(tpu.RegY))

	if vm.FaultKind() != tpu.FaultExplicitHalt {
		os.Exit(1)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
