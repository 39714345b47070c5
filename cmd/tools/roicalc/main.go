// cmd/tools/roicalc/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"ipa-leadgate/pkg/roi"
)

func main() {
	if len(os.Args) < 2 {
		help(os.Stdout)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "calc":
		err = runCalc(os.Args[2:], os.Stdout)
	case "validate":
		var ok bool
		ok, err = runValidate(os.Args[2:], os.Stdout)
		if err == nil && !ok {
			os.Exit(1)
		}
	case "scenarios":
		if len(os.Args) > 2 && os.Args[2] == "add" {
			err = runScenarioAdd(os.Args[3:], os.Stdout)
		} else {
			err = runScenarios(os.Args[2:], os.Stdout)
		}
	case "lead":
		err = runLead(os.Args[2:], os.Stdout)
	case "help":
		help(os.Stdout)
	default:
		help(os.Stdout)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// inputFlags registers one float flag per calculator input across all
// variants and reports which ones were set after parsing.
type inputFlags struct {
	fs     *flag.FlagSet
	values map[string]*float64
}

func newInputFlags(fs *flag.FlagSet) *inputFlags {
	f := &inputFlags{fs: fs, values: make(map[string]*float64)}
	for _, name := range roi.Names() {
		v, _ := roi.Lookup(name)
		for _, fld := range v.Fields {
			if _, ok := f.values[fld.Name]; ok {
				continue
			}
			f.values[fld.Name] = fs.Float64(fld.Name, 0, fmt.Sprintf("%s input (%g to %g)", fld.Name, fld.Min, fld.Max))
		}
	}
	return f
}

// collect returns the inputs set on the command line. Inputs of another
// variant are rejected.
func (f *inputFlags) collect(v *roi.Variant) (roi.Values, error) {
	in := make(roi.Values)
	var unknown []string
	f.fs.Visit(func(fl *flag.Flag) {
		ptr, ok := f.values[fl.Name]
		if !ok {
			return
		}
		if _, declared := v.Field(fl.Name); !declared {
			unknown = append(unknown, fl.Name)
			return
		}
		in[fl.Name] = *ptr
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("variant %s has no input %s", v.Name, strings.Join(unknown, ", "))
	}
	return in, nil
}

func runCalc(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calc", flag.ExitOnError)
	variantName := fs.String("variant", roi.Monetary.Name, "Calculator variant ("+strings.Join(roi.Names(), ", ")+")")
	asJSON := fs.Bool("json", false, "Print inputs and outputs as JSON")
	inputs := newInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	v, err := roi.Lookup(*variantName)
	if err != nil {
		return err
	}
	in, err := inputs.collect(v)
	if err != nil {
		return err
	}
	if res := v.Validate(in); !res.Valid {
		printErrors(out, v, res)
		return fmt.Errorf("invalid inputs")
	}

	snapshot := v.Snapshot(in)
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, fld := range v.Fields {
		val, _ := snapshot.Get(fld.Name)
		fmt.Fprintf(w, "%s\t%g\n", fld.Name, val)
	}
	fmt.Fprintln(w, "\t")
	for _, o := range v.Outputs {
		fmt.Fprintf(w, "%s\t%s\n", o.Name, o.Format(snapshot))
	}
	return w.Flush()
}

// runValidate reports whether the given inputs are within range. Only the
// inputs passed on the command line are checked.
func runValidate(args []string, out io.Writer) (bool, error) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	variantName := fs.String("variant", roi.Monetary.Name, "Calculator variant")
	inputs := newInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return false, err
	}

	v, err := roi.Lookup(*variantName)
	if err != nil {
		return false, err
	}
	in, err := inputs.collect(v)
	if err != nil {
		return false, err
	}

	res := v.Validate(in)
	if !res.Valid {
		printErrors(out, v, res)
		return false, nil
	}
	fmt.Fprintf(out, "Inputs valid for variant %s.\n", v.Name)
	return true, nil
}

func printErrors(out io.Writer, v *roi.Variant, res roi.ValidationResult) {
	for _, fld := range v.Fields {
		if msg, ok := res.Errors[fld.Name]; ok {
			fmt.Fprintf(out, "%s: %s\n", fld.Name, msg)
		}
	}
}

func runScenarios(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scenarios", flag.ExitOnError)
	path := fs.String("path", "configs/scenarios.json", "Path to scenario file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := roi.LoadScenarios(*path)
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	if err := file.Validate(); err != nil {
		return err
	}
	v, _ := roi.Lookup(file.Variant)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := []string{"scenario"}
	for _, o := range v.Outputs {
		header = append(header, o.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, s := range file.Scenarios {
		snapshot := v.Calculate(s.Inputs)
		row := []string{s.Name}
		for _, o := range v.Outputs {
			row = append(row, o.Format(snapshot))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func runScenarioAdd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scenarios add", flag.ExitOnError)
	path := fs.String("path", "configs/scenarios.json", "Path to scenario file")
	name := fs.String("name", "", "Scenario name")
	description := fs.String("description", "", "Description")
	variantName := fs.String("variant", roi.Monetary.Name, "Variant for a new scenario file")
	inputs := newInputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		fs.Usage()
		return fmt.Errorf("name is required for scenarios add")
	}

	file, err := roi.LoadScenarios(*path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load scenarios: %w", err)
		}
		file = roi.NewScenarioFile(*variantName)
	}

	v, err := roi.Lookup(file.Variant)
	if err != nil {
		return err
	}
	in, err := inputs.collect(v)
	if err != nil {
		return err
	}
	if res := v.Validate(in); !res.Valid {
		printErrors(out, v, res)
		return fmt.Errorf("invalid inputs")
	}

	if err := file.Add(roi.Scenario{Name: *name, Description: *description, Inputs: in}); err != nil {
		return err
	}
	if err := roi.SaveScenarios(file, *path); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	fmt.Fprintf(out, "Added scenario: %s\n", *name)
	return nil
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: roicalc <command> [flags]

Commands:
  calc           Evaluate the calculator for the given inputs
  validate       Check inputs against their allowed ranges
  scenarios      Evaluate every scenario in a scenario file
  scenarios add  Append a scenario to a scenario file
  lead           Submit the two-step lead form against a running gateway
  help           Show this help message

Examples:
  roicalc calc -variant monetary -clients 100 -packagesPerYear 4 -minutesSaved 60 -hourlyRate 120 -adoption 0.8 -annualCost 9600
  roicalc calc -variant time -clients 80 -ownerShare 0.5 -json
  roicalc validate -variant monetary -clients 5000
  roicalc scenarios -path configs/scenarios.json
  roicalc scenarios add -path configs/scenarios.json -name "Kleine Kanzlei" -clients 40
  roicalc lead step1 -email erika@kanzlei-muster.de -consent
  roicalc lead step2 -first Erika -last Mustermann -company "Kanzlei Muster" -token <turnstile-token>

Use 'roicalc <command> -h' for more information about a command.
`)
}
