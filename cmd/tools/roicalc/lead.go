package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/leadform"
	"ipa-leadgate/pkg/roi"
)

// printNavigator reports the page the browser would be sent to.
type printNavigator struct {
	out io.Writer
}

func (n printNavigator) Navigate(path string) {
	fmt.Fprintf(n.out, "Redirect to %s\n", path)
}

// runLead submits one step of the lead form. Progress between the two
// invocations is kept in the draft directory.
func runLead(args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("lead requires a step: step1, step2 or reset")
	}
	step, args := args[0], args[1:]

	fs := flag.NewFlagSet("lead "+step, flag.ExitOnError)
	gateway := fs.String("gateway", "http://localhost:8080/api", "Gateway base URL including the API path")
	drafts := fs.String("drafts", ".leadform", "Directory holding the form draft")
	timeout := fs.Duration("timeout", 15*time.Second, "Request timeout")
	verbose := fs.Bool("v", false, "Log gateway failures")

	email := fs.String("email", "", "Email address (step1)")
	consent := fs.Bool("consent", false, "Agree to be contacted (step1)")
	newsletter := fs.Bool("newsletter", false, "Subscribe to the newsletter (step1)")

	first := fs.String("first", "", "First name (step2)")
	last := fs.String("last", "", "Last name (step2)")
	company := fs.String("company", "", "Company (step2)")
	token := fs.String("token", "", "Bot challenge token (step2)")
	variantName := fs.String("variant", "", "Attach calculator results of this variant (step2)")
	inputs := newInputFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := leadform.NewFileDraftStore(*drafts)
	if err != nil {
		return err
	}
	log := logger.NewNoOpLogger()
	if *verbose {
		log = logger.NewStructured("debug", "console")
	}

	// the process exits right after the submit, so the redirect runs inline
	m, err := leadform.New(leadform.Dependencies{
		Store:     store,
		Gateway:   leadform.NewHTTPGatewayClient(*gateway, httpclient.NewClient(*timeout)),
		Navigator: printNavigator{out: out},
		Logger:    log,
		Schedule:  func(_ time.Duration, f func()) { f() },
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	var result *leadform.StepResult

	switch step {
	case "step1":
		result, err = m.SubmitStepOne(ctx, leadform.Step1Data{
			Email:             *email,
			ConsentRequired:   *consent,
			ConsentNewsletter: *newsletter,
		})
	case "step2":
		var calc *leadform.CalculatorSnapshot
		if *variantName != "" {
			v, lookupErr := roi.Lookup(*variantName)
			if lookupErr != nil {
				return lookupErr
			}
			in, collectErr := inputs.collect(v)
			if collectErr != nil {
				return collectErr
			}
			calc = &leadform.CalculatorSnapshot{Variant: v, Inputs: in}
		}
		result, err = m.SubmitStepTwo(ctx, leadform.Step2Data{
			FirstName: *first,
			LastName:  *last,
			Company:   *company,
		}, *token, calc)
	case "reset":
		m.Abandon()
		fmt.Fprintln(out, "Form draft removed.")
		return nil
	default:
		return fmt.Errorf("unknown lead step %q", step)
	}
	if err != nil {
		return err
	}

	printStepResult(out, result)
	if len(result.Errors) > 0 {
		return fmt.Errorf("form has invalid fields")
	}
	return nil
}

func printStepResult(out io.Writer, r *leadform.StepResult) {
	fmt.Fprintf(out, "State: %s\n", r.State)
	if r.Degraded {
		fmt.Fprintln(out, "Partial lead was not registered, continuing anyway.")
	}
	if r.Message != "" {
		fmt.Fprintln(out, r.Message)
	}
	fields := make([]string, 0, len(r.Errors))
	for f := range r.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		for _, msg := range r.Errors[f] {
			fmt.Fprintf(out, "%s: %s\n", f, msg)
		}
	}
}
