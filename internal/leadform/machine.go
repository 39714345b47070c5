// Package leadform drives the two-step ROI lead form: step one captures the
// email and consents, step two the contact details and the bot-challenge
// token. Progress after step one survives restarts through a DraftStore.
package leadform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/pkg/roi"
)

const (
	// RedirectDelay leaves the success message on screen before navigating.
	RedirectDelay    = 1500 * time.Millisecond
	ConfirmationPath = "/danke"

	MessageNoToken = "Bitte bestätigen Sie, dass Sie kein Roboter sind."
	MessageGeneric = "Ein Fehler ist aufgetreten. Bitte versuchen Sie es erneut."
)

var ErrInvalidTransition = errors.New("invalid form transition")

type State int

const (
	StepOne State = iota + 1
	StepTwo
	Submitted
)

func (s State) String() string {
	switch s {
	case StepOne:
		return "step_one"
	case StepTwo:
		return "step_two"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Step1Data struct {
	Email             string `json:"email"`
	ConsentRequired   bool   `json:"consentRequired"`
	ConsentNewsletter bool   `json:"consentNewsletter"`
}

type Step2Data struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company"`
}

// CalculatorSnapshot is the calculator state attached to a completed lead.
type CalculatorSnapshot struct {
	Variant *roi.Variant
	Inputs  roi.Values
}

// Merged returns inputs and outputs in one object, the shape the
// complete-lead endpoint expects.
func (c *CalculatorSnapshot) Merged() roi.Snapshot {
	if c == nil || c.Variant == nil {
		return nil
	}
	return c.Variant.Snapshot(c.Inputs)
}

// StepResult describes the outcome of a submit call. Errors holds local
// field errors; Message a text to show the visitor.
type StepResult struct {
	State    State
	Degraded bool
	Message  string
	Errors   map[string][]string
}

// Navigator moves the visitor to another page.
type Navigator interface {
	Navigate(path string)
}

type Dependencies struct {
	Store     DraftStore
	Gateway   GatewayClient
	Navigator Navigator
	Logger    logger.Logger
	// Schedule runs f after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, f func())
}

type Machine struct {
	mu       sync.Mutex
	state    State
	step1    *Step1Data
	store    DraftStore
	gateway  GatewayClient
	nav      Navigator
	logger   logger.Logger
	schedule func(d time.Duration, f func())
}

// New builds a machine and restores saved progress. A draft that cannot be
// parsed or fails validation is removed and the form starts over.
func New(deps Dependencies) (*Machine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("leadform: draft store is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("leadform: gateway client is required")
	}

	m := &Machine{
		state:    StepOne,
		store:    deps.Store,
		gateway:  deps.Gateway,
		nav:      deps.Navigator,
		logger:   deps.Logger,
		schedule: deps.Schedule,
	}
	if m.logger == nil {
		m.logger = logger.NewNoOpLogger()
	}
	if m.schedule == nil {
		m.schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	m.restore()
	return m, nil
}

func (m *Machine) restore() {
	data, err := m.store.Load(DraftKey)
	if errors.Is(err, ErrDraftNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("Failed to load form draft", map[string]interface{}{"error": err.Error()})
		return
	}

	draft, err := parseDraft(data)
	if err != nil {
		m.logger.Warn("Discarding unreadable form draft", map[string]interface{}{"error": err.Error()})
		m.deleteDraft()
		return
	}

	if draft.Step == 2 && draft.Step1Data != nil {
		m.state = StepTwo
		m.step1 = draft.Step1Data
	}
}

func parseDraft(data []byte) (*Draft, error) {
	result, err := draftSchema.Validate(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("draft does not match schema: %v", result.GetErrorMessages())
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, err
	}
	if draft.Step1Data != nil {
		if errs := validateStep1(*draft.Step1Data); errs != nil {
			return nil, fmt.Errorf("draft step one data is invalid: %v", errs)
		}
	}
	return &draft, nil
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Step1 returns the data captured in step one, or nil before that.
func (m *Machine) Step1() *Step1Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step1 == nil {
		return nil
	}
	cp := *m.step1
	return &cp
}

// SubmitStepOne registers the partial lead and always advances once the
// input is valid. A gateway failure only marks the result as degraded.
func (m *Machine) SubmitStepOne(ctx context.Context, data Step1Data) (*StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StepOne {
		return nil, fmt.Errorf("%w: step one submitted in %s", ErrInvalidTransition, m.state)
	}
	if errs := validateStep1(data); errs != nil {
		return &StepResult{State: m.state, Errors: errs}, nil
	}

	result := &StepResult{}
	_, err := m.gateway.SubmitPartialLead(ctx, PartialLeadRequest{
		Email:             data.Email,
		ConsentRequired:   data.ConsentRequired,
		ConsentNewsletter: data.ConsentNewsletter,
	})
	if err != nil {
		result.Degraded = true
		m.logger.Warn("Partial lead failed, advancing to step two", map[string]interface{}{
			"email": logger.MaskEmail(data.Email),
			"error": err.Error(),
		})
	}

	m.saveDraft(Draft{Step: 2, Step1Data: &data})
	m.step1 = &data
	m.state = StepTwo

	result.State = m.state
	return result, nil
}

// SubmitStepTwo completes the lead. Without a token nothing is sent. On
// failure the form stays in step two with the draft intact.
func (m *Machine) SubmitStepTwo(ctx context.Context, data Step2Data, token string, calc *CalculatorSnapshot) (*StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StepTwo || m.step1 == nil {
		return nil, fmt.Errorf("%w: step two submitted in %s", ErrInvalidTransition, m.state)
	}
	if errs := validateStep2(&data); errs != nil {
		return &StepResult{State: m.state, Errors: errs}, nil
	}
	if token == "" {
		return &StepResult{State: m.state, Message: MessageNoToken}, nil
	}

	resp, err := m.gateway.SubmitCompleteLead(ctx, CompleteLeadRequest{
		Email:          m.step1.Email,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Company:        data.Company,
		CalculatorData: calc.Merged(),
		TurnstileToken: token,
	})
	if err != nil {
		msg := MessageGeneric
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Message != "" {
			msg = gwErr.Message
		}
		m.logger.Warn("Complete lead failed", map[string]interface{}{
			"email": logger.MaskEmail(m.step1.Email),
			"error": err.Error(),
		})
		return &StepResult{State: m.state, Message: msg}, nil
	}

	m.deleteDraft()
	m.state = Submitted
	if m.nav != nil {
		nav := m.nav
		m.schedule(RedirectDelay, func() { nav.Navigate(ConfirmationPath) })
	}

	result := &StepResult{State: m.state}
	if resp != nil {
		result.Message = resp.Message
	}
	return result, nil
}

// Abandon drops the draft and starts over.
func (m *Machine) Abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteDraft()
	m.step1 = nil
	m.state = StepOne
}

func (m *Machine) saveDraft(d Draft) {
	data, err := json.Marshal(d)
	if err == nil {
		err = m.store.Save(DraftKey, data)
	}
	if err != nil {
		m.logger.Error("Failed to save form draft", map[string]interface{}{"error": err.Error()})
	}
}

func (m *Machine) deleteDraft() {
	if err := m.store.Delete(DraftKey); err != nil {
		m.logger.Error("Failed to delete form draft", map[string]interface{}{"error": err.Error()})
	}
}
