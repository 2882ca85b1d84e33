package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/probe"
	"github.com/lockstepd/lockstep/internal/provisioning"
)

// Provisioner runs post-deployment verification probes.
type Provisioner struct{}

// NewProvisioner creates the verification phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string {
	return "verify"
}

// Provision probes every declared workload and stores the combined report
// on the run result. Check failures never stop the remaining checks; the
// operator gets the whole picture, then a single verification error.
func (p *Provisioner) Provision(pctx *provisioning.Context) error {
	workloads := pctx.Plan.ByKind(plan.KindWorkload)
	if len(workloads) == 0 {
		pctx.Logger.Info().Msg("no workloads declared, nothing to verify")
		return nil
	}
	if pctx.ProberFor == nil {
		return &provisioning.StepError{
			Kind: provisioning.KindConfiguration,
			Step: "verify",
			Err:  fmt.Errorf("no workload prober is wired"),
		}
	}

	merged := probe.Report{StartedAt: time.Now().UTC()}
	failedWorkload := ""
	for _, spec := range workloads {
		report := p.probeWorkload(pctx, spec)
		if merged.Endpoint == "" {
			merged.Endpoint = report.Endpoint
		}
		for _, check := range report.Checks {
			if len(workloads) > 1 {
				check.Name = spec.Name + "/" + check.Name
			}
			merged.Checks = append(merged.Checks, check)
		}

		if report.Passed() {
			pctx.Observer.Event(provisioning.Event{
				Type:     provisioning.EventVerificationPassed,
				Phase:    p.Name(),
				Resource: spec.Name,
				Message:  fmt.Sprintf("all %d checks passed", len(report.Checks)),
			})
			continue
		}
		if failedWorkload == "" {
			failedWorkload = spec.Name
		}
		pctx.Observer.Event(provisioning.Event{
			Type:     provisioning.EventVerificationFailed,
			Phase:    p.Name(),
			Resource: spec.Name,
			Message:  failureSummary(report),
		})
	}
	pctx.Result.SetProbe(merged)

	if failedWorkload == "" {
		return nil
	}
	return &provisioning.StepError{
		Kind:     provisioning.KindVerification,
		Resource: failedWorkload,
		Step:     "verify",
		Err:      fmt.Errorf("%d of %d verification checks failed", len(merged.FailedChecks()), len(merged.Checks)),
	}
}

// probeWorkload resolves the workload's endpoint from state and probes it.
// A workload without a recorded endpoint yields a synthetic failing check
// so the report explains itself instead of silently skipping.
func (p *Provisioner) probeWorkload(pctx *provisioning.Context, spec plan.ResourceSpec) probe.Report {
	opts, err := config.WorkloadOptionsFrom(spec)
	if err != nil {
		return failingReport(probe.Check{Name: "configuration", Detail: err.Error()})
	}
	endpoint, ok := pctx.State.Output(spec.Name, opts.EndpointOutput)
	if !ok || endpoint == "" {
		return failingReport(probe.Check{
			Name:   "endpoint",
			Detail: fmt.Sprintf("state records no %q output for this workload", opts.EndpointOutput),
		})
	}
	return pctx.ProberFor(endpoint).Run(pctx)
}

func failingReport(check probe.Check) probe.Report {
	return probe.Report{
		StartedAt: time.Now().UTC(),
		Checks:    []probe.Check{check},
	}
}

func failureSummary(report probe.Report) string {
	names := make([]string, 0, len(report.Checks))
	for _, check := range report.FailedChecks() {
		names = append(names, check.Name)
	}
	return "failed checks: " + strings.Join(names, ", ")
}
