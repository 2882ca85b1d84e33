package e2e

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/lockstepd/lockstep/internal/config"
	"github.com/lockstepd/lockstep/internal/orchestration"
	"github.com/lockstepd/lockstep/internal/provisioning"
	testsupport "github.com/lockstepd/lockstep/internal/testing"
)

var _ = Describe("deployment pipeline", func() {
	var (
		ctx     context.Context
		fixture *testsupport.DeploymentFixture
		server  *testsupport.WorkloadServer
		cfg     *config.Config
	)

	// newDeployment builds a fresh facade over the shared fixture, the way
	// every CLI invocation starts from scratch and reloads state from disk.
	newDeployment := func() *orchestration.Deployment {
		dep, err := orchestration.NewDeployment(fixture.Engine(), fixture.Provider(), cfg, zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())
		return dep
	}

	BeforeEach(func() {
		ctx = context.Background()
		fixture = testsupport.NewDeploymentFixture()
		server = testsupport.NewWorkloadServer()
		DeferCleanup(server.Close)
		fixture.WithWorkloadEndpoint("acme-dev-workload", server.URL())
		cfg = testsupport.SampleConfigBuilder().
			WithStatePath(filepath.Join(GinkgoT().TempDir(), "state.json")).
			Build()
	})

	It("converges a fresh environment, verifies it, and hardens it", func() {
		result, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.CreatedCount()).To(Equal(4))
		Expect(result.FailedCount()).To(BeZero())
		Expect(result.Probe).NotTo(BeNil())
		Expect(result.Probe.Passed()).To(BeTrue())
		Expect(result.HardeningApplied).To(BeTrue())

		bindings := fixture.Bindings()
		Expect(bindings).To(HaveLen(1))
		Expect(bindings[0].Principal).To(Equal("id-1"))
		Expect(bindings[0].Role).To(Equal("object-writer"))
		Expect(bindings[0].Scope).To(Equal("st-1"))

		Expect(fixture.Settings("acme-dev-storage")).To(HaveKeyWithValue("permissive_auth", "false"))
		Expect(server.FileCount()).To(BeNumerically(">=", 1),
			"the probe writes through the workload, not past it")
	})

	It("changes nothing on a repeat run over a converged environment", func() {
		_, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		result, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.CreatedCount()).To(BeZero())
		Expect(result.Outcomes()).To(HaveLen(4))
		for _, outcome := range result.Outcomes() {
			Expect(outcome.Action).To(Equal(provisioning.ActionUnchanged), outcome.Name)
		}

		storage, ok := fixture.Resource("acme-dev-storage")
		Expect(ok).To(BeTrue())
		Expect(storage.ID).To(Equal("st-1"), "repeat runs reuse identifiers")
		Expect(fixture.ResourceCount()).To(Equal(4))
		Expect(fixture.Bindings()).To(HaveLen(1))
	})

	It("recovers an ambiguous binding apply by asking the provider", func() {
		fixture.WithAmbiguousApply("acme-dev-binding", 1).WithPropagationLag(2)

		dep := newDeployment()
		result, err := dep.Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		var binding provisioning.ResourceOutcome
		for _, outcome := range result.Outcomes() {
			if outcome.Name == "binding" {
				binding = outcome
			}
		}
		Expect(binding.Action).To(Equal(provisioning.ActionImported))
		Expect(binding.ID).To(Equal("bnd-1"))
		Expect(fixture.Engine().ApplyCount("acme-dev-binding")).To(Equal(1),
			"an unknown outcome is looked up, never re-applied")
		Expect(fixture.Provider().GetCount()).To(BeNumerically(">=", 1))
		Expect(fixture.Provider().ListCount()).To(BeNumerically(">=", 3),
			"two lagged polls plus the confirming one")

		record, ok := dep.State().Get("binding")
		Expect(ok).To(BeTrue())
		Expect(record.Effective).To(BeTrue())
		Expect(result.Probe.Passed()).To(BeTrue())
		Expect(result.HardeningApplied).To(BeTrue())
	})

	It("aborts before hardening on propagation timeout and resumes cleanly", func() {
		fixture.WithPropagationLag(40)
		setenvDuring("LOCKSTEP_TIMEOUT_PROPAGATION", "50ms")

		dep := newDeployment()
		_, err := dep.Apply(ctx)
		Expect(err).To(HaveOccurred())
		Expect(provisioning.KindOf(err)).To(Equal(provisioning.KindPropagationTimeout))

		Expect(fixture.Provider().Updates()).To(BeEmpty(),
			"nothing is wired or hardened until the binding is confirmed")
		Expect(fixture.Settings("acme-dev-storage")).NotTo(HaveKey("permissive_auth"))
		record, ok := dep.State().Get("binding")
		Expect(ok).To(BeTrue(), "the applied binding survives the abort")
		Expect(record.Effective).To(BeFalse())

		setenvDuring("LOCKSTEP_TIMEOUT_PROPAGATION", "5s")
		result, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.CreatedCount()).To(BeZero(), "the resume confirms, it does not recreate")
		Expect(result.HardeningApplied).To(BeTrue())
		Expect(fixture.Bindings()).To(HaveLen(1))
		Expect(fixture.Settings("acme-dev-storage")).To(HaveKeyWithValue("permissive_auth", "false"))
	})

	It("reports a degraded workload without touching the deployment", func() {
		_, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		server.SetUnhealthy(true)
		applies := fixture.Engine().Applied()

		result, err := newDeployment().Verify(ctx)
		Expect(err).To(HaveOccurred())
		Expect(provisioning.KindOf(err)).To(Equal(provisioning.KindVerification))

		Expect(result).NotTo(BeNil())
		Expect(result.Probe).NotTo(BeNil())
		Expect(result.Probe.Passed()).To(BeFalse())
		Expect(fixture.Engine().Applied()).To(HaveLen(len(applies)),
			"verification only reads")
	})

	It("destroys in reverse dependency order and empties tracked state", func() {
		_, err := newDeployment().Apply(ctx)
		Expect(err).NotTo(HaveOccurred())

		dep := newDeployment()
		result, err := dep.Destroy(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Outcomes()).To(HaveLen(4))
		for _, outcome := range result.Outcomes() {
			Expect(outcome.Action).To(Equal(provisioning.ActionDestroyed), outcome.Name)
		}

		destroyed := fixture.Engine().Destroyed()
		Expect(destroyed).To(HaveLen(4))
		names := make([]string, len(destroyed))
		for i, doc := range destroyed {
			names[i] = doc.Name
		}
		Expect(names).To(Equal([]string{
			"acme-dev-workload", "acme-dev-binding", "acme-dev-identity", "acme-dev-storage",
		}))

		Expect(fixture.ResourceCount()).To(BeZero())
		Expect(fixture.Bindings()).To(BeEmpty())
		Expect(dep.State().Snapshot().Resources).To(BeEmpty())
	})
})
