package domain

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spore.dev/pkg/spore/internal/adapter"
	"spore.dev/pkg/spore/internal/catalog"
	"spore.dev/pkg/spore/internal/coverage"
	"spore.dev/pkg/spore/internal/model"
	"spore.dev/pkg/spore/pkg"
)

// defaultTestTimeout bounds one targeted test run when no explicit timeout is
// configured.
const defaultTestTimeout = 2 * time.Second

// PipelineConfig carries one run's parameters.
type PipelineConfig struct {
	Paths   []model.Path
	Exclude []string
	// Preset selects a named operator set; Operators, when non-empty,
	// overrides it with explicit IDs.
	Preset    string
	Operators []string
	Strategy  ClusterStrategy
	Workers   int
	// TestTimeout bounds each targeted test run under a mutation. A mutation
	// can turn a terminating loop into a non-terminating one, so this bound is
	// what turns that into a timeout verdict instead of a hung run.
	TestTimeout time.Duration
	// UseCache enables incremental change detection against the state store.
	UseCache bool
	// UseSchemata compiles all mutations of a file into one guarded source
	// and switches between them at runtime instead of editing per mutant.
	UseSchemata bool
	ReportsDir  model.Path
}

// Orchestrator wires the pipeline stages to the infrastructure adapters and
// drives a whole run.
type Orchestrator struct {
	fs        adapter.SourceFS
	runner    adapter.TestRunner
	inventory adapter.TestInventory
	oracle    adapter.TraceOracle
	reload    adapter.ReloadService
	selector  adapter.MutantSelector
	locator   adapter.FormLocator
	reports   adapter.ReportStore
	store     *coverage.Store
	catalog   *catalog.Catalog
	applier   *Applier
}

// NewOrchestrator constructs an orchestrator over the given adapters.
func NewOrchestrator(
	fs adapter.SourceFS,
	runner adapter.TestRunner,
	inventory adapter.TestInventory,
	oracle adapter.TraceOracle,
	reload adapter.ReloadService,
	selector adapter.MutantSelector,
	locator adapter.FormLocator,
	reports adapter.ReportStore,
	store *coverage.Store,
	cat *catalog.Catalog,
) *Orchestrator {
	return &Orchestrator{
		fs:        fs,
		runner:    runner,
		inventory: inventory,
		oracle:    oracle,
		reload:    reload,
		selector:  selector,
		locator:   locator,
		reports:   reports,
		store:     store,
		catalog:   cat,
		applier:   NewApplier(fs),
	}
}

// plan is the prepared, not-yet-executed part of a run: parsed snapshots, the
// coverage index and bridge, and the clustered sites.
type plan struct {
	snapshots map[model.Path]*Snapshot
	files     []model.Path
	index     *coverage.Index
	bridge    *coverage.Bridge
	sites     []model.MutationSite
	excluded  []model.ExcludedSite
	clusters  []model.Cluster
	digests   []coverage.FormDigest
	units     []coverage.Unit
	// carried holds the previous run's reports for sites whose forms are
	// unchanged; they re-enter the tally without executing again.
	carried []model.Report
}

// Run executes the full pipeline and returns the persisted summary.
func (o *Orchestrator) Run(ctx context.Context, cfg PipelineConfig) (model.RunSummary, error) {
	p, err := o.prepare(ctx, cfg)
	if err != nil {
		return model.RunSummary{}, err
	}

	slog.Info("mutation plan ready",
		"files", len(p.files),
		"sites", len(p.sites),
		"equivalent", len(p.excluded),
		"clusters", len(p.clusters))

	spill, err := pkg.NewSpill[model.Report]()
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("create report spill: %w", err)
	}

	defer func() {
		if err := spill.Close(); err != nil {
			slog.Error("failed to close report spill", "error", err)
		}
	}()

	if cfg.UseSchemata {
		err = o.executeSchemata(ctx, cfg, p, spill)
	} else {
		err = o.executeSequential(ctx, cfg, p, spill)
	}

	if err != nil {
		return model.RunSummary{}, err
	}

	for _, report := range p.carried {
		if err := spill.Append(report); err != nil {
			return model.RunSummary{}, err
		}
	}

	summary, err := Tally(uuid.NewString(), spill, p.excluded)
	if err != nil {
		return model.RunSummary{}, err
	}

	if err := o.persist(cfg, p, summary); err != nil {
		return model.RunSummary{}, err
	}

	slog.Info("run finished",
		"run", summary.RunID,
		"score", summary.Score,
		"killed", summary.Killed,
		"survived", summary.Survived)

	return summary, nil
}

// Estimate runs every stage up to, but not including, execution. Used by the
// list command to show what a run would do.
func (o *Orchestrator) Estimate(ctx context.Context, cfg PipelineConfig) ([]model.MutationSite, []model.ExcludedSite, []model.Cluster, error) {
	p, err := o.prepare(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return p.sites, p.excluded, p.clusters, nil
}

func (o *Orchestrator) prepare(ctx context.Context, cfg PipelineConfig) (*plan, error) {
	files, err := o.fs.Discover(cfg.Paths, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	snapshots, err := o.parseAll(ctx, files, cfg.Workers)
	if err != nil {
		return nil, err
	}

	units, currentHashes, storedHashes, err := o.refreshCoverage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	index := coverage.Build(units)

	bridge, err := o.buildBridge(ctx)
	if err != nil {
		return nil, err
	}

	ops, err := o.selectOperators(cfg)
	if err != nil {
		return nil, err
	}

	var sites []model.MutationSite

	for _, file := range files {
		sites = append(sites, Scan(snapshots[file], ops, len(sites))...)
	}

	sites, excluded := FilterEquivalent(sites, o.catalog, snapshots)

	reduced := ReduceOperators(ops, o.catalog)
	sites = FilterSitesByOperators(sites, reduced)

	digests := o.digestAll(files, snapshots)

	var carried []model.Report

	if cfg.UseCache {
		sites, carried, err = o.applyChangeDetection(cfg, sites, digests, currentHashes, storedHashes, index, bridge, snapshots)
		if err != nil {
			return nil, err
		}
	}

	clusters, err := BuildClusters(sites, cfg.Strategy, snapshots)
	if err != nil {
		return nil, err
	}

	return &plan{
		snapshots: snapshots,
		files:     files,
		index:     index,
		bridge:    bridge,
		sites:     sites,
		excluded:  excluded,
		clusters:  clusters,
		digests:   digests,
		units:     units,
		carried:   carried,
	}, nil
}

func (o *Orchestrator) parseAll(ctx context.Context, files []model.Path, workers int) (map[model.Path]*Snapshot, error) {
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex

	snapshots := make(map[model.Path]*Snapshot, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, file := range files {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			content, err := o.fs.ReadFile(file)
			if err != nil {
				return err
			}

			snap, err := NewSnapshot(file, string(content))
			if err != nil {
				return err
			}

			mu.Lock()
			snapshots[file] = snap
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// refreshCoverage brings the persisted coverage units up to date with the
// current test inventory. It returns the refreshed units plus the current and
// pre-refresh dependency hashes; the change detector needs the stored hashes
// captured here, before SaveUnits overwrites them.
func (o *Orchestrator) refreshCoverage(ctx context.Context, cfg PipelineConfig) ([]coverage.Unit, map[string]string, map[string]string, error) {
	tests, err := o.inventory.Tests(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	currentHashes := make(map[string]string, len(tests))

	for _, test := range tests {
		hash, err := o.depHash(test)
		if err != nil {
			return nil, nil, nil, err
		}

		currentHashes[string(test.ID)] = hash
	}

	stored, err := o.store.LoadUnits()
	if err != nil {
		return nil, nil, nil, err
	}

	storedHashes := make(map[string]string, len(stored))
	for _, unit := range stored {
		storedHashes[unit.ID] = unit.DepHash
	}

	// The oracle is one shared stream, so recording is serialized even when
	// the refresh itself fans out.
	var recordMu sync.Mutex

	record := func(ctx context.Context, unitID string) ([]coverage.TraceEvent, error) {
		recordMu.Lock()
		defer recordMu.Unlock()

		if err := o.oracle.Reset(ctx); err != nil {
			return nil, err
		}

		if _, _, err := o.runner.Run(ctx, model.TestID(unitID)); err != nil {
			return nil, fmt.Errorf("record coverage for %s: %w", unitID, err)
		}

		return o.oracle.Drain(ctx)
	}

	units, err := coverage.Refresh(ctx, stored, currentHashes, record, cfg.Workers)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := o.store.SaveUnits(units); err != nil {
		return nil, nil, nil, err
	}

	return units, currentHashes, storedHashes, nil
}

// depHash fingerprints a test by its declared source dependencies: the hash
// changes when any dependency's content does.
func (o *Orchestrator) depHash(test adapter.TestInfo) (string, error) {
	deps := make([]model.Path, len(test.Deps))
	copy(deps, test.Deps)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", test.ID)

	for _, dep := range deps {
		fileHash, err := o.fs.HashFile(dep)
		if err != nil {
			return "", fmt.Errorf("hash dependency %s of %s: %w", dep, test.ID, err)
		}

		fmt.Fprintf(h, "%s=%s\n", dep, fileHash)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (o *Orchestrator) buildBridge(ctx context.Context) (*coverage.Bridge, error) {
	locations, err := o.locator.Locations(ctx)
	if err != nil {
		return nil, err
	}

	return coverage.NewBridge(locations), nil
}

func (o *Orchestrator) selectOperators(cfg PipelineConfig) ([]catalog.Operator, error) {
	if len(cfg.Operators) > 0 {
		return o.catalog.Select(cfg.Operators), nil
	}

	preset := cfg.Preset
	if preset == "" {
		preset = catalog.PresetDefault
	}

	return o.catalog.Preset(preset)
}

func (o *Orchestrator) digestAll(files []model.Path, snapshots map[model.Path]*Snapshot) []coverage.FormDigest {
	var digests []coverage.FormDigest

	for _, file := range files {
		digests = append(digests, DigestForms(snapshots[file])...)
	}

	return digests
}

func (o *Orchestrator) applyChangeDetection(
	cfg PipelineConfig,
	sites []model.MutationSite,
	digests []coverage.FormDigest,
	currentHashes, storedHashes map[string]string,
	index *coverage.Index,
	bridge *coverage.Bridge,
	snapshots map[model.Path]*Snapshot,
) ([]model.MutationSite, []model.Report, error) {
	stored, err := o.store.LoadFormDigests()
	if err != nil {
		return nil, nil, err
	}

	covering := make(map[model.FormID][]model.TestID)

	for _, snap := range snapshots {
		for _, form := range snap.Forms {
			if oracleForm, ok := bridge.FormAt(form.File, form.StartLine); ok {
				covering[form.ID] = index.TestsForForm(oracleForm)
			}
		}
	}

	changed := DetectChanges(digests, stored, covering, ChangedTests(currentHashes, storedHashes))

	kept := FilterSitesByForms(sites, changed)

	keptKeys := make(map[string]struct{}, len(kept))
	for _, site := range kept {
		keptKeys[site.Key()] = struct{}{}
	}

	// Skipped sites reuse the previous run's verdicts. A skipped site without
	// a recorded result has nothing to reuse and is executed after all.
	prior := o.loadPriorReports(cfg)

	var carried []model.Report

	for _, site := range sites {
		if _, ok := keptKeys[site.Key()]; ok {
			continue
		}

		if report, ok := prior[site.Key()]; ok {
			carried = append(carried, report)

			continue
		}

		kept = append(kept, site)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].ScanIndex < kept[j].ScanIndex })

	slog.Info("change detection",
		"changed_forms", len(changed),
		"sites_kept", len(kept),
		"reports_carried", len(carried),
		"sites_total", len(sites))

	return kept, carried, nil
}

// loadPriorReports indexes the previous run's reports by site key. A missing
// or unreadable summary just means there is nothing to reuse.
func (o *Orchestrator) loadPriorReports(cfg PipelineConfig) map[string]model.Report {
	if cfg.ReportsDir == "" {
		return nil
	}

	summary, err := o.reports.LoadSummary(cfg.ReportsDir)
	if err != nil {
		slog.Debug("no prior summary to reuse", "error", err)

		return nil
	}

	prior := make(map[string]model.Report, len(summary.Reports))
	for _, report := range summary.Reports {
		prior[report.Site.Key()] = report
	}

	return prior
}

// targetedTests selects the tests covering a site's location, falling back to
// form-level coverage when the index has no coordinate-grained entry.
func (o *Orchestrator) targetedTests(p *plan, site model.MutationSite) []model.TestID {
	oracleForm, ok := p.bridge.FormAt(site.File, site.Line)
	if !ok {
		return nil
	}

	if tests := p.index.TestsFor(oracleForm, site.Coord); len(tests) > 0 {
		return tests
	}

	return p.index.TestsForForm(oracleForm)
}

// executeSequential runs each cluster representative through the mutate,
// reload, test, revert, reload cycle.
func (o *Orchestrator) executeSequential(ctx context.Context, cfg PipelineConfig, p *plan, spill pkg.Spill[model.Report]) error {
	for _, cluster := range p.clusters {
		report, err := o.runRepresentative(ctx, cfg, p, cluster.Representative)
		if err != nil {
			return err
		}

		if err := spill.Append(report); err != nil {
			return err
		}

		for _, propagated := range PropagateVerdict(cluster, report) {
			if err := spill.Append(propagated); err != nil {
				return err
			}
		}
	}

	return nil
}

func (o *Orchestrator) runRepresentative(ctx context.Context, cfg PipelineConfig, p *plan, site model.MutationSite) (_ model.Report, err error) {
	tests := o.targetedTests(p, site)
	if len(tests) == 0 {
		slog.Debug("no covering tests", "site", site.Key())

		return model.Report{Site: site, Verdict: model.NoCoverage.String()}, nil
	}

	snap := p.snapshots[site.File]

	handle, applyErr := o.applier.Apply(snap, site)
	if applyErr != nil {
		slog.Warn("skipping unappliable site", "site", site.Key(), "error", applyErr)

		return model.Report{Site: site, Verdict: model.Errored.String(), Output: applyErr.Error()}, nil
	}

	// Reversion runs on every exit path out of the cycle, panics included; a
	// failed revert poisons every later verdict, so it aborts the run.
	defer func() {
		if revertErr := o.applier.Revert(handle); revertErr != nil {
			err = errors.Join(err, revertErr)

			return
		}

		if reloadErr := o.reload.Reload(ctx); reloadErr != nil {
			err = errors.Join(err, fmt.Errorf("reload after revert: %w", reloadErr))
		}
	}()

	if reloadErr := o.reload.Reload(ctx); reloadErr != nil {
		return model.Report{Site: site, Verdict: model.Errored.String(), Output: reloadErr.Error()}, nil
	}

	verdict, output, killedBy := o.runTargeted(ctx, cfg, tests)

	return model.Report{
		Site:     site,
		Verdict:  verdict.String(),
		Output:   output,
		Diff:     handle.Diff(),
		KilledBy: killedBy,
	}, nil
}

// executeSchemata compiles each file's representatives into one guarded
// source, then switches mutants at runtime: one reload per file instead of
// two per mutant.
func (o *Orchestrator) executeSchemata(ctx context.Context, cfg PipelineConfig, p *plan, spill pkg.Spill[model.Report]) error {
	byFile := make(map[model.Path][]model.Cluster)

	for _, cluster := range p.clusters {
		file := cluster.Representative.File
		byFile[file] = append(byFile[file], cluster)
	}

	for _, file := range p.files {
		clusters, ok := byFile[file]
		if !ok {
			continue
		}

		if err := o.runFileSchemata(ctx, cfg, p, file, clusters, spill); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) runFileSchemata(
	ctx context.Context,
	cfg PipelineConfig,
	p *plan,
	file model.Path,
	clusters []model.Cluster,
	spill pkg.Spill[model.Report],
) error {
	snap := p.snapshots[file]

	executable := make([]model.Cluster, 0, len(clusters))
	representatives := make([]model.MutationSite, 0, len(clusters))

	for _, cluster := range clusters {
		site := cluster.Representative

		if len(o.targetedTests(p, site)) == 0 {
			report := model.Report{Site: site, Verdict: model.NoCoverage.String()}
			if err := appendWithPropagation(spill, cluster, report); err != nil {
				return err
			}

			continue
		}

		executable = append(executable, cluster)
		representatives = append(representatives, site)
	}

	if len(executable) == 0 {
		return nil
	}

	bundle, err := CompileSchemata(snap, representatives)
	if err != nil {
		slog.Warn("schemata compile failed, falling back to sequential", "file", file, "error", err)

		for _, cluster := range executable {
			report, err := o.runRepresentative(ctx, cfg, p, cluster.Representative)
			if err != nil {
				return err
			}

			if err := appendWithPropagation(spill, cluster, report); err != nil {
				return err
			}
		}

		return nil
	}

	runErr := o.activateBundle(ctx, cfg, p, file, bundle, executable, spill)

	if err := o.selector.Clear(ctx); err != nil {
		return errors.Join(runErr, err)
	}

	if err := o.reload.Reload(ctx); err != nil {
		return errors.Join(runErr, fmt.Errorf("reload after schemata revert: %w", err))
	}

	return runErr
}

// activateBundle writes the compiled bundle, reloads it and drives every
// mutant through its targeted tests. The original file comes back on every
// exit path, panics included.
func (o *Orchestrator) activateBundle(
	ctx context.Context,
	cfg PipelineConfig,
	p *plan,
	file model.Path,
	bundle *SchemaBundle,
	clusters []model.Cluster,
	spill pkg.Spill[model.Report],
) (err error) {
	if err := o.fs.WriteFile(file, bundle.Content(), 0o600); err != nil {
		return fmt.Errorf("write schemata bundle %s: %w", file, err)
	}

	defer func() {
		if revertErr := o.applier.Revert(bundle.Handle()); revertErr != nil {
			err = errors.Join(err, revertErr)
		}
	}()

	if err := o.reload.Reload(ctx); err != nil {
		return fmt.Errorf("reload schemata bundle %s: %w", file, err)
	}

	return o.runBundleMutants(ctx, cfg, p, clusters, spill)
}

func (o *Orchestrator) runBundleMutants(
	ctx context.Context,
	cfg PipelineConfig,
	p *plan,
	clusters []model.Cluster,
	spill pkg.Spill[model.Report],
) error {
	for _, cluster := range clusters {
		site := cluster.Representative

		if err := o.selector.Activate(ctx, site.Key()); err != nil {
			return err
		}

		verdict, output, killedBy := o.runTargeted(ctx, cfg, o.targetedTests(p, site))

		report := model.Report{
			Site:     site,
			Verdict:  verdict.String(),
			Output:   output,
			KilledBy: killedBy,
		}

		if err := appendWithPropagation(spill, cluster, report); err != nil {
			return err
		}
	}

	return nil
}

func appendWithPropagation(spill pkg.Spill[model.Report], cluster model.Cluster, report model.Report) error {
	if err := spill.Append(report); err != nil {
		return err
	}

	for _, propagated := range PropagateVerdict(cluster, report) {
		if err := spill.Append(propagated); err != nil {
			return err
		}
	}

	return nil
}

// runTargeted executes the targeted tests against the active mutation. The
// first failing or throwing test kills the mutant and ends the loop; a test
// exceeding the timeout yields a timeout verdict and cancels the rest.
func (o *Orchestrator) runTargeted(ctx context.Context, cfg PipelineConfig, tests []model.TestID) (model.Verdict, string, model.TestID) {
	timeout := cfg.TestTimeout
	if timeout <= 0 {
		timeout = defaultTestTimeout
	}

	for _, test := range tests {
		testCtx, cancel := context.WithTimeout(ctx, timeout)
		outcome, output, err := o.runner.Run(testCtx, test)

		cancel()

		if err != nil {
			if testCtx.Err() == context.DeadlineExceeded {
				return model.Timeout, output, test
			}

			return model.Errored, output, ""
		}

		// An uncaught error under mutation is a kill like any failed
		// assertion.
		if outcome == adapter.OutcomeFail || outcome == adapter.OutcomeThrew {
			return model.Killed, output, test
		}
	}

	return model.Survived, "", ""
}

func (o *Orchestrator) persist(cfg PipelineConfig, p *plan, summary model.RunSummary) error {
	if cfg.ReportsDir != "" {
		if err := o.reports.SaveSummary(cfg.ReportsDir, summary); err != nil {
			return err
		}
	}

	if err := o.store.SaveFormDigests(p.digests); err != nil {
		return err
	}

	return o.store.RecordRun(summary.RunID, summary.Score)
}
