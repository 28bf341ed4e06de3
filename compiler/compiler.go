// Package compiler runs the rule corpus compilation: it loads the section
// registry, parses every discovered document in parallel, resolves conflicts
// and builds the manifest.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alexraputa/agent-skills-sub001/manifest"
	"github.com/alexraputa/agent-skills-sub001/rules"
	"github.com/alexraputa/agent-skills-sub001/rules/conflict"
	"github.com/alexraputa/agent-skills-sub001/rules/loader"
	"github.com/alexraputa/agent-skills-sub001/rules/parser"
	"github.com/alexraputa/agent-skills-sub001/rules/sections"
)

// Exit codes returned by the CLI.
const (
	ExitOK     = 0
	ExitIssues = 1
	ExitFatal  = 2
)

// Options configures a Compiler.
type Options struct {
	// SectionsFile is the path of the section definitions document within the rules FS.
	SectionsFile string

	// Include and Exclude are doublestar patterns selecting rule documents.
	// A nil Exclude takes the defaults; an empty one excludes nothing.
	Include []string
	Exclude []string

	// Workers bounds the number of documents parsed concurrently.
	Workers int

	// DocumentTimeout bounds reading one document.
	DocumentTimeout time.Duration

	// ImpactAliases adds impact synonyms on top of the built-in ones.
	ImpactAliases map[string]string

	// ListDelimiter separates values of list-valued metadata fields.
	ListDelimiter string

	Logger  *slog.Logger
	Metrics *Metrics
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	return Options{
		SectionsFile:    "_sections.md",
		Include:         []string{"**/*.md", "**/*.markdown", "**/*.html", "**/*.htm"},
		Exclude:         []string{"**/_*", "**/README.md"},
		Workers:         runtime.NumCPU(),
		DocumentTimeout: 5 * time.Second,
		ListDelimiter:   parser.DefaultListDelimiter,
	}
}

// Result describes a finished run.
type Result struct {
	RunID     string
	State     State
	History   []State
	Manifest  *manifest.Manifest
	Issues    []Issue
	Sections  []rules.Section
	Documents int
	Duration  time.Duration
}

// ConflictCount returns the number of conflicts in the manifest.
func (r *Result) ConflictCount() int {
	if r.Manifest == nil {
		return 0
	}
	return len(r.Manifest.Conflicts)
}

// Clean reports whether the run had neither per-document errors nor conflicts.
func (r *Result) Clean() bool {
	return len(r.Issues) == 0 && r.ConflictCount() == 0
}

// ExitCode maps the run outcome to the CLI exit code.
func (r *Result) ExitCode(strict bool) int {
	switch {
	case r.State != StateManifestBuilt:
		return ExitFatal
	case r.Clean():
		return ExitOK
	case strict:
		return ExitFatal
	default:
		return ExitIssues
	}
}

// Compiler runs compilations. It holds configuration only and can run any
// number of independent compilations.
type Compiler struct {
	opts       Options
	logger     *slog.Logger
	normalizer *rules.ImpactNormalizer
	parsers    *parser.Registry
}

// New validates options and creates a compiler.
func New(opts Options) (*Compiler, error) {
	defaults := DefaultOptions()
	if opts.SectionsFile == "" {
		opts.SectionsFile = defaults.SectionsFile
	}
	if len(opts.Include) == 0 {
		opts.Include = defaults.Include
	}
	if opts.Exclude == nil {
		opts.Exclude = defaults.Exclude
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.DocumentTimeout <= 0 {
		opts.DocumentTimeout = defaults.DocumentTimeout
	}
	if opts.ListDelimiter == "" {
		opts.ListDelimiter = defaults.ListDelimiter
	}

	normalizer, err := rules.NewImpactNormalizer(opts.ImpactAliases)
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Compiler{
		opts:       opts,
		logger:     logger,
		normalizer: normalizer,
		parsers:    parser.NewRegistry(),
	}, nil
}

// outcome is the result of one parse worker.
type outcome struct {
	doc *rules.RuleDocument
	err error
}

// Run compiles the rule corpus in fsys. It returns an error when the registry
// cannot be built or ctx is cancelled; in both cases the result carries state
// Failed and no manifest. Per-document failures are reported in Result.Issues.
func (c *Compiler) Run(ctx context.Context, fsys fs.FS) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := c.logger.With("run_id", runID)
	sm := newMachine()

	res := &Result{RunID: runID}
	fail := func(err error) (*Result, error) {
		sm.fail()
		res.State = sm.state
		res.History = sm.history
		res.Manifest = nil
		res.Duration = time.Since(start)
		c.opts.Metrics.runFinished(res.State, res.Duration)
		logger.Error("Compilation failed", "error", err)
		return res, err
	}

	registry, err := c.loadRegistry(ctx, fsys)
	if err != nil {
		return fail(err)
	}
	if err := sm.advance(StateRegistryLoaded); err != nil {
		return fail(err)
	}
	res.Sections = registry.Sections()
	logger.Debug("Section registry loaded", "sections", registry.Len())

	paths, err := Discover(fsys, c.opts.Include, c.opts.Exclude, c.opts.SectionsFile)
	if err != nil {
		return fail(fmt.Errorf("discover rule documents: %w", err))
	}
	res.Documents = len(paths)
	logger.Debug("Discovered rule documents", "count", len(paths))

	ld := loader.New(registry,
		loader.WithParsers(c.parsers),
		loader.WithNormalizer(c.normalizer),
		loader.WithListDelimiter(c.opts.ListDelimiter))

	outcomes, err := c.parseAll(ctx, fsys, ld, paths)
	if err != nil {
		return fail(err)
	}
	if err := sm.advance(StateRulesParsed); err != nil {
		return fail(err)
	}

	docs := make([]*rules.RuleDocument, 0, len(outcomes))
	for i, o := range outcomes {
		if o.err != nil {
			issue := issueFromError(paths[i], o.err)
			res.Issues = append(res.Issues, issue)
			c.opts.Metrics.documentFailed(issue.Kind)
			logger.Warn("Rule document rejected",
				"source", issue.Source,
				"kind", issue.Kind,
				"fragment", issue.Fragment)
			continue
		}
		docs = append(docs, o.doc)
		c.opts.Metrics.documentLoaded()
	}

	groups := conflict.GroupByIdentity(docs)
	if err := sm.advance(StateGrouped); err != nil {
		return fail(err)
	}

	resolution := conflict.ResolveGroups(groups)
	if err := sm.advance(StateConflictsResolved); err != nil {
		return fail(err)
	}
	for _, cf := range resolution.Conflicts {
		logger.Warn("Conflicting rule documents",
			"key", cf.Key,
			"kind", cf.Kind,
			"members", cf.Members,
			"preferred", cf.Preferred)
	}
	c.opts.Metrics.conflictsFound(len(resolution.Conflicts))

	res.Manifest = manifest.Build(res.Sections, resolution)
	if err := sm.advance(StateManifestBuilt); err != nil {
		return fail(err)
	}

	res.State = sm.state
	res.History = sm.history
	res.Duration = time.Since(start)
	c.opts.Metrics.runFinished(res.State, res.Duration)

	logger.Info("Compilation finished",
		"documents", res.Documents,
		"rules", res.Manifest.RuleCount(),
		"errors", len(res.Issues),
		"conflicts", res.ConflictCount(),
		"duration", res.Duration)
	return res, nil
}

// loadRegistry reads the section definitions document and builds the registry.
func (c *Compiler) loadRegistry(ctx context.Context, fsys fs.FS) (*sections.Registry, error) {
	content, err := c.readDocument(ctx, fsys, c.opts.SectionsFile)
	if err != nil {
		return nil, fmt.Errorf("load sections file %s: %w", c.opts.SectionsFile, err)
	}
	registry, err := sections.Load(content, c.normalizer)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// parseAll parses every path on a bounded worker pool. Each worker writes only
// its own slot of the result slice. Cancellation of ctx aborts the whole run.
func (c *Compiler) parseAll(ctx context.Context, fsys fs.FS, ld *loader.Loader, paths []string) ([]outcome, error) {
	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		i, p := i, p
		g.Go(func() error {
			content, err := c.readDocument(gctx, fsys, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				outcomes[i] = outcome{err: err}
				return nil
			}
			doc, err := ld.Load(loader.Input{Source: p, Content: content})
			outcomes[i] = outcome{doc: doc, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compilation cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compilation cancelled: %w", err)
	}
	return outcomes, nil
}

// readDocument reads one file with the per-document timeout. A timeout is
// reported as a TimeoutError for that document; cancellation of ctx is
// returned as-is.
func (c *Compiler) readDocument(ctx context.Context, fsys fs.FS, name string) ([]byte, error) {
	readCtx, cancel := context.WithTimeout(ctx, c.opts.DocumentTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := fs.ReadFile(fsys, name)
		ch <- result{data: data, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &rules.DocumentError{Kind: rules.KindRead, Source: name, Err: r.err}
		}
		return r.data, nil
	case <-readCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errors.Is(readCtx.Err(), context.DeadlineExceeded) {
			return nil, &rules.DocumentError{
				Kind:   rules.KindTimeout,
				Source: name,
				Err:    fmt.Errorf("read exceeded %s", c.opts.DocumentTimeout),
			}
		}
		return nil, readCtx.Err()
	}
}
