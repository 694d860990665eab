// Package pipeline orchestrates a scrape run: fan out over locations and
// listing sources, deduplicate the postings, then enrich each survivor with
// contact details.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"firmscout/internal/progress"
	"firmscout/internal/scout"
	"firmscout/internal/sources"
)

const (
	defaultSourceConcurrency  = 4
	defaultContactConcurrency = 8
)

// Options tunes a Pipeline. Zero values select sane defaults; a nil Emitter
// disables progress reporting without affecting the data output.
type Options struct {
	Emitter            progress.Emitter
	Logger             *zap.Logger
	SourceConcurrency  int
	ContactConcurrency int
}

// Pipeline runs the two scrape stages against a fixed source registry.
type Pipeline struct {
	registry *sources.Registry
	resolver scout.ContactResolver
	emitter  progress.Emitter
	logger   *zap.Logger

	sourceLimit  int
	contactLimit int
}

// New builds a Pipeline over the registered sources.
func New(registry *sources.Registry, resolver scout.ContactResolver, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SourceConcurrency <= 0 {
		opts.SourceConcurrency = defaultSourceConcurrency
	}
	if opts.ContactConcurrency <= 0 {
		opts.ContactConcurrency = defaultContactConcurrency
	}
	return &Pipeline{
		registry:     registry,
		resolver:     resolver,
		emitter:      opts.Emitter,
		logger:       opts.Logger,
		sourceLimit:  opts.SourceConcurrency,
		contactLimit: opts.ContactConcurrency,
	}
}

// task is one (location, source) fetch unit. Tasks are enumerated in a fixed
// order so the final record order does not depend on goroutine scheduling.
type task struct {
	loc scout.Location
	src scout.ListingSource
}

// hit is a posting annotated with where it was found.
type hit struct {
	posting scout.Posting
	src     string
	loc     string
}

// Run executes a full scrape over the given locations and returns the
// deduplicated, contact-enriched records. Source failures are absorbed:
// a source that errors for one location contributes nothing there while
// every other (location, source) pair proceeds. On context cancellation the
// records accumulated so far are returned alongside the context error.
func (p *Pipeline) Run(ctx context.Context, locations []scout.Location) ([]scout.JobRecord, error) {
	runID := progress.UUIDToBytes(uuid.New())
	p.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart, Count: len(locations)})

	srcs := p.registry.All()
	tasks := make([]task, 0, len(locations)*len(srcs))
	for _, loc := range locations {
		for _, src := range srcs {
			tasks = append(tasks, task{loc: loc, src: src})
		}
	}

	results := make([][]scout.Posting, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.sourceLimit)
	for i, t := range tasks {
		g.Go(func() error {
			start := time.Now()
			postings, err := t.src.FetchListings(gctx, t.loc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("source fetch failed",
					zap.String("source", t.src.Name()),
					zap.String("location", t.loc.String()),
					zap.Error(err),
				)
				p.emit(progress.Event{
					RunID:    runID,
					Stage:    progress.StageSourceFetch,
					Source:   t.src.Name(),
					Location: t.loc.String(),
					Dur:      time.Since(start),
					Note:     err.Error(),
				})
				return nil
			}
			results[i] = postings
			p.emit(progress.Event{
				RunID:    runID,
				Stage:    progress.StageSourceFetch,
				Source:   t.src.Name(),
				Location: t.loc.String(),
				Count:    len(postings),
				Dur:      time.Since(start),
			})
			return nil
		})
	}
	runErr := g.Wait()

	// Flattening in task order gives first-seen-wins a stable meaning: the
	// earliest (location, source) pairing claims the key.
	seen := make(map[scout.RecordKey]struct{})
	var unique []hit
	for i, postings := range results {
		for _, posting := range postings {
			key := scout.RecordKey{Firm: posting.Firm, Role: posting.Role}
			if _, dup := seen[key]; dup {
				p.emit(progress.Event{
					RunID:    runID,
					Stage:    progress.StageSkip,
					Source:   tasks[i].src.Name(),
					Location: tasks[i].loc.String(),
					URL:      posting.DetailURL,
					Note:     "duplicate",
				})
				continue
			}
			seen[key] = struct{}{}
			unique = append(unique, hit{posting: posting, src: tasks[i].src.Name(), loc: tasks[i].loc.String()})
		}
	}

	records := make([]scout.JobRecord, len(unique))
	cg, cctx := errgroup.WithContext(ctx)
	cg.SetLimit(p.contactLimit)
	for i, h := range unique {
		cg.Go(func() error {
			start := time.Now()
			info := p.resolver.Resolve(cctx, h.posting.DetailURL)
			records[i] = scout.JobRecord{
				Firm:    h.posting.Firm,
				Role:    h.posting.Role,
				Phone:   info.Phone,
				Website: info.Website,
			}
			p.emit(progress.Event{
				RunID:  runID,
				Stage:  progress.StageContactResolve,
				Source: h.src,
				URL:    h.posting.DetailURL,
				Dur:    time.Since(start),
				Note:   contactOutcome(info),
			})
			return nil
		})
	}
	// Resolve never fails, so Wait only reflects cancellation already
	// captured above.
	_ = cg.Wait()

	done := progress.Event{RunID: runID, Stage: progress.StageRunDone, Count: len(records)}
	if runErr != nil {
		done.Note = "cancelled"
	}
	p.emit(done)
	return records, runErr
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.emitter == nil {
		return
	}
	evt.TS = time.Now().UTC()
	p.emitter.Emit(evt)
}

func contactOutcome(info scout.ContactInfo) string {
	switch {
	case info.Phone != "" && info.Website != "":
		return "both"
	case info.Phone != "":
		return "phone"
	case info.Website != "":
		return "website"
	default:
		return "none"
	}
}
