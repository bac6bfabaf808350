package migrate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/internal/telemetry"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

const scopeName = "github.com/danielolaszy/bz2gl/migrate"

// Source reads bug records and their attachments.
type Source interface {
	AttachmentSource
	Fetch(ctx context.Context, id int) (*models.BugRecord, error)
}

// Options controls a batch run.
type Options struct {
	// Workers is the number of records migrated concurrently. Values below
	// one mean sequential processing.
	Workers int

	// FailFast stops the batch after the first failed record.
	FailFast bool

	// HaltOn stops the batch after a record fails with one of these kinds.
	HaltOn map[ErrorKind]bool
}

// Outcome is the result of migrating one record.
type Outcome struct {
	BugID       int
	IssueRef    string
	State       State
	Comments    int
	Attachments int
	Duration    time.Duration

	// Err is set when the record was skipped; Kind classifies it.
	Err  error
	Kind ErrorKind

	// NotStarted is set for records left untouched after the batch halted.
	NotStarted bool
}

// HaltError reports a batch that stopped early because of a failed record.
type HaltError struct {
	BugID int
	Kind  ErrorKind
	Err   error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("batch halted on bug %d (%s error): %v", e.BugID, e.Kind, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}

// Migrator runs the engine over a batch of bug ids.
type Migrator struct {
	engine *Engine
	source Source
	opts   Options

	tracer  trace.Tracer
	records metric.Int64Counter
}

// NewMigrator creates a Migrator submitting through client.
func NewMigrator(cfg *config.Config, client backend.Client, source Source, opts Options) *Migrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	records := telemetry.Int64Counter(telemetry.Meter(scopeName), "bz2gl.migrate.records",
		metric.WithDescription("Bug records processed, by outcome"),
	)

	return &Migrator{
		engine:  NewEngine(cfg, client, source),
		source:  source,
		opts:    opts,
		tracer:  telemetry.Tracer(scopeName),
		records: records,
	}
}

// Run migrates every id and returns one Outcome per id, in input order. A
// failed record is skipped and the batch continues unless the options say
// to halt, in which case the error is a *HaltError. Records already in
// flight when the batch halts are allowed to finish.
func (m *Migrator) Run(ctx context.Context, ids []int) ([]Outcome, error) {
	outcomes := make([]Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)

	for i, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				outcomes[i] = Outcome{BugID: id, NotStarted: true}
				return nil
			}

			out := m.migrateOne(ctx, id)
			outcomes[i] = out
			if out.Err != nil && m.halts(out.Kind) {
				return &HaltError{BugID: id, Kind: out.Kind, Err: out.Err}
			}
			return nil
		})
	}

	err := g.Wait()
	return outcomes, err
}

func (m *Migrator) halts(kind ErrorKind) bool {
	return m.opts.FailFast || m.opts.HaltOn[kind]
}

func (m *Migrator) migrateOne(ctx context.Context, id int) (out Outcome) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "migrate.Record",
		trace.WithAttributes(attribute.Int("bz2gl.bug_id", id)),
	)
	defer span.End()

	log := logging.With("bug_id", id)
	out = Outcome{BugID: id}

	defer func() {
		out.Duration = time.Since(start)
		status := "migrated"
		if out.Err != nil {
			out.Kind = KindOf(out.Err)
			status = string(out.Kind)
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
			log.Warn("skipping bug", "kind", out.Kind, "error", out.Err)
		} else {
			span.SetAttributes(attribute.String("bz2gl.issue_ref", out.IssueRef))
			log.Info("migrated bug",
				"issue_ref", out.IssueRef,
				"state", out.State,
				"comments", out.Comments,
				"attachments", out.Attachments,
				"duration", out.Duration)
		}
		m.records.Add(ctx, 1, metric.WithAttributes(attribute.String("bz2gl.outcome", status)))
	}()

	bug, err := m.source.Fetch(ctx, id)
	if err != nil {
		out.Err = &sourceError{BugID: id, Err: err}
		return out
	}

	thread, err := m.engine.Assemble(ctx, bug)
	if err != nil {
		out.Err = err
		return out
	}
	out.Comments = len(thread.Comments)
	out.Attachments = len(thread.Attachments)

	err = m.engine.Save(ctx, thread)
	out.IssueRef = thread.IssueRef
	out.State = thread.State()
	if err != nil {
		out.Err = err
	}
	return out
}
