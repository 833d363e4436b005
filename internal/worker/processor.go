// Package worker runs queued transcription jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"scribe/internal/models"
	"scribe/internal/prompts"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/subtitle"
)

// Progress checkpoints written as the pipeline advances.
const (
	ProgressStarted     = 10
	ProgressTranscribed = 65
	ProgressTranslated  = 85
)

// terminalWriteTimeout bounds the final status write, which runs detached
// from the task context so an expired deadline still records the outcome.
const terminalWriteTimeout = 10 * time.Second

// UsageLedger bills a finished job.
type UsageLedger interface {
	ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64) (models.UsageAllocation, error)
}

// Deps are the collaborators a Processor needs. Translator and Summarizer
// may be nil when no completion provider is configured; jobs that ask for
// them then fail with a configuration error.
type Deps struct {
	Jobs        store.JobStore
	Objects     store.ObjectStore
	Transcriber services.Transcriber
	Translator  services.Translator
	Summarizer  services.SummaryService
	Ledger      UsageLedger
	// Per-call limits for the transcriber and for translation and
	// summarization. Zero means no limit beyond the task deadline.
	TranscriptionTimeout time.Duration
	CompletionTimeout    time.Duration
}

// Processor turns a queued job into a completed or failed one.
type Processor struct {
	deps   Deps
	stages []stage
}

// stage is one named step. A non-zero progress is written after it succeeds.
type stage struct {
	name     string
	run      func(ctx context.Context, r *jobRun) error
	progress int
}

// jobRun carries state between stages of one execution attempt.
type jobRun struct {
	job        *models.Job
	transcript string
	duration   float64
	lastRaw    json.RawMessage
	result     models.JobResult
}

// NewProcessor wires the pipeline.
func NewProcessor(deps Deps) (*Processor, error) {
	switch {
	case deps.Jobs == nil:
		return nil, fmt.Errorf("%w: job store is required", models.ErrConfiguration)
	case deps.Objects == nil:
		return nil, fmt.Errorf("%w: object store is required", models.ErrConfiguration)
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("%w: transcriber is required", models.ErrConfiguration)
	}
	p := &Processor{deps: deps}
	p.stages = []stage{
		{name: "transcribe", run: p.transcribe, progress: ProgressTranscribed},
		{name: "translate", run: p.translate, progress: ProgressTranslated},
		{name: "summarize", run: p.summarize},
		{name: "format", run: p.format},
		{name: "usage", run: p.applyUsage},
	}
	return p, nil
}

// StageNames lists the pipeline in execution order.
func (p *Processor) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// Process runs every stage for a job. When final is false and the error is
// retryable, the job is left in processing so a redelivery can restart it;
// otherwise a failure is persisted on the job.
func (p *Processor) Process(ctx context.Context, jobID string, final bool) error {
	logger := log.WithField("job_id", jobID)

	job, err := p.deps.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if models.IsTerminalStatus(job.Status) {
		logger.WithField("status", job.Status).Info("job already terminal, skipping redelivery")
		return nil
	}

	if err := p.preflight(job); err != nil {
		return p.fail(ctx, job, "preflight", err, final)
	}
	if err := p.deps.Jobs.UpdateJobProgress(ctx, job.ID, models.JobStatusProcessing, ProgressStarted); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Info("job became terminal before start, skipping")
			return nil
		}
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}

	r := &jobRun{job: job}
	for _, st := range p.stages {
		started := time.Now()
		if err := st.run(ctx, r); err != nil {
			return p.fail(ctx, job, st.name, err, final)
		}
		if st.progress > 0 {
			if err := p.deps.Jobs.UpdateJobProgress(ctx, job.ID, models.JobStatusProcessing, st.progress); err != nil {
				return p.fail(ctx, job, st.name, err, final)
			}
		}
		logger.WithFields(log.Fields{"stage": st.name, "elapsed": time.Since(started).Round(time.Millisecond)}).Debug("stage done")
	}

	payload, err := json.Marshal(r.result)
	if err != nil {
		return p.fail(ctx, job, "complete", fmt.Errorf("encode result: %w", err), final)
	}
	writeCtx, cancel := terminalContext(ctx)
	defer cancel()
	if err := p.deps.Jobs.CompleteJob(writeCtx, job.ID, payload); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Warn("job became terminal while running, result dropped")
			return nil
		}
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	logger.WithFields(log.Fields{"files": len(job.Files), "duration_sec": r.duration}).Info("job completed")
	return nil
}

// preflight rejects jobs whose requested steps have no collaborator, before
// any collaborator is called.
func (p *Processor) preflight(job *models.Job) error {
	if job.Tasks.Translate && job.Params.TargetLanguage != "" && p.deps.Translator == nil {
		return fmt.Errorf("%w: translation requested but no translator is configured", models.ErrConfiguration)
	}
	if job.Tasks.Summarize && p.deps.Summarizer == nil {
		return fmt.Errorf("%w: summary requested but no summarizer is configured", models.ErrConfiguration)
	}
	if job.Org() != "" && p.deps.Ledger == nil {
		return fmt.Errorf("%w: job belongs to an org but no ledger is configured", models.ErrConfiguration)
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, job *models.Job, stageName string, err error, final bool) error {
	stageErr := fmt.Errorf("%s: %w", stageName, err)
	logger := log.WithFields(log.Fields{"job_id": job.ID, "stage": stageName, "final": final})

	if !final && Retryable(err) {
		logger.Warnf("attempt failed, leaving job for redelivery: %v", err)
		return stageErr
	}
	writeCtx, cancel := terminalContext(ctx)
	defer cancel()
	if ferr := p.deps.Jobs.FailJob(writeCtx, job.ID, stageErr.Error()); ferr != nil && !errors.Is(ferr, store.ErrConflict) {
		logger.Errorf("could not persist failure: %v", ferr)
		return errors.Join(stageErr, ferr)
	}
	logger.Errorf("job failed: %v", err)
	return stageErr
}

// Retryable reports whether another delivery attempt could succeed.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrConfiguration),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrLedgerInvariant):
		return false
	}
	return true
}

// callContext bounds one collaborator call.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func terminalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}

func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrTimeout) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}
	return err
}

// --- Stages ---

func (p *Processor) transcribe(ctx context.Context, r *jobRun) error {
	params := r.job.Params.WithDefaults()
	opts := services.TranscriptionOptions{
		Model:        params.Model,
		Language:     params.Language,
		OutputFormat: models.OutputFormatJSON,
		Timestamps:   params.Timestamps,
	}

	texts := make([]string, 0, len(r.job.Files))
	for _, f := range r.job.Files {
		res, err := p.transcribeFile(ctx, f, opts)
		if err != nil {
			return fmt.Errorf("file %d (%s): %w", f.Position, f.OriginalName, err)
		}
		texts = append(texts, res.Transcript)
		r.lastRaw = res.Raw
		r.duration = max(r.duration, services.ParseRaw(res.Raw).EffectiveDuration())
	}
	r.transcript = strings.Join(texts, "\n\n")
	r.result.Transcript = r.transcript
	return nil
}

func (p *Processor) transcribeFile(ctx context.Context, f models.File, opts services.TranscriptionOptions) (*services.TranscriptionResult, error) {
	media, err := p.deps.Objects.Open(ctx, f.Bucket, f.Key)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer media.Close()

	callCtx, cancel := callContext(ctx, p.deps.TranscriptionTimeout)
	defer cancel()
	res, err := p.deps.Transcriber.Transcribe(callCtx, media, f.OriginalName, f.MIMEType, opts)
	if err != nil {
		return nil, asTimeout(err)
	}
	return res, nil
}

func (p *Processor) translate(ctx context.Context, r *jobRun) error {
	target := r.job.Params.TargetLanguage
	if !r.job.Tasks.Translate || target == "" || r.transcript == "" {
		return nil
	}
	callCtx, cancel := callContext(ctx, p.deps.CompletionTimeout)
	defer cancel()
	out, err := p.deps.Translator.Translate(callCtx, r.transcript, target, r.job.Params.Language)
	if err != nil {
		return asTimeout(err)
	}
	r.result.Translation = &out
	return nil
}

func (p *Processor) summarize(ctx context.Context, r *jobRun) error {
	if !r.job.Tasks.Summarize || r.transcript == "" {
		return nil
	}
	prompt := prompts.Build(r.job.Params.WithDefaults().SummaryStyle, r.transcript)
	callCtx, cancel := callContext(ctx, p.deps.CompletionTimeout)
	defer cancel()
	out, err := p.deps.Summarizer.Summarize(callCtx, prompt)
	if err != nil {
		return asTimeout(err)
	}
	r.result.Summary = &out
	return nil
}

func (p *Processor) format(ctx context.Context, r *jobRun) error {
	format := r.job.Params.WithDefaults().OutputFormat
	switch format {
	case models.OutputFormatJSON:
		if len(r.lastRaw) > 0 {
			r.result.JSON = r.lastRaw
		}
	case models.OutputFormatSRT, models.OutputFormatVTT:
		segs := services.ParseRaw(r.lastRaw).Segments
		if segs == nil {
			return nil
		}
		if format == models.OutputFormatSRT {
			r.result.SRT = subtitle.SRT(segs)
		} else {
			r.result.VTT = subtitle.VTT(segs)
		}
	}
	return nil
}

func (p *Processor) applyUsage(ctx context.Context, r *jobRun) error {
	org := r.job.Org()
	if org == "" {
		return nil
	}
	minutes := 0.0
	if r.duration > 0 {
		minutes = r.duration / 60
	}
	alloc, err := p.deps.Ledger.ApplyUsage(ctx, org, r.job.ID, minutes)
	if err != nil {
		return err
	}
	r.result.Usage = &alloc
	return nil
}
