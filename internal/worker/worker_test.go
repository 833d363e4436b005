package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/tasks"
)

// --- Fakes ---

type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	progress []int
}

func newFakeJobStore(jobs ...*models.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: map[string]*models.Job{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *fakeJobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) UpdateJobProgress(ctx context.Context, id, status string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if models.IsTerminalStatus(j.Status) {
		return store.ErrConflict
	}
	j.Status = status
	j.Progress = max(j.Progress, progress)
	s.progress = append(s.progress, progress)
	return nil
}

func (s *fakeJobStore) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if models.IsTerminalStatus(j.Status) {
		return store.ErrConflict
	}
	j.Status = models.JobStatusCompleted
	j.Progress = 100
	j.Result = result
	return nil
}

func (s *fakeJobStore) FailJob(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if models.IsTerminalStatus(j.Status) {
		return store.ErrConflict
	}
	j.Status = models.JobStatusFailed
	j.Error = &message
	return nil
}

func (s *fakeJobStore) Ping(ctx context.Context) error { return nil }

func (s *fakeJobStore) job(id string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// deadlineJobStore rejects terminal writes once their context is done, the
// way a real database driver does.
type deadlineJobStore struct{ *fakeJobStore }

func (s deadlineJobStore) CompleteJob(ctx context.Context, id string, result json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeJobStore.CompleteJob(ctx, id, result)
}

func (s deadlineJobStore) FailJob(ctx context.Context, id, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeJobStore.FailJob(ctx, id, message)
}

type fakeObjects struct{}

func (fakeObjects) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if key == "missing" {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(strings.NewReader("media:" + key)), nil
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Transcribe(ctx context.Context, media io.Reader, filename, mimeType string, opts services.TranscriptionOptions) (*services.TranscriptionResult, error) {
	args := m.Called(ctx, filename, opts)
	if res := args.Get(0); res != nil {
		return res.(*services.TranscriptionResult), args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTranscriber) Name() string                    { return "mock" }
func (m *mockTranscriber) Status() services.ProviderStatus { return services.ProviderStatusActive }

type mockTranslator struct{ mock.Mock }

func (m *mockTranslator) Translate(ctx context.Context, text, target, source string) (string, error) {
	args := m.Called(ctx, text, target, source)
	return args.String(0), args.Error(1)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) ApplyUsage(ctx context.Context, orgID, jobID string, minutes float64) (models.UsageAllocation, error) {
	args := m.Called(ctx, orgID, jobID, minutes)
	return args.Get(0).(models.UsageAllocation), args.Error(1)
}

func strPtr(s string) *string { return &s }

func queuedJob(id string, files ...string) *models.Job {
	j := &models.Job{ID: id, Status: models.JobStatusQueued}
	for i, name := range files {
		j.Files = append(j.Files, models.File{Position: i, OriginalName: name, Bucket: "media", Key: name})
	}
	return j
}

func rawResult(text string, duration float64, segs ...models.Segment) *services.TranscriptionResult {
	raw, _ := json.Marshal(map[string]any{"text": text, "duration": duration, "segments": segs})
	return &services.TranscriptionResult{Transcript: text, Raw: raw}
}

func decodeResult(t *testing.T, j *models.Job) models.JobResult {
	t.Helper()
	var res models.JobResult
	require.NoError(t, json.Unmarshal(j.Result, &res))
	return res
}

// --- Processor ---

func TestProcess_JoinsFilesInOrderAndTakesMaxDuration(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3", "b.mp3"))
	jobs.jobs["job-1"].OrgID = strPtr("org-1")

	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(rawResult("first", 120), nil).Once()
	tr.On("Transcribe", mock.Anything, "b.mp3", mock.Anything).Return(rawResult("second", 90), nil).Once()

	ledger := new(mockLedger)
	alloc := models.UsageAllocation{Minutes: 2, CoveredIncluded: 2}
	ledger.On("ApplyUsage", mock.Anything, "org-1", "job-1", 2.0).Return(alloc, nil).Once()

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr, Ledger: ledger})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), "job-1", true))

	j := jobs.job("job-1")
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, []int{ProgressStarted, ProgressTranscribed, ProgressTranslated}, jobs.progress)

	res := decodeResult(t, j)
	assert.Equal(t, "first\n\nsecond", res.Transcript)
	require.NotNil(t, res.Usage)
	assert.Equal(t, alloc, *res.Usage)
	assert.Nil(t, res.Translation)
	assert.Nil(t, res.Summary)

	tr.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestProcess_RequestsJSONFromTranscriber(t *testing.T) {
	job := queuedJob("job-1", "a.mp3")
	job.Params = models.JobParams{Language: "de", Timestamps: true, OutputFormat: "srt"}
	jobs := newFakeJobStore(job)

	tr := new(mockTranscriber)
	want := services.TranscriptionOptions{Model: models.DefaultModel, Language: "de", OutputFormat: models.OutputFormatJSON, Timestamps: true}
	tr.On("Transcribe", mock.Anything, "a.mp3", want).Return(rawResult("hi", 1), nil).Once()

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), "job-1", true))
	tr.AssertExpectations(t)
}

func TestProcess_TranslateAndSummarize(t *testing.T) {
	job := queuedJob("job-1", "a.mp3")
	job.Params = models.JobParams{Language: "en", TargetLanguage: "fr", SummaryStyle: "tldr"}
	job.Tasks = models.JobTasks{Translate: true, Summarize: true}
	jobs := newFakeJobStore(job)

	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(rawResult("hello world", 3), nil)
	tl := new(mockTranslator)
	tl.On("Translate", mock.Anything, "hello world", "fr", "en").Return("bonjour le monde", nil).Once()
	sm := new(mockSummarizer)
	sm.On("Summarize", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "hello world")
	})).Return("greeting", nil).Once()

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr, Translator: tl, Summarizer: sm})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), "job-1", true))

	res := decodeResult(t, jobs.job("job-1"))
	require.NotNil(t, res.Translation)
	assert.Equal(t, "bonjour le monde", *res.Translation)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "greeting", *res.Summary)
	tl.AssertExpectations(t)
	sm.AssertExpectations(t)
}

func TestProcess_SkipsPostProcessingForEmptyTranscript(t *testing.T) {
	job := queuedJob("job-1", "silence.wav")
	job.Params.TargetLanguage = "fr"
	job.Tasks = models.JobTasks{Translate: true, Summarize: true}
	jobs := newFakeJobStore(job)

	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "silence.wav", mock.Anything).Return(rawResult("", 0), nil)
	tl := new(mockTranslator)
	sm := new(mockSummarizer)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr, Translator: tl, Summarizer: sm})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), "job-1", true))

	tl.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sm.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
	assert.Equal(t, []int{ProgressStarted, ProgressTranscribed, ProgressTranslated}, jobs.progress)
}

func TestProcess_OutputFormats(t *testing.T) {
	segs := []models.Segment{{Start: 0, End: 1.5, Text: "hello"}, {Start: 1.5, End: 3, Text: "world"}}

	tests := []struct {
		name   string
		format string
		check  func(t *testing.T, res models.JobResult)
	}{
		{
			name:   "json keeps raw result",
			format: models.OutputFormatJSON,
			check: func(t *testing.T, res models.JobResult) {
				assert.Contains(t, string(res.JSON), `"segments"`)
				assert.Empty(t, res.SRT)
			},
		},
		{
			name:   "srt",
			format: models.OutputFormatSRT,
			check: func(t *testing.T, res models.JobResult) {
				assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n2\n00:00:01,500 --> 00:00:03,000\nworld\n", res.SRT)
				assert.Empty(t, res.VTT)
			},
		},
		{
			name:   "vtt",
			format: "VTT",
			check: func(t *testing.T, res models.JobResult) {
				assert.True(t, strings.HasPrefix(res.VTT, "WEBVTT\n\n00:00:00.000 --> 00:00:01.500\nhello\n"))
			},
		},
		{
			name:   "text has no extras",
			format: "",
			check: func(t *testing.T, res models.JobResult) {
				assert.Empty(t, res.JSON)
				assert.Empty(t, res.SRT)
				assert.Empty(t, res.VTT)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := queuedJob("job-1", "a.mp3")
			job.Params.OutputFormat = tt.format
			jobs := newFakeJobStore(job)
			tr := new(mockTranscriber)
			tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(rawResult("hello world", 3, segs...), nil)

			p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
			require.NoError(t, err)
			require.NoError(t, p.Process(context.Background(), "job-1", true))

			res := decodeResult(t, jobs.job("job-1"))
			assert.Equal(t, "hello world", res.Transcript)
			tt.check(t, res)
		})
	}
}

func TestProcess_SubtitlesNeedSegments(t *testing.T) {
	job := queuedJob("job-1", "a.mp3")
	job.Params.OutputFormat = models.OutputFormatSRT
	jobs := newFakeJobStore(job)
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).
		Return(&services.TranscriptionResult{Transcript: "plain", Raw: json.RawMessage(`"plain"`)}, nil)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), "job-1", true))

	res := decodeResult(t, jobs.job("job-1"))
	assert.Equal(t, "plain", res.Transcript)
	assert.Empty(t, res.SRT)
}

func TestProcess_TerminalJobIsNoop(t *testing.T) {
	for _, status := range []string{models.JobStatusCompleted, models.JobStatusFailed} {
		t.Run(status, func(t *testing.T) {
			job := queuedJob("job-1", "a.mp3")
			job.Status = status
			jobs := newFakeJobStore(job)
			tr := new(mockTranscriber)

			p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
			require.NoError(t, err)
			require.NoError(t, p.Process(context.Background(), "job-1", false))

			tr.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, jobs.progress)
			assert.Equal(t, status, jobs.job("job-1").Status)
		})
	}
}

func TestProcess_MissingJob(t *testing.T) {
	p, err := NewProcessor(Deps{Jobs: newFakeJobStore(), Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)

	err = p.Process(context.Background(), "nope", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, Retryable(err))
}

func TestProcess_RetryableFailureLeavesJobUntilFinalAttempt(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3"))
	tr := new(mockTranscriber)
	upstream := fmt.Errorf("%w: status 502", models.ErrUpstream)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(nil, upstream)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)

	err = p.Process(context.Background(), "job-1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.True(t, Retryable(err))
	assert.Equal(t, models.JobStatusProcessing, jobs.job("job-1").Status)
	assert.Nil(t, jobs.job("job-1").Error)

	err = p.Process(context.Background(), "job-1", true)
	require.Error(t, err)
	j := jobs.job("job-1")
	assert.Equal(t, models.JobStatusFailed, j.Status)
	require.NotNil(t, j.Error)
	assert.Contains(t, *j.Error, "transcribe")
	assert.Equal(t, ProgressStarted, j.Progress)
}

func TestProcess_NonRetryableFailurePersistsImmediately(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "missing"))
	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)

	err = p.Process(context.Background(), "job-1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.JobStatusFailed, jobs.job("job-1").Status)
}

func TestProcess_MissingTranslatorIsConfigurationError(t *testing.T) {
	job := queuedJob("job-1", "a.mp3")
	job.Params.TargetLanguage = "fr"
	job.Tasks.Translate = true
	jobs := newFakeJobStore(job)
	tr := new(mockTranscriber)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)

	err = p.Process(context.Background(), "job-1", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	tr.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, models.JobStatusFailed, jobs.job("job-1").Status)
}

func TestProcess_CallTimeoutMapsToTimeout(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3"))
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr, TranscriptionTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	err = p.Process(context.Background(), "job-1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	assert.Equal(t, models.JobStatusFailed, jobs.job("job-1").Status)
}

func TestProcess_TaskDeadlineStillRecordsFailure(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3"))
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	p, err := NewProcessor(Deps{Jobs: deadlineJobStore{jobs}, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Process(ctx, "job-1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)
	require.Error(t, ctx.Err())

	j := jobs.job("job-1")
	assert.Equal(t, models.JobStatusFailed, j.Status)
	require.NotNil(t, j.Error)
	assert.Contains(t, *j.Error, "transcribe")
}

func TestProcess_CancelledContextStillRecordsCompletion(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(rawResult("hello", 3), nil)

	p, err := NewProcessor(Deps{Jobs: deadlineJobStore{jobs}, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)

	require.NoError(t, p.Process(ctx, "job-1", true))
	j := jobs.job("job-1")
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Equal(t, "hello", decodeResult(t, j).Transcript)
}

func TestProcess_LedgerErrorFailsJob(t *testing.T) {
	job := queuedJob("job-1", "a.mp3")
	job.OrgID = strPtr("org-1")
	jobs := newFakeJobStore(job)
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(rawResult("hi", 60), nil)
	ledger := new(mockLedger)
	ledger.On("ApplyUsage", mock.Anything, "org-1", "job-1", 1.0).
		Return(models.UsageAllocation{}, models.ErrLedgerInvariant)

	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr, Ledger: ledger})
	require.NoError(t, err)

	err = p.Process(context.Background(), "job-1", false)
	require.Error(t, err)
	assert.False(t, Retryable(err))
	j := jobs.job("job-1")
	assert.Equal(t, models.JobStatusFailed, j.Status)
	assert.Equal(t, ProgressTranslated, j.Progress)
}

func TestNewProcessor_RequiresCollaborators(t *testing.T) {
	_, err := NewProcessor(Deps{Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	p, err := NewProcessor(Deps{Jobs: newFakeJobStore(), Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)
	assert.Equal(t, []string{"transcribe", "translate", "summarize", "format", "usage"}, p.StageNames())
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(models.ErrUpstream))
	assert.True(t, Retryable(models.ErrTimeout))
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.False(t, Retryable(fmt.Errorf("x: %w", models.ErrValidation)))
	assert.False(t, Retryable(models.ErrConfiguration))
}

// --- Handler and server ---

func TestHandleProcessJob_BadPayloadSkipsRetry(t *testing.T) {
	p, err := NewProcessor(Deps{Jobs: newFakeJobStore(), Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)

	err = HandleProcessJob(p)(context.Background(), asynq.NewTask(tasks.TypeProcessJob, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleProcessJob_MissingJobSkipsRetry(t *testing.T) {
	p, err := NewProcessor(Deps{Jobs: newFakeJobStore(), Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)
	task, err := tasks.NewProcessJobTask("nope")
	require.NoError(t, err)

	err = HandleProcessJob(p)(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandleProcessJob_Success(t *testing.T) {
	jobs := newFakeJobStore(queuedJob("job-1", "a.mp3"))
	tr := new(mockTranscriber)
	tr.On("Transcribe", mock.Anything, "a.mp3", mock.Anything).Return(rawResult("hi", 1), nil)
	p, err := NewProcessor(Deps{Jobs: jobs, Objects: fakeObjects{}, Transcriber: tr})
	require.NoError(t, err)
	task, err := tasks.NewProcessJobTask("job-1")
	require.NoError(t, err)

	require.NoError(t, HandleProcessJob(p)(context.Background(), task))
	assert.Equal(t, models.JobStatusCompleted, jobs.job("job-1").Status)
}

func TestIsFinalAttempt_OutsideQueue(t *testing.T) {
	assert.True(t, IsFinalAttempt(context.Background()))
}

func TestRegisterHandlers(t *testing.T) {
	p, err := NewProcessor(Deps{Jobs: newFakeJobStore(), Objects: fakeObjects{}, Transcriber: new(mockTranscriber)})
	require.NoError(t, err)
	mux := asynq.NewServeMux()
	RegisterHandlers(mux, p)

	task, err := tasks.NewProcessJobTask("nope")
	require.NoError(t, err)
	h, pattern := mux.Handler(task)
	require.NotNil(t, h)
	assert.Equal(t, tasks.TypeProcessJob, pattern)
}

func TestRetryDelay(t *testing.T) {
	delay := RetryDelay(2 * time.Second)
	assert.Equal(t, 2*time.Second, delay(0, nil, nil))
	assert.Equal(t, 4*time.Second, delay(1, nil, nil))
	assert.Equal(t, 8*time.Second, delay(2, nil, nil))
	assert.Equal(t, 5*time.Minute, delay(20, nil, nil))

	assert.Equal(t, defaultBackoffBase, RetryDelay(0)(0, nil, nil))
}
