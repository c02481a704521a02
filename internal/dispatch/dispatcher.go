package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/LeventeLantos/whatsapp-dispatcher/internal/backoff"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/client"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/model"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/personalize"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/phone"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/telemetry"
	"github.com/LeventeLantos/whatsapp-dispatcher/internal/worker"
)

type RecipientSource interface {
	ResolveRecipients(ctx context.Context, ids []int64) ([]model.Recipient, error)
}

type MessageStore interface {
	RecordMessage(ctx context.Context, m model.Message) error
	MarkRecipientContacted(ctx context.Context, recipientID int64, status string) error
}

type SentCache interface {
	StoreSent(ctx context.Context, remoteMessageID string, recipientID int64, sentAt time.Time) error
}

type Config struct {
	DelayMin        time.Duration
	DelayMax        time.Duration
	ContentMax      int
	ContactedStatus string
	PersistTimeout  time.Duration
	Scheme          phone.Scheme
	Policy          backoff.Policy
}

func DefaultConfig() Config {
	return Config{
		DelayMin:        30 * time.Second,
		DelayMax:        60 * time.Second,
		ContentMax:      4096,
		ContactedStatus: "em_contato",
		PersistTimeout:  5 * time.Second,
		Scheme:          phone.Default,
		Policy:          backoff.Default(),
	}
}

type Batch struct {
	Recipients []model.Recipient
	Template   string
	DelayMin   time.Duration
	DelayMax   time.Duration
}

// Request is a batch described by recipient ids. A nil delay falls back to the
// configured default. Template wins over TemplateKey when both are set.
type Request struct {
	RecipientIDs []int64
	Template     string
	TemplateKey  string
	DelayMin     *time.Duration
	DelayMax     *time.Duration
}

type Dispatcher struct {
	channel client.Channel
	source  RecipientSource
	store   MessageStore
	cache   SentCache
	runner  *worker.Runner
	cfg     Config
	logger  *slog.Logger

	pause func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu  sync.Mutex
	job *Job
}

type Option func(*Dispatcher)

func WithRecipientSource(s RecipientSource) Option { return func(d *Dispatcher) { d.source = s } }
func WithMessageStore(s MessageStore) Option       { return func(d *Dispatcher) { d.store = s } }
func WithSentCache(c SentCache) Option             { return func(d *Dispatcher) { d.cache = c } }
func WithRunner(r *worker.Runner) Option           { return func(d *Dispatcher) { d.runner = r } }

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPause replaces the inter-message sleep.
func WithPause(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.pause = fn
		}
	}
}

// New builds a dispatcher. A nil channel is allowed: batches are then
// rejected with a ConfigurationError until the process is reconfigured.
func New(channel client.Channel, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channel: channel,
		cfg:     cfg,
		logger:  slog.Default(),
		pause:   backoff.Sleep,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = worker.NewRunner(d.logger)
	}
	if d.cfg.Scheme == (phone.Scheme{}) {
		d.cfg.Scheme = phone.Default
	}
	return d
}

func (d *Dispatcher) Configured() bool {
	return d.channel != nil
}

// Active reports whether a batch is currently running.
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.job != nil && d.job.isActive()
}

// StartBatch validates b and starts a worker for it. The returned status is
// the freshly created job.
func (d *Dispatcher) StartBatch(ctx context.Context, b Batch) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.job != nil && d.job.isActive() {
		return Status{}, ErrBatchInProgress
	}
	if err := d.validate(b); err != nil {
		return Status{}, err
	}
	if d.channel == nil {
		return Status{}, &ConfigurationError{Reason: "messaging channel credentials are missing"}
	}

	recipients := make([]model.Recipient, len(b.Recipients))
	copy(recipients, b.Recipients)
	b.Recipients = recipients

	job := newJob(len(recipients), d.now())
	telemetry.ActiveJob.Set(1)
	if _, err := d.runner.Go("bulk-send:"+job.id, func(workerCtx context.Context) {
		d.run(workerCtx, job, b)
	}); err != nil {
		telemetry.ActiveJob.Set(0)
		return Status{}, fmt.Errorf("start worker: %w", err)
	}
	d.job = job

	d.logger.InfoContext(ctx, "bulk send started",
		"job_id", job.id,
		"total", job.total,
		"delay_min", b.DelayMin.String(),
		"delay_max", b.DelayMax.String(),
	)
	return job.snapshot(), nil
}

// Submit resolves recipient ids and starts a batch for them.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Status, error) {
	if d.Active() {
		return Status{}, ErrBatchInProgress
	}
	if len(req.RecipientIDs) == 0 {
		return Status{}, invalid("recipients", "no recipient ids given")
	}

	template := req.Template
	if strings.TrimSpace(template) == "" && req.TemplateKey != "" {
		t, ok := personalize.Lookup(req.TemplateKey)
		if !ok {
			return Status{}, invalid("template", fmt.Sprintf("unknown template key %q", req.TemplateKey))
		}
		template = t.Body
	}

	b := Batch{
		Template: template,
		DelayMin: d.cfg.DelayMin,
		DelayMax: d.cfg.DelayMax,
	}
	if req.DelayMin != nil {
		b.DelayMin = *req.DelayMin
	}
	if req.DelayMax != nil {
		b.DelayMax = *req.DelayMax
	}

	if d.source == nil {
		return Status{}, &ConfigurationError{Reason: "recipient source is missing"}
	}
	ids := uniqueIDs(req.RecipientIDs)
	resolved, err := d.source.ResolveRecipients(ctx, ids)
	if err != nil {
		return Status{}, fmt.Errorf("resolve recipients: %w", err)
	}
	b.Recipients = withMissing(ids, resolved)

	return d.StartBatch(ctx, b)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// withMissing orders resolved recipients as ids and puts a phoneless
// placeholder in place of every id the source did not know, so it is
// reported as a failed outcome.
func withMissing(ids []int64, resolved []model.Recipient) []model.Recipient {
	byID := make(map[int64]model.Recipient, len(resolved))
	for _, r := range resolved {
		byID[r.ID] = r
	}
	out := make([]model.Recipient, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			r = model.Recipient{ID: id}
		}
		out = append(out, r)
	}
	return out
}

// Cancel asks the running batch to stop after the send in flight. It reports
// whether there was a running batch to cancel.
func (d *Dispatcher) Cancel() bool {
	d.mu.Lock()
	job := d.job
	d.mu.Unlock()

	if job == nil || !job.cancel() {
		return false
	}
	d.logger.Info("bulk send cancel requested", "job_id", job.id)
	return true
}

// Status returns a snapshot of the running job, or of the last one if none is running.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	job := d.job
	d.mu.Unlock()

	if job == nil {
		return idleStatus()
	}
	return job.snapshot()
}

// Close cancels the running batch and waits for its worker until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.Cancel()
	return d.runner.Shutdown(ctx)
}

func (d *Dispatcher) validate(b Batch) error {
	if len(b.Recipients) == 0 {
		return invalid("recipients", "empty recipient list")
	}
	if strings.TrimSpace(b.Template) == "" {
		return invalid("template", "empty message template")
	}
	if d.cfg.ContentMax > 0 && utf8.RuneCountInString(b.Template) > d.cfg.ContentMax {
		return invalid("template", fmt.Sprintf("content exceeds %d chars", d.cfg.ContentMax))
	}
	if b.DelayMin < 0 || b.DelayMax < 0 {
		return invalid("delay", "delays must not be negative")
	}
	if b.DelayMin > b.DelayMax {
		return invalid("delay", "minimum delay is greater than maximum delay")
	}
	return nil
}

func (d *Dispatcher) run(workerCtx context.Context, job *Job, b Batch) {
	waitCtx, stop := context.WithCancel(workerCtx)
	defer stop()
	unlink := context.AfterFunc(job.waitCtx, stop)
	defer unlink()

	defer func() {
		state := job.finish(d.now())
		telemetry.ActiveJob.Set(0)
		telemetry.Batches.WithLabelValues(string(state)).Inc()

		st := job.snapshot()
		d.logger.Info("bulk send finished",
			"job_id", job.id,
			"state", string(state),
			"processed", st.Processed,
			"succeeded", st.Succeeded,
			"failed", st.Failed,
			"persistence_errors", st.PersistenceErrors,
		)
	}()

	last := len(b.Recipients) - 1
	for i, r := range b.Recipients {
		if job.isCancelled() || workerCtx.Err() != nil {
			return
		}

		outcome, text := d.sendOne(workerCtx, waitCtx, r, b.Template)
		job.record(outcome)
		telemetry.RecipientOutcomes.WithLabelValues(outcomeLabel(outcome)).Inc()

		d.persist(workerCtx, job, text, outcome)

		if i == last || job.isCancelled() {
			continue
		}
		if err := d.pause(waitCtx, d.delay(b.DelayMin, b.DelayMax)); err != nil {
			return
		}
	}
}

func (d *Dispatcher) sendOne(workerCtx, waitCtx context.Context, r model.Recipient, template string) (model.SendOutcome, string) {
	canonical := d.cfg.Scheme.Normalize(r.Phone)
	out := model.SendOutcome{
		RecipientID: r.ID,
		Name:        r.Name,
		Phone:       canonical,
	}

	text := personalize.Render(template, personalize.WithDefaults(r.Fields()))

	if canonical == "" {
		out.ErrorClass = model.ClassInvalidRecipient
		out.Error = "recipient not found or has no usable phone number"
		out.At = d.now()
		return out, text
	}

	dial := d.cfg.Scheme.International(canonical)
	res, retry := d.cfg.Policy.Execute(waitCtx, func() client.Result {
		return d.channel.Send(workerCtx, dial, text)
	})

	out.Attempts = retry.Attempts
	out.At = d.now()
	if retry.Attempts > 1 {
		telemetry.Retries.Add(float64(retry.Attempts - 1))
	}

	if res.Success {
		out.Success = true
		out.ProviderMessageID = res.ProviderMessageID
		return out, text
	}

	out.ErrorClass = res.Class
	if out.ErrorClass == model.ClassNone {
		out.ErrorClass = model.ClassUnknown
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	d.logger.Warn("bulk send recipient failed",
		"recipient_id", r.ID,
		"class", string(out.ErrorClass),
		"code", res.Code,
		"attempts", retry.Attempts,
		"err", out.Error,
	)
	return out, text
}

// persist writes the outcome to the store and cache. Failures are counted
// on the job and never stop the batch.
func (d *Dispatcher) persist(ctx context.Context, job *Job, text string, o model.SendOutcome) {
	if d.store == nil && d.cache == nil {
		return
	}

	timeout := d.cfg.PersistTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	fail := func(op string, err error) {
		job.persistFailed()
		telemetry.PersistenceFailures.Inc()
		d.logger.Error("bulk send persistence failed",
			"job_id", job.id,
			"op", op,
			"recipient_id", o.RecipientID,
			"err", err,
		)
	}

	if d.store != nil {
		if err := d.store.RecordMessage(pctx, model.MessageFromOutcome(job.id, text, o)); err != nil {
			fail("record_message", err)
		}
		if o.Success && o.RecipientID != 0 && d.cfg.ContactedStatus != "" {
			if err := d.store.MarkRecipientContacted(pctx, o.RecipientID, d.cfg.ContactedStatus); err != nil {
				fail("mark_contacted", err)
			}
		}
	}

	if d.cache != nil && o.Success && o.ProviderMessageID != "" {
		if err := d.cache.StoreSent(pctx, o.ProviderMessageID, o.RecipientID, o.At); err != nil {
			fail("cache_sent", err)
		}
	}
}

func (d *Dispatcher) delay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func outcomeLabel(o model.SendOutcome) string {
	if o.Success {
		return "ok"
	}
	return string(o.ErrorClass)
}
