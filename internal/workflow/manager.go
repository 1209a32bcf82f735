package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clarifai/internal/config"
	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/notifications"
	"clarifai/internal/ownerlock"
	"clarifai/internal/publish"
	"clarifai/internal/services"
)

// Request asks for a concept video.
type Request struct {
	Owner              string
	ConceptName        string
	ConceptDescription string
	// Quality overrides render.quality when set.
	Quality string
	// OutputDir overrides paths.output_dir when set.
	OutputDir string
}

// Manager accepts generation requests and runs each job in the background.
type Manager struct {
	cfg          *config.Config
	store        jobs.Store
	orchestrator *Orchestrator
	locks        *ownerlock.Registry
	notifier     notifications.Service
	publisher    *publish.Publisher
	heartbeat    *HeartbeatMonitor
	logger       *slog.Logger
	newID        func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	runs map[string]chan struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithPublisher uploads completed videos with p.
func WithPublisher(p *publish.Publisher) ManagerOption {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithOwnerLocks replaces the owner lock registry.
func WithOwnerLocks(locks *ownerlock.Registry) ManagerOption {
	return func(m *Manager) {
		if locks != nil {
			m.locks = locks
		}
	}
}

// WithIDGenerator replaces the job id source.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a manager around an orchestrator.
func NewManager(cfg *config.Config, store jobs.Store, orchestrator *Orchestrator, logger *slog.Logger, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		locks:        ownerlock.New(cfg.LockDir()),
		notifier:     notifications.NewService(cfg),
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		newID:        uuid.NewString,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReclaimStale fails jobs abandoned by a previous process.
func (m *Manager) ReclaimStale(ctx context.Context) (int64, error) {
	return m.heartbeat.ReclaimStale(ctx)
}

// Submit validates req, claims the owner and starts the job. It returns
// ErrOwnerBusy without queueing when the owner already has a job running.
func (m *Manager) Submit(ctx context.Context, req Request) (*jobs.ConceptJob, error) {
	req = m.normalize(req)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if m.ctx.Err() != nil {
		return nil, errors.New("workflow manager stopped")
	}

	id := m.newID()
	release, err := m.locks.TryAcquire(req.Owner, id)
	if err != nil {
		if errors.Is(err, ownerlock.ErrBusy) {
			if holder, ok := m.locks.Holder(req.Owner); ok {
				return nil, fmt.Errorf("%w: owner %q is running job %s", ErrOwnerBusy, req.Owner, holder)
			}
			return nil, fmt.Errorf("%w: owner %q is running a job in another process", ErrOwnerBusy, req.Owner)
		}
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "submit", "claim owner", err)
	}

	job := &jobs.ConceptJob{
		ID:                 id,
		Owner:              req.Owner,
		ConceptName:        req.ConceptName,
		ConceptDescription: req.ConceptDescription,
		OutputDir:          req.OutputDir,
		Quality:            req.Quality,
		Status:             jobs.StatusPending,
	}
	job.AppendLog(time.Now(), "Job accepted")
	if err := m.store.Put(ctx, job); err != nil {
		release()
		return nil, fmt.Errorf("persist job: %w", err)
	}
	swapped, err := m.store.CompareAndSwapStatus(ctx, id, jobs.StatusPending, jobs.StatusGenerating)
	if err != nil || !swapped {
		release()
		if err == nil {
			err = fmt.Errorf("job %s left pending unexpectedly", id)
		}
		return nil, fmt.Errorf("start job: %w", err)
	}
	job.Status = jobs.StatusGenerating

	done := make(chan struct{})
	m.mu.Lock()
	m.runs[id] = done
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(job.Clone(), release, done)

	logging.WithContext(services.WithJobID(ctx, id), m.logger).Info("job submitted",
		logging.String(logging.FieldOwner, req.Owner),
		logging.String("concept", req.ConceptName),
	)
	return job, nil
}

// Wait blocks until job id leaves generating, then returns its final state.
func (m *Manager) Wait(ctx context.Context, id string) (*jobs.ConceptJob, error) {
	m.mu.Lock()
	done, ok := m.runs[id]
	m.mu.Unlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.store.Get(ctx, id)
}

// Get returns the current state of a job.
func (m *Manager) Get(ctx context.Context, id string) (*jobs.ConceptJob, error) {
	return m.store.Get(ctx, id)
}

// List returns an owner's jobs newest first; an empty owner lists all jobs.
func (m *Manager) List(ctx context.Context, owner string) ([]*jobs.ConceptJob, error) {
	return m.store.List(ctx, owner)
}

// Stop cancels running jobs and waits for them to record their final state.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) normalize(req Request) Request {
	req.Owner = strings.TrimSpace(req.Owner)
	req.ConceptName = strings.TrimSpace(req.ConceptName)
	req.ConceptDescription = strings.TrimSpace(req.ConceptDescription)
	req.Quality = strings.ToLower(strings.TrimSpace(req.Quality))
	if req.Quality == "" {
		req.Quality = m.cfg.Render.Quality
	}
	req.OutputDir = strings.TrimSpace(req.OutputDir)
	if req.OutputDir == "" {
		req.OutputDir = m.cfg.Paths.OutputDir
	}
	return req
}

func validateRequest(req Request) error {
	var missing []string
	if req.Owner == "" {
		missing = append(missing, "owner")
	}
	if req.ConceptName == "" {
		missing = append(missing, "concept name")
	}
	if req.ConceptDescription == "" {
		missing = append(missing, "concept description")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "workflow", "submit", "missing "+strings.Join(missing, ", "), nil)
	}
	switch req.Quality {
	case config.QualityLow, config.QualityMedium, config.QualityHigh:
	default:
		return services.Wrap(services.ErrValidation, "workflow", "submit", fmt.Sprintf("unknown quality %q", req.Quality), nil)
	}
	return nil
}
