package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"postflow/internal/ratelimit"
	"postflow/internal/util"
	"postflow/pkg/ai"
	"postflow/pkg/auth"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/generate"
	"postflow/pkg/queue"
	"postflow/pkg/storage"
	"postflow/pkg/store"
)

// Invalidator drops cached generations under a key prefix. The generation
// cache itself is owned by the executor; the app only needs invalidation
// when project inputs change.
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, keyPrefix string) error
}

// JobQueue is the app's view of the transcription queue.
type JobQueue interface {
	Enqueue(ctx context.Context, userID, objectKey, filename string) (queue.JobStatus, error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
}

// Config holds runtime wiring for the core application.
type Config struct {
	Store       store.Store
	DatabaseURL string

	Tokens   *auth.TokenIssuer
	Limiter  *ratelimit.Limiter
	Executor generate.SlotExecutor
	Cache    Invalidator

	Publisher   events.Publisher
	Objects     storage.ObjectStore
	Jobs        JobQueue
	Transcriber ai.Transcriber

	MaxUploadBytes int64
	Now            func() time.Time
}

// App wires storage, plan resolution, generation and quota enforcement.
type App struct {
	store        store.Store
	tokens       *auth.TokenIssuer
	limiter      *ratelimit.Limiter
	executor     generate.SlotExecutor
	orchestrator *generate.Orchestrator
	cache        Invalidator
	publisher    events.Publisher
	objects      storage.ObjectStore
	jobs         JobQueue
	transcriber  ai.Transcriber
	maxUpload    int64
	now          func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			dataStore = store.NewMemoryStore()
		} else {
			gs, err := store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
			dataStore = gs
		}
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("generation executor required")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.NewMemoryCounterStore(), ratelimit.DefaultRules())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 100 << 20
	}
	return &App{
		store:        dataStore,
		tokens:       cfg.Tokens,
		limiter:      cfg.Limiter,
		executor:     cfg.Executor,
		orchestrator: generate.NewOrchestrator(cfg.Executor, dataStore),
		cache:        cfg.Cache,
		publisher:    publisher,
		objects:      cfg.Objects,
		jobs:         cfg.Jobs,
		transcriber:  cfg.Transcriber,
		maxUpload:    maxUpload,
		now:          now,
	}, nil
}

// SignUp registers a new user and issues a session token.
func (a *App) SignUp(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, "", errValidation("a valid email is required")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", errValidation(err.Error())
	}
	if _, exists, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, "", errValidation("email already registered")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		CreatedAt:    a.now(),
		UpdatedAt:    a.now(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", errUnauthorized("invalid email or password")
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, "", errForbidden("account disabled")
	}
	token, err := a.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// VerifyToken resolves a session token to its user.
func (a *App) VerifyToken(token string) (domain.User, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, errUnauthorized("invalid or expired token")
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || user.Status == domain.StatusDisabled {
		return domain.User{}, errUnauthorized("invalid or expired token")
	}
	return user, nil
}

func (a *App) allow(ctx context.Context, userID string, category ratelimit.Category) error {
	res := a.limiter.Allow(ctx, userID, category)
	if !res.Allowed {
		return errRateLimited(res.RetryAfter)
	}
	return nil
}
