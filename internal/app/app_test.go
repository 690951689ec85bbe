package app

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"postflow/internal/ratelimit"
	"postflow/pkg/ai"
	"postflow/pkg/auth"
	"postflow/pkg/domain"
	"postflow/pkg/events"
	"postflow/pkg/generate"
	"postflow/pkg/queue"
	"postflow/pkg/storage"
	"postflow/pkg/store"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls int
	reply string
	tones []string
}

func (f *fakeExecutor) Execute(ctx context.Context, req generate.ExecRequest) (generate.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tones = append(f.tones, req.KeyParams.Tone)
	reply := f.reply
	if reply == "" {
		reply = "generated for " + req.KeyParams.Platform
	}
	return generate.Result{Content: reply, Provenance: generate.ProvenanceAPI, Model: "test-model"}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExecutor) seenTones() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tones...)
}

type fakeJobQueue struct {
	mu   sync.Mutex
	jobs map[string]queue.JobStatus
	next int
}

func (f *fakeJobQueue) Enqueue(ctx context.Context, userID, objectKey, filename string) (queue.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobs == nil {
		f.jobs = make(map[string]queue.JobStatus)
	}
	f.next++
	job := queue.JobStatus{
		ID:        "job-" + strconv.Itoa(f.next),
		UserID:    userID,
		ObjectKey: objectKey,
		Filename:  filename,
		Status:    queue.StatusQueued,
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobQueue) GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	return job, ok, nil
}

type fakeTranscriber struct {
	text    string
	seconds float64
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (ai.Transcription, error) {
	return ai.Transcription{Text: f.text, DurationSeconds: f.seconds}, nil
}

type testEnv struct {
	app    *App
	store  *store.MemoryStore
	exec   *fakeExecutor
	events *events.MemoryPublisher
	now    time.Time
}

func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("unit-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	env := &testEnv{
		store:  store.NewMemoryStore(),
		exec:   &fakeExecutor{},
		events: events.NewMemoryPublisher(),
		now:    time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC),
	}
	a, err := New(Config{
		Store:       env.store,
		Tokens:      tokens,
		Executor:    env.exec,
		Publisher:   env.events,
		Objects:     storage.NewMemoryObjectStore(),
		Jobs:        &fakeJobQueue{},
		Transcriber: &fakeTranscriber{text: "spoken words", seconds: 95},
		Now:         func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

// addUser seeds a user whose account age puts it past the trial window.
func (e *testEnv) addUser(t *testing.T, id, planName string) domain.User {
	t.Helper()
	user := domain.User{
		ID:        id,
		Email:     id + "@example.com",
		Role:      domain.RoleUser,
		Status:    domain.StatusActive,
		CreatedAt: e.now.Add(-30 * 24 * time.Hour),
	}
	if err := e.store.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if planName != "" {
		if err := e.store.SaveSubscription(domain.Subscription{
			UserID:    id,
			Plan:      planName,
			Status:    domain.SubscriptionActive,
			PeriodEnd: e.now.Add(20 * 24 * time.Hour),
		}); err != nil {
			t.Fatalf("save subscription: %v", err)
		}
	}
	return user
}

func (e *testEnv) addProject(t *testing.T, user domain.User, in ProjectInput) domain.Project {
	t.Helper()
	project, err := e.app.CreateProject(context.Background(), user, in)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func TestSignUpAndLogin(t *testing.T) {
	env := newTestApp(t)
	user, token, err := env.app.SignUp("Person@Example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Email != "person@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if _, _, err := env.app.SignUp("person@example.com", "Str0ng#Password!"); err == nil {
		t.Fatal("expected duplicate email rejection")
	}
	if _, _, err := env.app.Login("person@example.com", "wrong-password"); err == nil {
		t.Fatal("expected bad password rejection")
	}
	loggedIn, _, err := env.app.Login("person@example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("user mismatch: %s vs %s", loggedIn.ID, user.ID)
	}
}

func TestCreateProjectQuotaBoundary(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-free", "") // resolves to free: 1 project max
	env.addProject(t, user, ProjectInput{Title: "one", SourceContent: "text"})
	_, err := env.app.CreateProject(context.Background(), user, ProjectInput{Title: "two", SourceContent: "text"})
	coded, ok := AsCoded(err)
	if !ok || coded.Code != CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
}

func TestCreateProjectCapabilityGates(t *testing.T) {
	env := newTestApp(t)
	free := env.addUser(t, "u-free", "")

	_, err := env.app.CreateProject(context.Background(), free, ProjectInput{
		Title: "p", SourceContent: "text", PostTone: "witty",
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED for tone on free, got %v", err)
	}

	_, err = env.app.CreateProject(context.Background(), free, ProjectInput{
		Title: "p", SourceContent: "text", SeriesCount: 3,
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED for series on free, got %v", err)
	}

	pro := env.addUser(t, "u-pro", "pro")
	if _, err := env.app.CreateProject(context.Background(), pro, ProjectInput{
		Title: "p", SourceContent: "text", PostTone: "witty",
	}); err != nil {
		t.Fatalf("pro user should use tone: %v", err)
	}
}

func TestGenerateBatchPersistsCanonicalOrder(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-max", "max")
	project := env.addProject(t, user, ProjectInput{
		Title:         "launch",
		SourceContent: "We are launching a new tool.",
		SeriesCounts:  map[string]int{"twitter": 2},
	})

	batch, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter", "linkedin"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(batch.Successful) != 3 || len(batch.Failed) != 0 {
		t.Fatalf("batch = %d ok / %d failed", len(batch.Successful), len(batch.Failed))
	}
	if env.exec.callCount() != 3 {
		t.Fatalf("executor calls = %d, want 3", env.exec.callCount())
	}

	var completed int
	for _, ev := range env.events.Events() {
		if ev.Type == events.TypeBatchCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("batch completed events = %d, want 1", completed)
	}

	outs, err := env.app.ListOutputs(user, project.ID)
	if err != nil {
		t.Fatalf("list outputs: %v", err)
	}
	want := []struct {
		platform string
		idx      int
	}{{"linkedin", 1}, {"twitter", 1}, {"twitter", 2}}
	if len(outs) != len(want) {
		t.Fatalf("outputs = %d, want %d", len(outs), len(want))
	}
	for i, w := range want {
		if outs[i].Platform != w.platform || outs[i].SeriesIndex != w.idx {
			t.Fatalf("position %d = (%s,%d), want (%s,%d)",
				i, outs[i].Platform, outs[i].SeriesIndex, w.platform, w.idx)
		}
	}
}

func TestGenerateRejectsBeforeAnyProviderCall(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-free", "")
	project := env.addProject(t, user, ProjectInput{Title: "p", SourceContent: "text"})

	_, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"myspace"},
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodeValidation {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}

	// Free allows a single variation; asking for more is a plan issue.
	_, err = env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter"},
		Variation: 1,
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED, got %v", err)
	}

	// Free caps a project at 4 outputs; 5 platforms cannot fit.
	_, err = env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter", "linkedin", "threads", "instagram", "facebook"},
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}

	if env.exec.callCount() != 0 {
		t.Fatalf("executor was called %d times before gates", env.exec.callCount())
	}
}

func TestGenerateSeriesVariantRebuildsOnePlatform(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-max", "max")
	project := env.addProject(t, user, ProjectInput{
		Title:         "series",
		SourceContent: "Long-form source.",
		SeriesCounts:  map[string]int{"twitter": 3, "linkedin": 2},
	})

	batch, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		RegenerateSeriesForPlatform: "twitter",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(batch.Successful) != 3 || len(batch.Failed) != 0 {
		t.Fatalf("batch = %d ok / %d failed, want 3/0", len(batch.Successful), len(batch.Failed))
	}
	if env.exec.callCount() != 3 {
		t.Fatalf("executor calls = %d, want 3", env.exec.callCount())
	}

	outs, err := env.app.ListOutputs(user, project.ID)
	if err != nil {
		t.Fatalf("list outputs: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("outputs = %d, want only the twitter series", len(outs))
	}
	for i, o := range outs {
		if o.Platform != "twitter" || o.SeriesIndex != i+1 {
			t.Fatalf("output %d = (%s,%d)", i, o.Platform, o.SeriesIndex)
		}
	}
}

func TestGenerateTailVariantLeavesEarlierSlots(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-max", "max")
	project := env.addProject(t, user, ProjectInput{
		Title:         "series",
		SourceContent: "Long-form source.",
		SeriesCounts:  map[string]int{"twitter": 3},
	})

	if _, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter"},
	}); err != nil {
		t.Fatalf("initial generate: %v", err)
	}

	env.exec.reply = "rewritten tail"
	batch, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		RegenerateFromIndex: &RegenerateFromIndex{Platform: "twitter", SeriesIndex: 2},
	})
	if err != nil {
		t.Fatalf("tail generate: %v", err)
	}
	if len(batch.Successful) != 2 {
		t.Fatalf("tail batch = %d ok, want 2", len(batch.Successful))
	}

	outs, err := env.app.ListOutputs(user, project.ID)
	if err != nil {
		t.Fatalf("list outputs: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("outputs = %d, want 3", len(outs))
	}
	if outs[0].SeriesIndex != 1 || outs[0].Content != "generated for twitter" {
		t.Fatalf("slot 1 was touched: %+v", outs[0])
	}
	for _, o := range outs[1:] {
		if o.Content != "rewritten tail" {
			t.Fatalf("slot %d not regenerated: %+v", o.SeriesIndex, o)
		}
	}
}

func TestGenerateVariantValidation(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-max", "max")
	project := env.addProject(t, user, ProjectInput{
		Title:         "series",
		SourceContent: "text",
		SeriesCounts:  map[string]int{"twitter": 2},
	})

	_, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		RegenerateSeriesForPlatform: "twitter",
		RegenerateFromIndex:         &RegenerateFromIndex{Platform: "twitter", SeriesIndex: 1},
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodeValidation {
		t.Fatalf("expected VALIDATION_FAILED for combined variants, got %v", err)
	}

	_, err = env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		RegenerateFromIndex: &RegenerateFromIndex{Platform: "twitter", SeriesIndex: 3},
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodeValidation {
		t.Fatalf("expected VALIDATION_FAILED for out-of-range index, got %v", err)
	}

	if env.exec.callCount() != 0 {
		t.Fatalf("executor was called %d times before gates", env.exec.callCount())
	}
}

func TestGenerateRejectsSeriesConfigAfterDowngrade(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-down", "enterprise")
	project := env.addProject(t, user, ProjectInput{
		Title:         "series",
		SourceContent: "text",
		SeriesCounts:  map[string]int{"twitter": 3},
	})

	// The subscription lapses to free while the project keeps its
	// multi-post layout.
	if err := env.store.SaveSubscription(domain.Subscription{
		UserID: user.ID,
		Plan:   "free",
		Status: domain.SubscriptionActive,
	}); err != nil {
		t.Fatalf("save subscription: %v", err)
	}

	_, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter"},
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED after downgrade, got %v", err)
	}
	if env.exec.callCount() != 0 {
		t.Fatalf("executor calls = %d, want 0", env.exec.callCount())
	}
}

func TestGenerateToneOverride(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-pro", "pro")
	project := env.addProject(t, user, ProjectInput{
		Title:         "p",
		SourceContent: "text",
		PostTone:      "casual",
	})

	if _, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms:        []string{"twitter"},
		PostToneOverride: "urgent",
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"linkedin"},
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	tones := env.exec.seenTones()
	if len(tones) != 2 || tones[0] != "urgent" || tones[1] != "casual" {
		t.Fatalf("tones = %v, want [urgent casual]", tones)
	}

	free := env.addUser(t, "u-free", "")
	freeProject := env.addProject(t, free, ProjectInput{Title: "p", SourceContent: "text"})
	_, err := env.app.Generate(context.Background(), free, freeProject.ID, GenerateRequest{
		Platforms:        []string{"twitter"},
		PostToneOverride: "urgent",
	})
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED for tone on free, got %v", err)
	}
	if env.exec.callCount() != 2 {
		t.Fatalf("executor calls = %d, want 2", env.exec.callCount())
	}
}

func TestGenerateRateLimited(t *testing.T) {
	tokens, _ := auth.NewTokenIssuer("unit-test-secret", time.Hour)
	mem := store.NewMemoryStore()
	exec := &fakeExecutor{}
	limiter := ratelimit.New(ratelimit.NewMemoryCounterStore(), map[ratelimit.Category]ratelimit.Rule{
		ratelimit.CategoryGenerate: {Limit: 2, Window: time.Minute},
	})
	a, err := New(Config{Store: mem, Tokens: tokens, Executor: exec, Limiter: limiter})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	user := domain.User{ID: "u1", Status: domain.StatusActive, CreatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	if err := mem.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	project, err := a.CreateProject(context.Background(), user, ProjectInput{Title: "p", SourceContent: "text"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := a.Generate(context.Background(), user, project.ID, GenerateRequest{Platforms: []string{"twitter"}}); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	_, err = a.Generate(context.Background(), user, project.ID, GenerateRequest{Platforms: []string{"twitter"}})
	coded, ok := AsCoded(err)
	if !ok || coded.Code != CodeRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if coded.RetryAfter <= 0 {
		t.Fatalf("retryAfter = %v, want positive", coded.RetryAfter)
	}
}

func TestRegenerateTouchesOnlyOneSlot(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-pro", "pro")
	project := env.addProject(t, user, ProjectInput{Title: "p", SourceContent: "text"})
	if _, err := env.app.Generate(context.Background(), user, project.ID, GenerateRequest{
		Platforms: []string{"twitter", "linkedin"},
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	outs, _ := env.app.ListOutputs(user, project.ID)
	if len(outs) != 2 {
		t.Fatalf("outputs = %d", len(outs))
	}
	target := outs[1] // twitter
	other := outs[0]

	env.exec.reply = "regenerated text"
	batch, err := env.app.RegenerateOutput(context.Background(), user, target.ID, GenerateRequest{})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(batch.Successful) != 1 || batch.TotalRequested != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	after, _ := env.app.ListOutputs(user, project.ID)
	for _, o := range after {
		switch o.ID {
		case target.ID:
			if o.Content != "regenerated text" {
				t.Fatalf("target content = %q", o.Content)
			}
		case other.ID:
			if o.Content != other.Content {
				t.Fatalf("sibling was modified: %q", o.Content)
			}
		}
	}
}

func TestUpdateOutputOwnershipAndEdit(t *testing.T) {
	env := newTestApp(t)
	owner := env.addUser(t, "u-owner", "pro")
	stranger := env.addUser(t, "u-other", "pro")
	project := env.addProject(t, owner, ProjectInput{Title: "p", SourceContent: "text"})
	if _, err := env.app.Generate(context.Background(), owner, project.ID, GenerateRequest{Platforms: []string{"twitter"}}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	outs, _ := env.app.ListOutputs(owner, project.ID)

	if _, err := env.app.UpdateOutput(context.Background(), stranger, outs[0].ID, "hijack"); err == nil {
		t.Fatal("expected stranger edit to be rejected")
	}
	updated, err := env.app.UpdateOutput(context.Background(), owner, outs[0].ID, "my edit")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsEdited || updated.Content != "my edit" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.OriginalContent == "my edit" || updated.OriginalContent == "" {
		t.Fatalf("original content = %q", updated.OriginalContent)
	}
}

func TestUploadAudioGates(t *testing.T) {
	env := newTestApp(t)
	free := env.addUser(t, "u-free", "")
	_, err := env.app.UploadAudio(context.Background(), free, "take.mp3", 1024, strings.NewReader("audio"))
	if coded, ok := AsCoded(err); !ok || coded.Code != CodePlanRequired {
		t.Fatalf("expected PLAN_REQUIRED for free audio, got %v", err)
	}

	maxUser := env.addUser(t, "u-max", "max")
	job, err := env.app.UploadAudio(context.Background(), maxUser, "take.mp3", 1024, strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if job.UserID != maxUser.ID || job.ObjectKey == "" {
		t.Fatalf("job = %+v", job)
	}

	// Exhaust the period's minutes: max allows 300.
	if err := env.store.SaveAudioUsage(domain.AudioUsage{
		UserID:      maxUser.ID,
		MinutesUsed: 300,
		PeriodEnd:   env.now.Add(10 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("save usage: %v", err)
	}
	_, err = env.app.UploadAudio(context.Background(), maxUser, "more.mp3", 1024, strings.NewReader("audio"))
	if coded, ok := AsCoded(err); !ok || coded.Code != CodeQuotaExceeded {
		t.Fatalf("expected QUOTA_EXCEEDED, got %v", err)
	}
}

func TestHandleTranscriptionJobBooksMinutes(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-max", "max")
	job, err := env.app.UploadAudio(context.Background(), user, "take.mp3", 1024, strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	result, err := env.app.HandleTranscriptionJob(context.Background(), job)
	if err != nil {
		t.Fatalf("handle job: %v", err)
	}
	if result.Text != "spoken words" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Minutes != 2 { // 95s rounds up
		t.Fatalf("minutes = %d, want 2", result.Minutes)
	}
	usage, ok, _ := env.store.GetAudioUsage(user.ID)
	if !ok || usage.MinutesUsed != 2 {
		t.Fatalf("usage = %+v ok=%v", usage, ok)
	}
}

func TestQuotaProbe(t *testing.T) {
	env := newTestApp(t)
	user := env.addUser(t, "u-pro", "pro")
	env.addProject(t, user, ProjectInput{Title: "p", SourceContent: "text"})

	q, err := env.app.QuotaProbe(user)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if q.Plan != "pro" {
		t.Fatalf("plan = %q", q.Plan)
	}
	if q.PlanType != "text" || q.CanUseAudio {
		t.Fatalf("pro plan type = %q, canUseAudio = %v", q.PlanType, q.CanUseAudio)
	}
	if q.Projects.Used != 1 || q.Projects.Limit != 20 {
		t.Fatalf("projects = %+v", q.Projects)
	}
	if q.Audio != nil {
		t.Fatalf("pro should not expose audio quota, got %+v", q.Audio)
	}

	maxUser := env.addUser(t, "u-max", "max")
	q, err = env.app.QuotaProbe(maxUser)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if q.PlanType != "text_audio" || !q.CanUseAudio {
		t.Fatalf("max plan type = %q, canUseAudio = %v", q.PlanType, q.CanUseAudio)
	}
	if q.Audio == nil || q.Audio.MinutesLimit != 300 {
		t.Fatalf("audio quota = %+v", q.Audio)
	}
}

func TestTrialWindowResolvesThroughApp(t *testing.T) {
	env := newTestApp(t)
	user := domain.User{
		ID:        "u-new",
		Status:    domain.StatusActive,
		CreatedAt: env.now.Add(-24 * time.Hour),
	}
	if err := env.store.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	q, err := env.app.QuotaProbe(user)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if q.Plan != "trial" {
		t.Fatalf("plan = %q, want trial inside the window", q.Plan)
	}

	env.now = env.now.Add(4 * 24 * time.Hour)
	q, err = env.app.QuotaProbe(user)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if q.Plan != "free" {
		t.Fatalf("plan = %q, want free after the window", q.Plan)
	}
}
