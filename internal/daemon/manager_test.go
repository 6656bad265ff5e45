package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/config"
	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/gate"
	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
	"github.com/Atharva-Kanherkar/rin/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const workdayScript = `
start: 2026-10-14T09:00:00Z
interval: 2s
ticks:
  - title: "main.go - rin - Visual Studio Code"
    app: Code.exe
    visual_diff: 0.5
    keyboard: true
    repeat: 20
  - at: 40s
    title: "Lo-fi Beats - YouTube"
    app: chrome.exe
    visual_diff: 12
    repeat: 20
  - at: 80s
    title: "weekly.md - Obsidian"
    app: Obsidian.exe
    visual_diff: 1
    repeat: 3
`

type recordingReactor struct {
	mu       sync.Mutex
	reaction string
	requests []Request
}

func (r *recordingReactor) React(_ context.Context, req Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.reaction, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	bodies []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, body string, _ bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies = append(n.bodies, body)
	return nil
}

type env struct {
	cfg   *config.Config
	store *storage.Store
	gate  *gate.Gate
}

func newEnv(t *testing.T) env {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := config.DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.Batch.Interval = time.Hour

	store, err := storage.Open(cfg.StoragePath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	baseline, err := knowledge.LoadBaseline("", logger)
	require.NoError(t, err)

	resolver := knowledge.NewResolver(logger,
		store.Tier(knowledge.SourceUser),
		store.Tier(knowledge.SourceShared),
		baseline)
	g := gate.New(resolver, baseline,
		gate.WithCache(store),
		gate.WithCapabilities(baseline),
		gate.WithLogger(logger))
	return env{cfg: cfg, store: store, gate: g}
}

func TestManager_RunScript(t *testing.T) {
	e := newEnv(t)
	src, err := capture.ParseScript([]byte(workdayScript), "")
	require.NoError(t, err)

	reactor := &recordingReactor{reaction: "Planning the week?"}
	notifier := &recordingNotifier{}
	m := NewManager(e.cfg, src, e.gate,
		WithReactor(reactor),
		WithNotifier(notifier),
		WithArchive(e.store),
		WithReactionStore(e.store),
		WithLogger(zaptest.NewLogger(t)))

	require.NoError(t, m.Run(context.Background()))

	c := m.Counters()
	assert.Equal(t, 43, c.Ticks)
	assert.Zero(t, c.Rejected)
	assert.Equal(t, 1, c.AICalls, "only the first Obsidian tick escalates")
	assert.Equal(t, 1, c.Cached)
	assert.Equal(t, 3, c.Processed)
	assert.Equal(t, 2, c.Spoken)

	// One per policy: ambient for the video, default for the new context.
	// Repeats fall inside each policy's cooldown.
	assert.Equal(t, []string{"Enjoy the video.", "Planning the week?"}, notifier.bodies)

	require.Len(t, reactor.requests, 1)
	assert.Equal(t, "Obsidian.exe", reactor.requests[0].App)

	stats := e.gate.Stats()
	assert.Equal(t, int64(43), stats.TotalChecks)
	assert.Equal(t, int64(42), stats.CallsAvoided)

	cached, ok, err := e.store.CachedReaction(context.Background(), "obsidian.exe", "weekly.md - Obsidian")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Planning the week?", cached)

	records, err := e.store.RecentEpisodes(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, m.RunID(), r.RunID)
	}

	for _, ep := range m.Aggregator().History() {
		assert.Equal(t, episode.StateProcessed, ep.State())
	}
	assert.Nil(t, m.Aggregator().Current())
}

func TestManager_PastDatedScriptKeepsDurations(t *testing.T) {
	e := newEnv(t)
	src, err := capture.ParseScript([]byte(`
start: 2020-01-01T09:00:00Z
interval: 1s
ticks:
  - title: "main.go - rin - Visual Studio Code"
    app: Code.exe
    keyboard: true
    repeat: 5
`), "")
	require.NoError(t, err)

	m := NewManager(e.cfg, src, e.gate, WithArchive(e.store), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, m.Run(context.Background()))

	hist := m.Aggregator().History()
	require.Len(t, hist, 1)
	ep := hist[0]
	assert.Equal(t, 5, ep.ObservationCount())
	assert.LessOrEqual(t, ep.TotalDuration(), e.cfg.Episode.MaxDuration)
	assert.Equal(t, 5*time.Second, ep.TotalDuration(), "last tick plus one sampler interval")
}

func TestManager_ExcludedStretchDoesNotStretchEpisode(t *testing.T) {
	e := newEnv(t)
	m := NewManager(e.cfg, nil, e.gate)
	ctx := context.Background()
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	tick := func(sec int, app, title string) TickOutcome {
		out, err := m.ProcessTick(ctx, capture.Tick{
			Timestamp: start.Add(time.Duration(sec) * time.Second),
			Title:     title,
			AppName:   app,
			Keyboard:  app == "Code.exe",
		})
		require.NoError(t, err)
		return out
	}

	for sec := 0; sec < 10; sec++ {
		tick(sec, "Code.exe", "main.go - rin - Visual Studio Code")
	}
	for sec := 10; sec < 3600; sec++ {
		require.True(t, tick(sec, "LockApp.exe", "Windows Default Lock Screen").Excluded)
	}
	out := tick(3600, "Code.exe", "main.go - rin - Visual Studio Code")

	require.NotNil(t, out.Closed)
	assert.Equal(t, 10, out.Closed.ObservationCount())
	assert.LessOrEqual(t, out.Closed.TotalDuration(), e.cfg.Episode.MaxDuration+e.cfg.Sampler.Interval)
	assert.Equal(t, 1, out.Episode.ObservationCount())
}

func TestManager_ExcludedApps(t *testing.T) {
	e := newEnv(t)
	m := NewManager(e.cfg, nil, e.gate)

	out, err := m.ProcessTick(context.Background(), capture.Tick{
		Timestamp: time.Now(),
		Title:     "Lock screen",
		AppName:   "lockapp.exe",
	})
	require.NoError(t, err)
	assert.True(t, out.Excluded)
	assert.Nil(t, m.Aggregator().Current())
	assert.Equal(t, 1, m.Counters().Excluded)
	assert.Zero(t, e.gate.Stats().TotalChecks)
}

func TestManager_KnownTemplate(t *testing.T) {
	e := newEnv(t)
	reactor := &recordingReactor{}
	m := NewManager(e.cfg, nil, e.gate, WithReactor(reactor))

	out, err := m.ProcessTick(context.Background(), capture.Tick{
		Timestamp: time.Now(),
		Title:     "Lo-fi Beats - YouTube",
		AppName:   "firefox",
	})
	require.NoError(t, err)
	assert.Equal(t, gate.KnownUseTemplate, out.Gate.Decision)
	assert.Equal(t, "Enjoy the video.", out.Reaction)
	require.NotNil(t, out.Episode)
	assert.Equal(t, 1, out.Episode.ObservationCount())
	assert.Empty(t, reactor.requests)
}

type fakeArchive struct {
	mu       sync.Mutex
	err      error
	archived []string
}

func (a *fakeArchive) ArchiveEpisode(_ context.Context, ep *episode.Episode, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, ep.ID())
	return nil
}

func (a *fakeArchive) PruneEpisodes(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func TestManager_ShutdownFlushesOnce(t *testing.T) {
	e := newEnv(t)
	archive := &fakeArchive{}
	m := NewManager(e.cfg, nil, e.gate, WithArchive(archive))

	_, err := m.ProcessTick(context.Background(), capture.Tick{Timestamp: time.Now(), Title: "Terminal", AppName: "kitty"})
	require.NoError(t, err)
	ep := m.Aggregator().Current()
	require.NotNil(t, ep)

	m.Shutdown()
	m.Shutdown()

	assert.Len(t, archive.archived, 1)
	assert.Equal(t, episode.StateProcessed, ep.State())
	assert.Equal(t, 1, m.Counters().Processed)
}

func TestManager_ArchiveFailureLeavesEpisodeClosed(t *testing.T) {
	e := newEnv(t)
	archive := &fakeArchive{err: errors.New("disk full")}
	m := NewManager(e.cfg, nil, e.gate, WithArchive(archive), WithLogger(zaptest.NewLogger(t)))

	_, err := m.ProcessTick(context.Background(), capture.Tick{Timestamp: time.Now(), Title: "Terminal", AppName: "kitty"})
	require.NoError(t, err)
	ep := m.Aggregator().Current()

	m.Shutdown()
	assert.Equal(t, episode.StateClosed, ep.State())
	assert.Zero(t, m.Counters().Processed)
}

// chanSource yields ticks from a channel until ctx is done.
type chanSource chan capture.Tick

func (chanSource) Name() string    { return "chan" }
func (chanSource) Available() bool { return true }
func (c chanSource) Next(ctx context.Context) (capture.Tick, error) {
	select {
	case <-ctx.Done():
		return capture.Tick{}, ctx.Err()
	case tick := <-c:
		return tick, nil
	}
}

func TestManager_RunUntilCancelled(t *testing.T) {
	e := newEnv(t)
	e.cfg.Batch.Interval = 10 * time.Millisecond
	archive := &fakeArchive{}
	src := make(chanSource)

	started := make(chan struct{})
	m := NewManager(e.cfg, src, e.gate,
		WithArchive(archive),
		WithBackground(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	<-started
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	src <- capture.Tick{Timestamp: base, Title: "Terminal", AppName: "kitty"}
	// Past the max duration, so the first episode closes.
	src <- capture.Tick{Timestamp: base.Add(11 * time.Minute), Title: "Terminal", AppName: "kitty"}

	require.Eventually(t, func() bool { return m.Counters().Processed == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, m.Counters().Processed, "shutdown flushes the second episode")
	assert.Len(t, archive.archived, 2)
}

func TestManager_SilentPolicyAndCooldown(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Learn(context.Background(), knowledge.SourceUser, knowledge.Entry{
		Apps:     []string{"discord"},
		Behavior: "stay_quiet",
		Reaction: "Say hi to everyone.",
	})
	require.NoError(t, err)
	_, err = e.store.Learn(context.Background(), knowledge.SourceUser, knowledge.Entry{
		Apps:     []string{"steam"},
		Behavior: "light_touch",
		Reaction: "Game time.",
	})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	m := NewManager(e.cfg, nil, e.gate, WithNotifier(notifier))
	base := time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)
	tick := func(at time.Duration, app string) {
		_, err := m.ProcessTick(context.Background(), capture.Tick{Timestamp: base.Add(at), Title: app, AppName: app})
		require.NoError(t, err)
	}

	tick(0, "discord")
	tick(time.Minute, "steam")
	tick(2*time.Minute, "steam")
	tick(12*time.Minute, "steam") // light_touch cooldown is 10 minutes

	assert.Equal(t, []string{"Game time.", "Game time."}, notifier.bodies)
	assert.Equal(t, 2, m.Counters().Spoken)
}
