package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/service/prompt"
	"github.com/sandevgo/rpgai/pkg/srv"
)

type fakeStore struct {
	personas  map[string]core.Persona
	docs      []core.Document
	history   []core.Message
	commitErr error

	mu      sync.Mutex
	commits [][2]core.StoredMessage
	events  *[]string
}

func (f *fakeStore) GetPersona(_ context.Context, id string) (*core.Persona, error) {
	p, ok := f.personas[id]
	if !ok {
		return nil, core.ErrPersonaNotFound
	}
	return &p, nil
}
func (f *fakeStore) ListPersonas(context.Context, string) ([]core.Persona, error) { return nil, nil }
func (f *fakeStore) CreatePersona(context.Context, *core.Persona) error           { return nil }
func (f *fakeStore) DeactivatePersona(context.Context, string) error              { return nil }

func (f *fakeStore) GetDocuments(context.Context, string) ([]core.Document, error) {
	return f.docs, nil
}
func (f *fakeStore) AddDocument(context.Context, *core.Document) error    { return nil }
func (f *fakeStore) DeleteDocument(context.Context, string, string) error { return nil }

func (f *fakeStore) GetOrCreateConversation(_ context.Context, personaID, userID string) (*core.Conversation, error) {
	return &core.Conversation{ID: "conv-" + personaID + "-" + userID, PersonaID: personaID, UserID: userID}, nil
}

func (f *fakeStore) RecentMessages(context.Context, string, int) ([]core.Message, error) {
	return f.history, nil
}

func (f *fakeStore) CommitTurn(_ context.Context, _ string, user, assistant core.StoredMessage, _ time.Time) error {
	*f.events = append(*f.events, "commit")
	if f.commitErr != nil {
		return f.commitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, [2]core.StoredMessage{user, assistant})
	return nil
}

func (f *fakeStore) History(context.Context, string, string, int) ([]core.StoredMessage, error) {
	return nil, nil
}

type fakeMemory struct {
	mu          sync.Mutex
	records     map[core.ScopeKind][]core.MemoryRecord
	recalled    []core.Scope
	remembered  []core.Scope
	rememberErr error
	disabled    bool
}

func (m *fakeMemory) Enabled() bool { return !m.disabled }

func (m *fakeMemory) Recall(_ context.Context, scope core.Scope, _ string, limit int) []core.MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recalled = append(m.recalled, scope)
	recs := m.records[scope.Kind]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func (m *fakeMemory) Remember(_ context.Context, scope core.Scope, _ []core.Message, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered = append(m.remembered, scope)
	return m.rememberErr
}

type fakeGen struct {
	reply  string
	err    error
	req    core.GenerateRequest
	events *[]string
}

func (g *fakeGen) Generate(_ context.Context, req core.GenerateRequest) (*core.GenerationResult, error) {
	*g.events = append(*g.events, "generate")
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &core.GenerationResult{Content: g.reply, Backend: "ollama", Model: "llama3.1"}, nil
}

type fakeSynth struct {
	err   error
	calls int
	text  string
	voice string
}

func (s *fakeSynth) Synthesize(_ context.Context, text, voice string, _ bool) (*core.AudioArtifact, error) {
	s.calls++
	s.text, s.voice = text, voice
	if s.err != nil {
		return nil, s.err
	}
	return &core.AudioArtifact{Path: s.CachePath(text, voice)}, nil
}

func (s *fakeSynth) CachePath(text, voice string) string { return "/cache/" + voice + ".wav" }

func (s *fakeSynth) Health(context.Context) bool { return true }

// inlineJobs runs submitted jobs immediately, recording their names.
type inlineJobs struct {
	names []string
	errs  []error
	full  bool
}

func (j *inlineJobs) Submit(ctx context.Context, name string, _ time.Duration, fn srv.Job) error {
	if j.full {
		return srv.ErrPoolFull
	}
	j.names = append(j.names, name)
	j.errs = append(j.errs, fn(ctx))
	return nil
}

type harness struct {
	orch   *Orchestrator
	store  *fakeStore
	memory *fakeMemory
	gen    *fakeGen
	synth  *fakeSynth
	jobs   *inlineJobs
	states []State
	events []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.store = &fakeStore{
		personas: map[string]core.Persona{
			"brom":  {ID: "brom", Name: "Brom", SystemPrompt: "You are Brom.", Voice: "dwarf", Backend: "ollama", Temperature: 0.7},
			"elara": {ID: "elara", Name: "Elara", SystemPrompt: "You are Elara."},
		},
		events: &h.events,
	}
	h.memory = &fakeMemory{records: map[core.ScopeKind][]core.MemoryRecord{
		core.ScopeCharacter: {{Text: "User bought a sword"}},
		core.ScopeUser:      {{Text: "User is named Ada"}},
	}}
	h.gen = &fakeGen{reply: "**Aye**, what do you need?", events: &h.events}
	h.synth = &fakeSynth{}
	h.jobs = &inlineJobs{}

	h.orch = NewOrchestrator(Deps{
		Personas:      h.store,
		Documents:     h.store,
		Conversations: h.store,
		Memory:        h.memory,
		Generator:     h.gen,
		Assembler:     prompt.NewAssembler(2000, 5),
		Synthesizer:   h.synth,
		Jobs:          h.jobs,
	}, Options{HistoryLimit: 5, CharacterLimit: 5, GlobalLimit: 3, MaxTokens: 500, AudioTimeout: time.Second})
	h.orch.SetObserver(func(_ context.Context, s State) { h.states = append(h.states, s) })
	return h
}

func TestSendTurn_HappyPath(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{
		PersonaID: "brom",
		UserID:    "u1",
		Text:      "  I need an axe  ",
		Situation: &core.SituationalState{Location: "Forge"},
	})
	require.NoError(t, err)

	assert.Equal(t, "conv-brom-u1", res.ConversationID)
	assert.Equal(t, "**Aye**, what do you need?", res.Reply)
	assert.Equal(t, "ollama", res.Backend)
	assert.Empty(t, res.AudioPath)

	assert.Equal(t, []State{
		StateMemoryLookup, StateContextBuild, StateGenerating, StateCommitted, StateMemoryExtract, StateIdle,
	}, h.states)
	assert.Equal(t, []string{"generate", "commit"}, h.events)

	sys := h.gen.req.Messages[0].Content
	assert.Contains(t, sys, "**What you remember about this user:**\n- User bought a sword")
	assert.Contains(t, sys, "**General facts about this user:**\n- User is named Ada")
	assert.Contains(t, sys, "Location: Forge")
	assert.Equal(t, core.UserMessage("I need an axe"), h.gen.req.Messages[len(h.gen.req.Messages)-1])
	assert.Equal(t, "ollama", h.gen.req.Backend)
	assert.Equal(t, 0.7, h.gen.req.Temperature)
	assert.Equal(t, 500, h.gen.req.MaxTokens)

	require.Len(t, h.store.commits, 1)
	assert.Equal(t, "I need an axe", h.store.commits[0][0].Content)
	assert.Equal(t, core.RoleAssistant, h.store.commits[0][1].Role)

	assert.ElementsMatch(t, []core.Scope{core.CharacterScope("brom", "u1"), core.UserScope("u1")}, h.memory.recalled)
	assert.Equal(t, []string{"memory-extract"}, h.jobs.names)
	assert.Equal(t, []core.Scope{core.CharacterScope("brom", "u1")}, h.memory.remembered)
}

func TestSendTurn_MemoryDegradation(t *testing.T) {
	h := newHarness(t)
	h.memory.records = nil

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	assert.NotContains(t, h.gen.req.Messages[0].Content, "What you remember")
	assert.NotContains(t, h.gen.req.Messages[0].Content, "General facts")
}

func TestSendTurn_ExtractionFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.memory.rememberErr = core.ErrMemoryExtractionFailed

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	require.Len(t, h.jobs.errs, 1)
	assert.ErrorIs(t, h.jobs.errs[0], core.ErrMemoryExtractionFailed)
}

func TestSendTurn_FullQueueDoesNotFailTurn(t *testing.T) {
	h := newHarness(t)
	h.jobs.full = true

	_, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.Empty(t, h.memory.remembered)
}

func TestSendTurn_GenerationFailure(t *testing.T) {
	h := newHarness(t)
	h.gen.err = core.NewGenerationError("ollama", "", errors.New("connection refused"))

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrGenerationFailed)
	assert.Empty(t, h.store.commits)
	assert.NotContains(t, h.states, StateCommitted)
	assert.Empty(t, h.jobs.names)
	assert.Equal(t, StateIdle, h.states[len(h.states)-1])
}

func TestSendTurn_CommitBeforeRespond(t *testing.T) {
	h := newHarness(t)
	h.store.commitErr = errors.New("disk full")

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi", Voice: true})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrCommitFailed)
	assert.Equal(t, []string{"generate", "commit"}, h.events)
	assert.Zero(t, h.synth.calls)
	assert.Empty(t, h.jobs.names)
}

func TestSendTurn_UnknownPersona(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "ghost", UserID: "u1", Text: "hi"})
	assert.ErrorIs(t, err, core.ErrPersonaNotFound)
	assert.Empty(t, h.events)
}

func TestSendTurn_EmptyMessage(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendTurn_CrossPersona(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SendTurn(context.Background(), core.TurnRequest{
		PersonaID:       "brom",
		UserID:          "u1",
		Text:            "Greetings, smith.",
		SenderPersonaID: "elara",
	})
	require.NoError(t, err)

	assert.Contains(t, h.gen.req.Messages[0].Content, "**Note:** This message is from Elara, another character in the world.")
	assert.ElementsMatch(t, []core.Scope{
		core.CharacterScope("brom", "persona_elara"),
		core.UserScope("persona_elara"),
	}, h.memory.recalled)
	assert.Equal(t, []core.Scope{core.CharacterScope("brom", "persona_elara")}, h.memory.remembered)
}

func TestSendTurn_UnknownSenderKeepsUserSubject(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.SendTurn(context.Background(), core.TurnRequest{
		PersonaID:       "brom",
		UserID:          "u1",
		Text:            "Who goes there?",
		SenderPersonaID: "ghost",
	})
	require.NoError(t, err)

	assert.NotContains(t, h.gen.req.Messages[0].Content, "**Note:**")
	assert.ElementsMatch(t, []core.Scope{
		core.CharacterScope("brom", "u1"),
		core.UserScope("u1"),
	}, h.memory.recalled)
	assert.Equal(t, []core.Scope{core.CharacterScope("brom", "u1")}, h.memory.remembered)
}

func TestSendTurn_DisabledMemorySchedulesNothing(t *testing.T) {
	h := newHarness(t)
	h.memory.disabled = true

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	assert.Empty(t, h.jobs.names)
	assert.Empty(t, h.memory.recalled)
	assert.Empty(t, h.memory.remembered)
}

func TestSendTurn_InlineAudio(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi", Voice: true})
	require.NoError(t, err)
	assert.Equal(t, "/cache/dwarf.wav", res.AudioPath)
	assert.False(t, res.AudioPending)
	assert.Equal(t, "Aye, what do you need?", h.synth.text, "markdown is stripped before synthesis")
	assert.Contains(t, h.states, StateAudioSynthesis)
}

func TestSendTurn_AudioFailureKeepsReply(t *testing.T) {
	h := newHarness(t)
	h.synth.err = core.ErrAudioUnavailable

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi", Voice: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	assert.Empty(t, res.AudioPath)
}

func TestSendTurn_DetachedAudio(t *testing.T) {
	h := newHarness(t)
	h.orch.opts.DetachedAudio = true

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi", Voice: true})
	require.NoError(t, err)
	assert.True(t, res.AudioPending)
	assert.Equal(t, "/cache/dwarf.wav", res.AudioPath)
	assert.Equal(t, []string{"synthesize", "memory-extract"}, h.jobs.names)
	assert.NotContains(t, h.states, StateAudioSynthesis)
}

func TestSendTurn_NoVoiceWithoutSynthesizer(t *testing.T) {
	h := newHarness(t)
	h.orch.Synthesizer = nil

	res, err := h.orch.SendTurn(context.Background(), core.TurnRequest{PersonaID: "brom", UserID: "u1", Text: "hi", Voice: true})
	require.NoError(t, err)
	assert.Empty(t, res.AudioPath)
}
