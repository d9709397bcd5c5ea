package generation_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/loreweave/internal/domain/generation"
	"github.com/rpggio/loreweave/internal/domain/session"
	"github.com/rpggio/loreweave/internal/memstore"
	"github.com/rpggio/loreweave/internal/store/mocks"
)

// fixedCounter reports the same token count for any input.
type fixedCounter int

func (c fixedCounter) Count(string) int { return int(c) }

func newPipeline(t *testing.T, prov *mocks.Provider, cfg generation.Config) (*generation.Service, *session.Service) {
	t.Helper()
	sessions := session.NewService(memstore.New(), nil)
	return generation.NewService(sessions, prov, fixedCounter(100), nil, nil, cfg), sessions
}

func lockFoundation(t *testing.T, sessions *session.Service, sessionID string) {
	t.Helper()
	ctx := context.Background()

	_, err := sessions.AppendBlock(ctx, sessionID, session.BlockBackground,
		json.RawMessage(`{"title":"The Drowned Vale","synopsis":"A valley swallowed by the sea returns."}`))
	require.NoError(t, err)
	_, err = sessions.SetBlockLock(ctx, sessionID, session.BlockBackground, true)
	require.NoError(t, err)

	_, err = sessions.AppendBlock(ctx, sessionID, session.BlockCharacters,
		json.RawMessage(`{"cast":[{"id":"mara","name":"Mara"}]}`))
	require.NoError(t, err)
	_, err = sessions.SetBlockLock(ctx, sessionID, session.BlockCharacters, true)
	require.NoError(t, err)
}

func lockChain(t *testing.T, sessions *session.Service, sessionID string) {
	t.Helper()
	ctx := context.Background()

	_, err := sessions.AppendBlock(ctx, sessionID, session.BlockMacroChain,
		json.RawMessage(`{"id":"ch1","scenes":[{"id":"sc1","title":"Arrival"},{"id":"sc2","title":"The Vault"}]}`))
	require.NoError(t, err)
	_, err = sessions.LockChain(ctx, sessionID, "ch1")
	require.NoError(t, err)
}

func TestRunBackgroundPersists(t *testing.T) {
	prov := &mocks.Provider{}
	prov.On("Generate", mock.Anything, mock.Anything).Return(&generation.Result{
		Payload: json.RawMessage(`{"title":"The Drowned Vale","synopsis":"A valley returns."}`),
		Model:   "test-model",
		Usage:   generation.Usage{PromptTokens: 10, CompletionTokens: 20},
	}, nil)

	svc, sessions := newPipeline(t, prov, generation.Config{})
	run, err := svc.Run(context.Background(), generation.RunRequest{SessionID: "s", Step: generation.StepBackground})
	require.NoError(t, err)

	require.NotNil(t, run.Document)
	assert.Equal(t, "The Drowned Vale", run.Document.Blocks.Background.Title)
	assert.Equal(t, "test-model", run.Model)
	assert.Equal(t, 20, run.Usage.CompletionTokens)

	doc, err := sessions.GetContext(context.Background(), "s")
	require.NoError(t, err)
	require.NotNil(t, doc.Blocks.Background)
}

func TestRunGatingFailsBeforeProviderCall(t *testing.T) {
	cases := []struct {
		name    string
		seed    func(t *testing.T, sessions *session.Service)
		req     generation.RunRequest
		wantErr error
	}{
		{
			name:    "characters before background locked",
			seed:    func(t *testing.T, sessions *session.Service) {},
			req:     generation.RunRequest{SessionID: "s", Step: generation.StepCharacters},
			wantErr: session.ErrNotLocked,
		},
		{
			name: "chain before characters locked",
			seed: func(t *testing.T, sessions *session.Service) {
				ctx := context.Background()
				_, err := sessions.AppendBlock(ctx, "s", session.BlockBackground, json.RawMessage(`{"synopsis":"S"}`))
				require.NoError(t, err)
				_, err = sessions.SetBlockLock(ctx, "s", session.BlockBackground, true)
				require.NoError(t, err)
			},
			req:     generation.RunRequest{SessionID: "s", Step: generation.StepMacroChain},
			wantErr: session.ErrNotLocked,
		},
		{
			name: "scene in unlocked chain",
			seed: func(t *testing.T, sessions *session.Service) {
				lockFoundation(t, sessions, "s")
				_, err := sessions.AppendBlock(context.Background(), "s", session.BlockMacroChain,
					json.RawMessage(`{"id":"ch1","scenes":[{"id":"sc1","title":"Arrival"}]}`))
				require.NoError(t, err)
			},
			req:     generation.RunRequest{SessionID: "s", Step: generation.StepSceneDetail, ChainID: "ch1", SceneID: "sc1"},
			wantErr: session.ErrNotLocked,
		},
		{
			name: "scene two before scene one locked",
			seed: func(t *testing.T, sessions *session.Service) {
				lockFoundation(t, sessions, "s")
				lockChain(t, sessions, "s")
			},
			req:     generation.RunRequest{SessionID: "s", Step: generation.StepSceneDetail, ChainID: "ch1", SceneID: "sc2"},
			wantErr: session.ErrPredecessorNotLocked,
		},
		{
			name: "unknown scene",
			seed: func(t *testing.T, sessions *session.Service) {
				lockFoundation(t, sessions, "s")
				lockChain(t, sessions, "s")
			},
			req:     generation.RunRequest{SessionID: "s", Step: generation.StepSceneDetail, ChainID: "ch1", SceneID: "ghost"},
			wantErr: session.ErrSceneNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prov := &mocks.Provider{}
			svc, sessions := newPipeline(t, prov, generation.Config{})
			tc.seed(t, sessions)

			_, err := svc.Run(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.wantErr)
			prov.AssertNotCalled(t, "Generate")
		})
	}
}

func TestRunSceneDetailPersistsGenerated(t *testing.T) {
	prov := &mocks.Provider{}
	prov.On("Generate", mock.Anything, mock.MatchedBy(func(req generation.Request) bool {
		return req.Step == generation.StepSceneDetail && req.Scene != nil && req.Scene.ID == "sc1" && req.Context != nil
	})).Return(&generation.Result{
		Payload: json.RawMessage(`{"title":"Arrival","narrative":"The party wades ashore.","contextOut":{"keyEvents":["Landfall"]}}`),
	}, nil)

	svc, sessions := newPipeline(t, prov, generation.Config{})
	lockFoundation(t, sessions, "s")
	lockChain(t, sessions, "s")

	run, err := svc.Run(context.Background(), generation.RunRequest{
		SessionID: "s", Step: generation.StepSceneDetail, ChainID: "ch1", SceneID: "sc1",
	})
	require.NoError(t, err)

	require.NotNil(t, run.Scene)
	assert.Equal(t, session.SceneGenerated, run.Scene.Status)
	assert.Equal(t, "ch1", run.Scene.ChainID)
	assert.Equal(t, 1, run.Scene.Order)
	assert.Equal(t, []string{"Landfall"}, run.Scene.ContextOut.KeyEvents)
	assert.Equal(t, int64(1), run.Scene.Uses["backgroundV"])
	prov.AssertExpectations(t)
}

func TestRunSceneWithoutChainIDSearchesChains(t *testing.T) {
	prov := &mocks.Provider{}
	prov.On("Generate", mock.Anything, mock.Anything).Return(&generation.Result{
		Payload: json.RawMessage(`{"narrative":"Found it."}`),
	}, nil)

	svc, sessions := newPipeline(t, prov, generation.Config{})
	lockFoundation(t, sessions, "s")
	lockChain(t, sessions, "s")

	run, err := svc.Run(context.Background(), generation.RunRequest{
		SessionID: "s", Step: generation.StepSceneDetail, SceneID: "sc1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch1", run.Scene.ChainID)
}

func TestRunInvalidOutputLeavesDocumentUntouched(t *testing.T) {
	prov := &mocks.Provider{}
	prov.On("Generate", mock.Anything, mock.Anything).Return(&generation.Result{
		Payload: json.RawMessage(`{"title":"no synopsis"}`),
	}, nil)

	svc, sessions := newPipeline(t, prov, generation.Config{})
	before, err := sessions.GetContext(context.Background(), "s")
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), generation.RunRequest{SessionID: "s", Step: generation.StepBackground})
	assert.ErrorIs(t, err, generation.ErrInvalidOutput)

	after, err := sessions.GetContext(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Nil(t, after.Blocks.Background)
}

func TestRunTokenBudgetRejectsBeforeCall(t *testing.T) {
	prov := &mocks.Provider{}
	svc, _ := newPipeline(t, prov, generation.Config{ContextTokenBudget: 50})

	_, err := svc.Run(context.Background(), generation.RunRequest{SessionID: "s", Step: generation.StepBackground})
	assert.ErrorIs(t, err, generation.ErrContextTooLarge)
	prov.AssertNotCalled(t, "Generate")
}

func TestRunProviderTimeoutLeavesDocumentUntouched(t *testing.T) {
	prov := &mocks.Provider{}
	prov.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(nil, context.DeadlineExceeded)

	svc, sessions := newPipeline(t, prov, generation.Config{Timeout: 30 * time.Millisecond})
	before, err := sessions.GetContext(context.Background(), "s")
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), generation.RunRequest{SessionID: "s", Step: generation.StepBackground})
	assert.ErrorIs(t, err, generation.ErrProviderFailure)

	after, err := sessions.GetContext(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestRunRejectsUnknownStep(t *testing.T) {
	prov := &mocks.Provider{}
	svc, _ := newPipeline(t, prov, generation.Config{})

	_, err := svc.Run(context.Background(), generation.RunRequest{SessionID: "s", Step: "interlude"})
	assert.ErrorIs(t, err, generation.ErrUnknownStep)

	_, err = generation.ParseStepKind("interlude")
	assert.ErrorIs(t, err, generation.ErrUnknownStep)
}
