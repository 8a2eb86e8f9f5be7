package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
)

type scriptedGenerator struct {
	answer string
	err    error
	calls  int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.answer, g.err
}

func retrievedChunks() []model.RetrievedChunk {
	return []model.RetrievedChunk{
		{ChunkID: "chunk_a", Content: "Robots use sensors.", Module: "robotics", Chapter: "sensors", Anchor: "intro", URL: "https://example.com/robotics/sensors"},
		{ChunkID: "chunk_b", Content: "Actuators move joints.", Module: "robotics", Chapter: "actuators", URL: "https://example.com/robotics/actuators"},
	}
}

func newTestAnswerService(gen *scriptedGenerator) *AnswerService {
	return NewAnswerService(ai.NewManager(gen, nil, ai.ManagerConfig{Timeout: 5}))
}

func TestAnswerEmptyContextReturnsSentinel(t *testing.T) {
	gen := &scriptedGenerator{answer: "should never be used"}
	svc := newTestAnswerService(gen)

	answer, citations := svc.Answer(context.Background(), "what is a robot?", nil)
	require.Equal(t, InsufficientContextAnswer, answer)
	require.Empty(t, citations)
	require.Zero(t, gen.calls)
}

func TestAnswerCitationsMatchContextInOrder(t *testing.T) {
	gen := &scriptedGenerator{answer: "Robots sense and actuate."}
	svc := newTestAnswerService(gen)

	chunks := retrievedChunks()
	answer, citations := svc.Answer(context.Background(), "how do robots work?", chunks)
	require.Equal(t, "Robots sense and actuate.", answer)
	require.Len(t, citations, len(chunks))
	for i, citation := range citations {
		require.Equal(t, chunks[i].ChunkID, citation.ChunkID)
		require.Equal(t, chunks[i].Module, citation.Module)
		require.Equal(t, chunks[i].Chapter, citation.Chapter)
		require.Equal(t, chunks[i].Anchor, citation.Anchor)
		require.Equal(t, chunks[i].URL, citation.URL)
	}
}

func TestAnswerGenerationFailureFailsClosed(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("upstream down")}
	svc := newTestAnswerService(gen)

	answer, citations := svc.Answer(context.Background(), "how do robots work?", retrievedChunks())
	require.Equal(t, InsufficientContextAnswer, answer)
	require.Empty(t, citations)
}

func TestAnswerCachesByQueryAndContext(t *testing.T) {
	gen := &scriptedGenerator{answer: "cached answer"}
	svc := newTestAnswerService(gen)

	chunks := retrievedChunks()
	first, _ := svc.Answer(context.Background(), "same question", chunks)
	second, citations := svc.Answer(context.Background(), "same question", chunks)
	require.Equal(t, first, second)
	require.Equal(t, 1, gen.calls)
	require.Len(t, citations, len(chunks))
}

func TestAnswerPromptContainsSourceBlocks(t *testing.T) {
	prompt := buildPrompt("how?", retrievedChunks())
	require.Contains(t, prompt, "[Source: robotics - sensors]\nRobots use sensors.")
	require.Contains(t, prompt, "[Source: robotics - actuators]\nActuators move joints.")
	require.Contains(t, prompt, "User Question: how?")
}
