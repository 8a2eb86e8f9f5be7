package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
)

// InsufficientContextAnswer is the fixed response when no grounding
// context exists or generation fails. The exact wording is load-bearing:
// clients match on it to detect an ungrounded answer.
const InsufficientContextAnswer = "I don't know based on the provided text."

const answerInstructions = `You are a helpful AI assistant for a technical book.

CRITICAL RULES:
1. Answer using ONLY the provided context
2. Keep answers SHORT and CONCISE (2-3 sentences maximum)
3. Use PLAIN TEXT only - NO markdown, NO bullet points, NO bold/italic, NO special formatting
4. Write in a natural, conversational tone
5. Do NOT include chunk_id, module, chapter, or anchor references
6. Do NOT add citations, sources, or references
7. If context is insufficient, say "I don't know based on the provided text."
8. Never use external knowledge

Write a brief, plain-text answer only.`

// AnswerService generates grounded answers: every answer is produced
// from the supplied context chunks only, and the citations list exactly
// those chunks, in order.
type AnswerService struct {
	manager *ai.Manager
	cache   *expirable.LRU[string, string]
}

func NewAnswerService(manager *ai.Manager) *AnswerService {
	cache := expirable.NewLRU[string, string](10000, nil, 2*time.Hour)
	return &AnswerService{
		manager: manager,
		cache:   cache,
	}
}

// Answer produces the grounded answer and its citations for the given
// context chunks. Failures never surface to the caller: any generation
// error degrades to the insufficient-context answer with no citations.
func (s *AnswerService) Answer(ctx context.Context, query string, chunks []model.RetrievedChunk) (string, []model.SourceReference) {
	if len(chunks) == 0 {
		return InsufficientContextAnswer, []model.SourceReference{}
	}
	prompt := buildPrompt(query, chunks)
	key := s.cacheKey(query, chunks)
	answer, ok := s.cache.Get(key)
	if !ok {
		generated, err := s.manager.Generate(ctx, prompt)
		if err != nil {
			logutil.GetLogger(ctx).Error("answer generation failed", zap.Error(err))
			return InsufficientContextAnswer, []model.SourceReference{}
		}
		answer = strings.TrimSpace(generated)
		if answer == "" {
			return InsufficientContextAnswer, []model.SourceReference{}
		}
		s.cache.Add(key, answer)
	}
	return answer, buildCitations(chunks)
}

func buildPrompt(query string, chunks []model.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, ck := range chunks {
		module := ck.Module
		if module == "" {
			module = "Unknown"
		}
		chapter := ck.Chapter
		if chapter == "" {
			chapter = "Unknown"
		}
		blocks = append(blocks, fmt.Sprintf("[Source: %s - %s]\n%s", module, chapter, ck.Content))
	}
	return fmt.Sprintf(`%s

Context from course materials:
%s

User Question: %s

Answer the question using ONLY the information from the context above.`,
		answerInstructions, strings.Join(blocks, "\n\n"), query)
}

// buildCitations maps context chunks to references 1:1, preserving
// order. Citations are never fabricated beyond the chunks given.
func buildCitations(chunks []model.RetrievedChunk) []model.SourceReference {
	citations := make([]model.SourceReference, 0, len(chunks))
	for _, ck := range chunks {
		citations = append(citations, model.SourceReference{
			ChunkID: ck.ChunkID,
			Module:  ck.Module,
			Chapter: ck.Chapter,
			Anchor:  ck.Anchor,
			URL:     ck.URL,
		})
	}
	return citations
}

func (s *AnswerService) cacheKey(query string, chunks []model.RetrievedChunk) string {
	ids := make([]string, 0, len(chunks))
	for _, ck := range chunks {
		ids = append(ids, ck.ChunkID)
	}
	sort.Strings(ids)
	h := sha256.New()
	h.Write([]byte(query))
	for _, id := range ids {
		h.Write([]byte{0})
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}
