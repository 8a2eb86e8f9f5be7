package ingest

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
)

const (
	DefaultMinTokens    = 400
	DefaultMaxTokens    = 700
	DefaultOverlapRatio = 0.2

	// Documents shorter than this are treated as corrupt/empty.
	minContentChars = 10
)

var (
	wordRe     = regexp.MustCompile(`\w+`)
	sentenceRe = regexp.MustCompile(`[.!?]+\s+`)
)

type ChunkerConfig struct {
	MinTokens    int     `json:"min_tokens"`
	MaxTokens    int     `json:"max_tokens"`
	OverlapRatio float64 `json:"overlap_ratio"`
}

// Chunker splits extracted documents into overlapping token-bounded
// passages, preserving sentence boundaries.
type Chunker struct {
	cfg ChunkerConfig
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultMinTokens
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapRatio <= 0 {
		cfg.OverlapRatio = DefaultOverlapRatio
	}
	return &Chunker{cfg: cfg}
}

// CountTokens approximates token count by word-boundary tokenization.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(wordRe.FindAllString(text, -1))
}

// Chunk splits a document into chunks. Content that fails the integrity
// checks yields an empty list, never an error.
func (c *Chunker) Chunk(ctx context.Context, doc *model.ContentDocument) []model.Chunk {
	logger := logutil.GetLogger(ctx).With(zap.String("url", doc.URL))
	if !validateContentIntegrity(doc.Content) {
		logger.Warn("content integrity check failed, skipping")
		return nil
	}
	logger.Info("chunking content", zap.Int("total_tokens", CountTokens(doc.Content)))

	overlapTarget := int(math.Round(float64(c.cfg.MaxTokens) * c.cfg.OverlapRatio))
	sentences := sentenceRe.Split(doc.Content, -1)

	var chunks []model.Chunk
	var buf strings.Builder
	bufTokens := 0
	seedChars := 0
	chunkIdx := 0

	emit := func() {
		content := strings.TrimSpace(buf.String())
		chunks = append(chunks, model.Chunk{
			ChunkID:    ChunkID(doc.URL, chunkIdx),
			Content:    content,
			SourceURL:  doc.URL,
			Title:      doc.Title,
			Module:     doc.Module,
			Chapter:    doc.Chapter,
			Anchor:     doc.Anchor,
			TokenCount: bufTokens,
		})
		chunkIdx++
	}

	add := func(sentence string, tokens int) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
		bufTokens += tokens
	}

	for _, sentence := range sentences {
		sentenceTokens := CountTokens(sentence)
		if sentenceTokens == 0 {
			continue
		}
		if bufTokens+sentenceTokens > c.cfg.MaxTokens && buf.Len() > 0 && bufTokens >= c.cfg.MinTokens {
			emit()
			seed, seedTokens := overlapTail(buf.String(), overlapTarget)
			buf.Reset()
			buf.WriteString(seed)
			bufTokens = seedTokens
			seedChars = len(seed)
		}
		// Below the min floor the sentence is appended even when it
		// pushes the buffer past max_tokens.
		add(sentence, sentenceTokens)
	}

	tail := strings.TrimSpace(buf.String())
	switch {
	case tail == "":
	case bufTokens >= c.cfg.MinTokens:
		emit()
	case len(chunks) == 0:
		// The whole document is undersized; keep it as a single chunk
		// rather than losing the content.
		emit()
	default:
		// Undersized trailing remainder: merge the non-overlap part into
		// the previous chunk instead of dropping it.
		rest := strings.TrimSpace(tail[min(seedChars, len(tail)):])
		if rest != "" {
			last := &chunks[len(chunks)-1]
			last.Content = last.Content + " " + rest
			last.TokenCount = CountTokens(last.Content)
		}
	}

	logger.Info("chunking completed", zap.Int("chunks", len(chunks)))
	return chunks
}

// ChunkID derives a deterministic chunk identifier from the source URL and
// the chunk's ordinal position within the document.
func ChunkID(url string, idx int) string {
	sanitized := strings.ReplaceAll(strings.ReplaceAll(url, "://", "_"), "/", "_")
	return fmt.Sprintf("%s_%d", sanitized, idx)
}

// overlapTail walks backward from the end of a closed chunk accumulating
// whole words until the token budget is reached, without exceeding it.
func overlapTail(chunk string, targetTokens int) (string, int) {
	words := strings.Fields(chunk)
	tokens := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		wordTokens := CountTokens(words[i])
		if tokens+wordTokens > targetTokens {
			break
		}
		tokens += wordTokens
		start = i
	}
	return strings.Join(words[start:], " "), tokens
}

func validateContentIntegrity(content string) bool {
	if content == "" || len(content) < minContentChars {
		return false
	}
	if strings.ContainsRune(content, '�') || strings.ContainsRune(content, '\x00') {
		return false
	}
	special := 0
	total := 0
	for _, r := range content {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	return float64(special)/float64(total) <= 0.5
}
