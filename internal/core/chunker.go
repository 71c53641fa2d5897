// ABOUTME: Chunker splits document text into overlapping fixed-size segments
// ABOUTME: Window over runes by default; recursive and token strategies are opt-in
package core

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/tmc/langchaingo/textsplitter"
)

// The offline loader embeds the BPE ranks so the tokens strategy never
// needs network access
var installBpeLoader sync.Once

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// Encoding used by the OpenAI embedding models
	tokenEncoding = "cl100k_base"
)

// ChunkStrategy selects how text is cut into chunks
type ChunkStrategy string

const (
	StrategyWindow    ChunkStrategy = "window"
	StrategyRecursive ChunkStrategy = "recursive"
	StrategyTokens    ChunkStrategy = "tokens"
)

// ChunkerConfig configures a Chunker
type ChunkerConfig struct {
	Size     int
	Overlap  int
	Strategy ChunkStrategy
}

// Chunker splits text with a fixed strategy, size and overlap
type Chunker struct {
	size     int
	overlap  int
	strategy ChunkStrategy
	splitter textsplitter.TextSplitter
	encoding *tiktoken.Tiktoken
}

// NewChunker validates cfg and prepares the selected strategy.
// Zero size falls back to the defaults.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultChunkSize
		if cfg.Overlap == 0 {
			cfg.Overlap = DefaultChunkOverlap
		}
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyWindow
	}
	if cfg.Size < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", cfg.Size, cfg.Overlap)
	}

	c := &Chunker{size: cfg.Size, overlap: cfg.Overlap, strategy: cfg.Strategy}

	switch cfg.Strategy {
	case StrategyWindow:
	case StrategyRecursive:
		c.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.Size),
			textsplitter.WithChunkOverlap(cfg.Overlap),
		)
	case StrategyTokens:
		installBpeLoader.Do(func() { tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader()) })
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s encoding: %w", tokenEncoding, err)
		}
		c.encoding = enc
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", cfg.Strategy)
	}

	return c, nil
}

// Strategy returns the configured strategy
func (c *Chunker) Strategy() ChunkStrategy {
	return c.strategy
}

// Split cuts text into chunks. Whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch c.strategy {
	case StrategyRecursive:
		chunks, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("recursive split failed: %w", err)
		}
		return chunks, nil
	case StrategyTokens:
		return c.splitTokens(text), nil
	default:
		return SplitText(text, c.size, c.overlap), nil
	}
}

// splitTokens windows over token ids. cl100k is byte-level, so one rune can
// span several tokens; window edges are moved outward to the nearest token
// boundary that is also a rune boundary, keeping every chunk valid UTF-8.
func (c *Chunker) splitTokens(text string) []string {
	tokens := c.encoding.Encode(text, nil, nil)

	// offsets[i] is the byte offset in the decoded text where token i starts
	offsets := make([]int, len(tokens)+1)
	var decoded strings.Builder
	for i, tok := range tokens {
		offsets[i] = decoded.Len()
		decoded.WriteString(c.encoding.Decode([]int{tok}))
	}
	offsets[len(tokens)] = decoded.Len()
	full := decoded.String()

	runeBoundary := func(i int) bool {
		off := offsets[i]
		return off == len(full) || utf8.RuneStart(full[off])
	}

	chunks := make([]string, 0, len(tokens)/(c.size-c.overlap)+1)
	prev := [2]int{-1, -1}
	for _, w := range windowBounds(len(tokens), c.size, c.overlap) {
		start, end := w[0], w[1]
		for start > 0 && !runeBoundary(start) {
			start--
		}
		for end < len(tokens) && !runeBoundary(end) {
			end++
		}
		// Small windows can snap onto the same span as the previous one
		if start == prev[0] && end == prev[1] {
			continue
		}
		prev = [2]int{start, end}
		chunks = append(chunks, full[offsets[start]:offsets[end]])
	}
	return chunks
}

// SplitText is a sliding window over the runes of text. Consecutive chunks
// share exactly overlap runes and the last chunk always ends at the end of
// text, so chunks[0] followed by chunks[i][overlap:] for i > 0 rebuilds text.
// Panics unless 0 <= overlap < chunkSize.
func SplitText(text string, chunkSize, overlap int) []string {
	if overlap < 0 || overlap >= chunkSize {
		panic(fmt.Sprintf("core: invalid chunk window size=%d overlap=%d", chunkSize, overlap))
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	windows := windowBounds(len(runes), chunkSize, overlap)
	chunks := make([]string, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, string(runes[w[0]:w[1]]))
	}
	return chunks
}

// windowBounds returns [start, end) pairs covering n units
func windowBounds(n, size, overlap int) [][2]int {
	if n == 0 {
		return nil
	}
	step := size - overlap
	var bounds [][2]int
	for start := 0; ; start += step {
		end := start + size
		if end >= n {
			bounds = append(bounds, [2]int{start, n})
			return bounds
		}
		bounds = append(bounds, [2]int{start, end})
	}
}
