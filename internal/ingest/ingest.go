// Package ingest builds the retrieval corpus from source documents.
// It walks a directory of .txt, .md and .pdf files, splits each document
// into paragraph-sized chunks, tags chunks by detected theme and document
// kind, embeds them and writes the resulting corpus JSON.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/upravdom/upravdom/internal/corpus"
	"github.com/upravdom/upravdom/internal/retrieval"
)

const (
	// minChunkRunes drops trailing fragments too short to retrieve on.
	minChunkRunes = 40
	// maxChunkRunes splits oversized paragraphs at sentence boundaries.
	maxChunkRunes = 1200
)

// statuteMarkers identify normative documents by filename.
var statuteMarkers = []string{"жк_рф", "жк-рф", "постановлени", "правил", "фз-", "фз_", "закон", "минстро"}

// TextEmbedder generates embedding vectors for batches of chunk text.
type TextEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Builder converts a directory of documents into a corpus file.
type Builder struct {
	embedder TextEmbedder
	themes   retrieval.ThemeSet
	logger   *slog.Logger
}

// NewBuilder creates a Builder that tags chunks using the given themes.
func NewBuilder(embedder TextEmbedder, themes retrieval.ThemeSet) *Builder {
	return &Builder{
		embedder: embedder,
		themes:   themes,
		logger:   slog.Default(),
	}
}

// Build reads every supported document under srcDir, chunks and embeds the
// content, and writes the corpus JSON to outPath. It returns the number of
// chunks written.
func (b *Builder) Build(ctx context.Context, srcDir, outPath string) (int, error) {
	docs, err := b.collect(srcDir)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no supported documents found under %s", srcDir)
	}

	var chunks []corpus.Chunk
	for _, doc := range docs {
		docChunks := b.chunkDocument(doc)
		b.logger.Info("document chunked", "source", doc.Source, "chunks", len(docChunks))
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("documents under %s produced no usable chunks", srcDir)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding corpus: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := writeCorpus(outPath, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// document is a fully extracted source file awaiting chunking.
type document struct {
	Source string
	Text   string
}

// collect walks srcDir and extracts plain text from every supported file.
// Files are returned in path order so chunk IDs are assigned deterministically.
func (b *Builder) collect(srcDir string) ([]document, error) {
	var docs []document
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		text, err := extractText(path)
		if err != nil {
			b.logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}
		if text == "" {
			return nil
		}
		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, document{Source: rel, Text: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", srcDir, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

// extractText returns the plain text of a single document, or "" for
// unsupported extensions.
func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".pdf":
		return extractPDF(path)
	default:
		return "", nil
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return sb.String(), nil
}

// chunkDocument splits a document into tagged corpus chunks.
func (b *Builder) chunkDocument(doc document) []corpus.Chunk {
	kindTag := documentKind(doc.Source)

	var chunks []corpus.Chunk
	for _, para := range splitParagraphs(doc.Text) {
		for _, piece := range splitOversized(para) {
			if len([]rune(piece)) < minChunkRunes {
				continue
			}
			chunks = append(chunks, corpus.Chunk{
				ID:      uuid.NewString(),
				Content: piece,
				Source:  doc.Source,
				Tags:    chunkTags(piece, kindTag, b.themes),
			})
		}
	}
	return chunks
}

// documentKind classifies a source file as statute or practice material
// based on its filename.
func documentKind(source string) string {
	lowered := strings.ToLower(source)
	for _, marker := range statuteMarkers {
		if strings.Contains(lowered, marker) {
			return retrieval.TagStatute
		}
	}
	return retrieval.TagPractice
}

// chunkTags combines the document kind with themes detected in the text.
func chunkTags(text, kindTag string, themes retrieval.ThemeSet) []string {
	tags := []string{kindTag}
	tags = append(tags, themes.Detect(strings.ToLower(text))...)
	return tags
}

// splitParagraphs breaks text on blank lines, normalizing whitespace
// within each paragraph.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, block := range strings.Split(normalized, "\n\n") {
		para := strings.Join(strings.Fields(block), " ")
		if para != "" {
			paras = append(paras, para)
		}
	}
	return paras
}

// splitOversized breaks a paragraph longer than maxChunkRunes into
// sentence-aligned pieces that each fit the limit. Sentences that alone
// exceed the limit are kept whole.
func splitOversized(para string) []string {
	if len([]rune(para)) <= maxChunkRunes {
		return []string{para}
	}

	var pieces []string
	var current strings.Builder
	currentRunes := 0
	for _, sentence := range splitSentences(para) {
		n := len([]rune(sentence))
		if currentRunes > 0 && currentRunes+n+1 > maxChunkRunes {
			pieces = append(pieces, current.String())
			current.Reset()
			currentRunes = 0
		}
		if currentRunes > 0 {
			current.WriteByte(' ')
			currentRunes++
		}
		current.WriteString(sentence)
		currentRunes += n
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// splitSentences splits on terminal punctuation, keeping the punctuation
// attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' && r != '…' {
			continue
		}
		if i+1 < len(runes) {
			next := runes[i+1]
			if next == '.' || next == '!' || next == '?' || next == '…' {
				continue
			}
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func writeCorpus(outPath string, chunks []corpus.Chunk) error {
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating corpus directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding corpus: %w", err)
	}
	tmp := outPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing corpus: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		return fmt.Errorf("replacing corpus file: %w", err)
	}
	return nil
}
