package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"docsearch/internal/db"
	"docsearch/internal/models"
	"docsearch/internal/utils"
)

// DocumentStore defines the document index operations the processor needs
type DocumentStore interface {
	Index(ctx context.Context, index, id string, doc map[string]interface{}, refresh bool) error
	Exists(ctx context.Context, index, id string) (bool, error)
	Delete(ctx context.Context, index, id string, refresh bool) error
	Bulk(ctx context.Context, ops []db.BulkOperation, refresh bool) (*db.BulkResult, error)
	OpenScroll(ctx context.Context, index string, sourceFields []string, size int, keepAlive string) (*db.ScrollPage, error)
	ContinueScroll(ctx context.Context, scrollID, keepAlive string) (*db.ScrollPage, error)
	ClearScroll(ctx context.Context, scrollID string) error
	Refresh(ctx context.Context, index string) error
	ForceMerge(ctx context.Context, index string) error
	Flush(ctx context.Context, index string) error
}

const (
	// DefaultIndexName is the document index written to unless a job names one.
	DefaultIndexName = "ds_content"

	defaultBatchSize  = 100
	interBatchDelay   = 100 * time.Millisecond
	scrollKeepAlive   = "5m"
	maxReportedFailed = 10
	keywordsPerDoc    = 10
)

var (
	defaultIncludePatterns = []string{"*.pdf", "*.doc", "*.docx", "*.txt", "*.html", "*.htm"}
	defaultExcludePatterns = []string{".*", "*~", "*.tmp", "*.temp"}
)

// DocumentProcessor implements the batch job executors: single and bulk
// document indexing, index maintenance, and vector regeneration.
type DocumentProcessor struct {
	store     DocumentStore
	embedder  Embedder
	extractor *utils.TextExtractor
	keywords  *KeywordExtractor
	logger    Logger
	index     string
}

// NewDocumentProcessor creates a document processor writing to the given
// index. An empty index falls back to DefaultIndexName.
func NewDocumentProcessor(store DocumentStore, embedder Embedder, logger Logger, index string) *DocumentProcessor {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	if index == "" {
		index = DefaultIndexName
	}
	return &DocumentProcessor{
		store:     store,
		embedder:  embedder,
		extractor: utils.NewTextExtractor(),
		keywords:  NewKeywordExtractor(),
		logger:    logger,
		index:     index,
	}
}

// Index returns the index documents are written to by default
func (p *DocumentProcessor) Index() string {
	return p.index
}

// IndexDocument indexes a single file into the document store
func (p *DocumentProcessor) IndexDocument(ctx context.Context, params models.DocumentIndexParams) (map[string]interface{}, error) {
	if params.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}
	if !utils.FileExists(params.FilePath) {
		return nil, fmt.Errorf("file not found: %s", params.FilePath)
	}

	index := params.IndexName
	if index == "" {
		index = p.index
	}

	docID := params.DocumentID
	if docID == "" {
		docID = utils.DocumentID(params.FilePath)
	}

	info, err := utils.Stat(params.FilePath)
	if err != nil {
		return nil, err
	}

	text, err := p.extractor.Extract(ctx, params.FilePath)
	if err != nil {
		p.logger.Warn("Text extraction failed for %s: %v", params.FilePath, err)
		text = ""
	}
	if text == "" {
		p.logger.Warn("No text extracted from %s, indexing metadata only", params.FilePath)
	}

	category := params.Category
	if category == "" {
		category = filepath.Base(filepath.Dir(params.FilePath))
	}

	now := time.Now().UTC()
	indexedAt := now.Format(time.RFC3339)
	modified := time.Unix(info.Modified, 0).UTC().Format(time.RFC3339)

	doc := make(map[string]interface{})
	for k, v := range params.Metadata {
		doc[k] = v
	}
	doc["id"] = docID
	doc["title"] = info.Name
	doc["filename"] = info.Filename
	doc["text"] = text
	doc["file_path"] = params.FilePath
	doc["file_size"] = info.Size
	doc["file_type"] = info.Type
	doc["mime_type"] = info.MimeType
	doc["category"] = category
	doc["created_date"] = modified
	doc["modified_date"] = modified
	doc["indexed_date"] = indexedAt

	if text != "" {
		if kw, err := p.keywords.TopKeywords(text, keywordsPerDoc); err != nil {
			p.logger.Warn("Keyword extraction failed for %s: %v", params.FilePath, err)
		} else if len(kw) > 0 {
			doc["keywords"] = kw
		}
	}

	hasVector := false
	if params.ShouldGenerateVector() && text != "" {
		vector, err := p.embedder.Embed(ctx, text)
		if err != nil {
			// A missing vector degrades search quality but is not fatal
			p.logger.Warn("Embedding failed for %s: %v", params.FilePath, err)
		} else if len(vector) > 0 {
			doc["vector"] = vector
			doc["vector_updated_at"] = indexedAt
			hasVector = true
		}
	}

	if err := p.store.Index(ctx, index, docID, doc, true); err != nil {
		return nil, fmt.Errorf("failed to index document: %w", err)
	}

	return map[string]interface{}{
		"document_id": docID,
		"indexed_at":  indexedAt,
		"file_size":   info.Size,
		"has_vector":  hasVector,
	}, nil
}

// BulkIndex walks a directory tree and indexes every matching file.
// Individual file failures are tolerated and reported; progress is
// pushed through report after every batch.
func (p *DocumentProcessor) BulkIndex(ctx context.Context, params models.BulkIndexParams, report ProgressFunc) (map[string]interface{}, error) {
	if params.SourcePath == "" {
		return nil, fmt.Errorf("source_path is required")
	}

	index := params.IndexName
	if index == "" {
		index = p.index
	}

	include := params.IncludePatterns
	if len(include) == 0 {
		include = defaultIncludePatterns
	}
	exclude := params.ExcludePatterns
	if len(exclude) == 0 {
		exclude = defaultExcludePatterns
	}

	files, err := utils.FindFiles(params.SourcePath, include, exclude)
	if err != nil {
		return nil, err
	}

	total := len(files)
	if total == 0 {
		p.logger.Info("Bulk index found no matching files under %s", params.SourcePath)
		return map[string]interface{}{
			"total_files":     0,
			"processed_count": 0,
			"failed_count":    0,
			"skipped_count":   0,
			"failed_files":    []string{},
		}, nil
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	p.logger.Info("Bulk indexing %d files from %s into %s", total, params.SourcePath, index)

	var processed, failed, skipped int
	var failedFiles []string

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}

		for _, file := range files[start:end] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			docID := utils.DocumentID(file)

			if !params.OverwriteExisting {
				exists, err := p.store.Exists(ctx, index, docID)
				if err != nil {
					p.logger.Warn("Existence check failed for %s: %v", file, err)
					failed++
					failedFiles = append(failedFiles, file)
					continue
				}
				if exists {
					skipped++
					continue
				}
			}

			_, err := p.IndexDocument(ctx, models.DocumentIndexParams{
				FilePath:       file,
				DocumentID:     docID,
				GenerateVector: params.GenerateVectors,
				IndexName:      index,
			})
			if err != nil {
				p.logger.Warn("Failed to index %s: %v", file, err)
				failed++
				failedFiles = append(failedFiles, file)
				continue
			}
			processed++
		}

		percent := (processed + failed + skipped) * 100 / total
		if report != nil {
			report(percent, fmt.Sprintf("Indexed %d/%d files", processed+failed+skipped, total))
		}

		// Brief pause between batches keeps the store responsive and
		// gives cancellation a guaranteed observation point
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interBatchDelay):
		}
	}

	if err := p.store.Refresh(ctx, index); err != nil {
		p.logger.Warn("Refresh after bulk index failed: %v", err)
	}

	if len(failedFiles) > maxReportedFailed {
		failedFiles = failedFiles[:maxReportedFailed]
	}
	if failedFiles == nil {
		failedFiles = []string{}
	}

	p.logger.Info("Bulk index finished: %d indexed, %d failed, %d skipped", processed, failed, skipped)

	return map[string]interface{}{
		"total_files":     total,
		"processed_count": processed,
		"failed_count":    failed,
		"skipped_count":   skipped,
		"failed_files":    failedFiles,
	}, nil
}

// RunMaintenance applies maintenance operations to each named index
func (p *DocumentProcessor) RunMaintenance(ctx context.Context, params models.IndexMaintenanceParams) (map[string]interface{}, error) {
	indices := params.IndexNames
	if len(indices) == 0 {
		indices = []string{p.index}
	}
	operations := params.Operations
	if len(operations) == 0 {
		operations = []string{"optimize", "refresh"}
	}

	results := make(map[string]interface{}, len(indices))
	for _, index := range indices {
		opResults := make(map[string]interface{}, len(operations))
		for _, op := range operations {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			var err error
			switch op {
			case "refresh":
				err = p.store.Refresh(ctx, index)
			case "optimize", "forcemerge":
				err = p.store.ForceMerge(ctx, index)
			case "flush":
				err = p.store.Flush(ctx, index)
			default:
				p.logger.Warn("Unknown maintenance operation %q for index %s", op, index)
				opResults[op] = false
				continue
			}

			if err != nil {
				p.logger.Warn("Maintenance %s on %s failed: %v", op, index, err)
				opResults[op] = false
			} else {
				opResults[op] = true
			}
		}
		results[index] = opResults
	}

	return map[string]interface{}{"results": results}, nil
}

// RegenerateVectors walks the index with a scroll and re-embeds every
// document, writing vectors back in bulk batches
func (p *DocumentProcessor) RegenerateVectors(ctx context.Context, params models.VectorGenerationParams, report ProgressFunc) (map[string]interface{}, error) {
	index := params.IndexName
	if index == "" {
		index = p.index
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	page, err := p.store.OpenScroll(ctx, index, []string{"text", "title"}, batchSize, scrollKeepAlive)
	if err != nil {
		return nil, fmt.Errorf("failed to open scroll: %w", err)
	}
	scrollID := page.ScrollID
	defer func() {
		if scrollID != "" {
			if err := p.store.ClearScroll(context.Background(), scrollID); err != nil {
				p.logger.Warn("Failed to clear scroll: %v", err)
			}
		}
	}()

	total := page.Total
	p.logger.Info("Regenerating vectors for %d documents in %s", total, index)

	var processed, failed int
	for len(page.Hits) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updatedAt := time.Now().UTC().Format(time.RFC3339)

		var ids []string
		var texts []string
		for _, hit := range page.Hits {
			text, _ := hit.Source["text"].(string)
			if strings.TrimSpace(text) == "" {
				text, _ = hit.Source["title"].(string)
			}
			if strings.TrimSpace(text) == "" {
				failed++
				continue
			}
			ids = append(ids, hit.ID)
			texts = append(texts, text)
		}

		var ops []db.BulkOperation
		if len(texts) > 0 {
			vectors, err := p.embedder.EmbedBatch(ctx, texts)
			if err != nil || len(vectors) != len(ids) {
				if err == nil {
					err = fmt.Errorf("got %d vectors for %d documents", len(vectors), len(ids))
				}
				p.logger.Warn("Batch embedding failed for %d documents: %v", len(ids), err)
				failed += len(ids)
			} else {
				for i, id := range ids {
					ops = append(ops, db.BulkOperation{
						Action: db.BulkActionUpdate,
						Index:  index,
						ID:     id,
						Doc: map[string]interface{}{
							"vector":            vectors[i],
							"vector_updated_at": updatedAt,
						},
					})
				}
			}
		}

		if len(ops) > 0 {
			if _, err := p.store.Bulk(ctx, ops, true); err != nil {
				p.logger.Warn("Bulk vector update failed for %d documents: %v", len(ops), err)
				failed += len(ops)
			} else {
				processed += len(ops)
			}
		}

		if report != nil && total > 0 {
			percent := (processed + failed) * 100 / total
			report(percent, fmt.Sprintf("Regenerated vectors for %d/%d documents", processed+failed, total))
		}

		page, err = p.store.ContinueScroll(ctx, scrollID, scrollKeepAlive)
		if err != nil {
			return nil, fmt.Errorf("failed to continue scroll: %w", err)
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}

	p.logger.Info("Vector regeneration finished: %d updated, %d failed", processed, failed)

	return map[string]interface{}{
		"processed_count": processed,
		"failed_count":    failed,
		"index_name":      index,
	}, nil
}

// DeleteDocument removes a document from the store by id
func (p *DocumentProcessor) DeleteDocument(ctx context.Context, index, docID string) error {
	if index == "" {
		index = p.index
	}
	return p.store.Delete(ctx, index, docID, true)
}
