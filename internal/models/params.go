package models

import (
	"encoding/json"
	"fmt"
)

// DocumentIndexParams are the parameters for a document_index job
type DocumentIndexParams struct {
	FilePath       string                 `json:"file_path"`
	DocumentID     string                 `json:"document_id,omitempty"`
	Category       string                 `json:"category,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	GenerateVector *bool                  `json:"generate_vector,omitempty"` // Defaults to true
	IndexName      string                 `json:"index_name,omitempty"`
}

// ShouldGenerateVector reports whether an embedding should be produced
func (p *DocumentIndexParams) ShouldGenerateVector() bool {
	return p.GenerateVector == nil || *p.GenerateVector
}

// BulkIndexParams are the parameters for a bulk_index job
type BulkIndexParams struct {
	SourcePath        string   `json:"source_path"`
	IndexName         string   `json:"index_name,omitempty"`
	BatchSize         int      `json:"batch_size,omitempty"`
	IncludePatterns   []string `json:"include_patterns,omitempty"`
	ExcludePatterns   []string `json:"exclude_patterns,omitempty"`
	OverwriteExisting bool     `json:"overwrite_existing,omitempty"`
	GenerateVectors   *bool    `json:"generate_vectors,omitempty"` // Defaults to true
}

// ShouldGenerateVectors reports whether embeddings should be produced
func (p *BulkIndexParams) ShouldGenerateVectors() bool {
	return p.GenerateVectors == nil || *p.GenerateVectors
}

// IndexMaintenanceParams are the parameters for an index_maintenance job
type IndexMaintenanceParams struct {
	IndexNames []string `json:"index_names,omitempty"`
	Operations []string `json:"operations,omitempty"`
}

// VectorGenerationParams are the parameters for a vector_generation job
type VectorGenerationParams struct {
	IndexName string `json:"index_name,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// DecodeParams converts a job's loosely typed parameters map into a typed
// parameter struct via a JSON roundtrip. Unknown keys are ignored; values of
// the wrong shape are an error.
func DecodeParams(params map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return nil
}
