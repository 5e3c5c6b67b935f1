package models

// Document is one unit of extracted text: a single PDF page, or a whole
// DOCX/TXT/image file. Text is cleaned and non-empty.
type Document struct {
	SourceID string
	Page     *int
	Text     string
}

// Chunk is the unit of embedding and retrieval. Para is a 1-based sequential
// index within its document.
type Chunk struct {
	DocID string
	Page  *int
	Para  int
	Text  string
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SupportingChunk struct {
	Rank        int     `json:"rank"`
	RerankScore float64 `json:"rerank_score"`
	DocID       string  `json:"doc_id"`
	Page        *int    `json:"page"`
	Para        int     `json:"para"`
	Theme       string  `json:"theme,omitempty"`
	Text        string  `json:"text"`
}

type AskResult struct {
	Answer           string            `json:"answer"`
	SupportingChunks []SupportingChunk `json:"supporting_chunks"`
}

type Citation struct {
	DocID string `json:"doc_id"`
	Page  *int   `json:"page"`
	Para  int    `json:"para"`
}

type ThemeResult struct {
	Name          string     `json:"name"`
	Summary       string     `json:"summary"`
	Citations     []Citation `json:"citations"`
	OriginalLabel string     `json:"original_label"`
}

type IngestFileResult struct {
	Filename        string `json:"filename"`
	ChunksExtracted int    `json:"chunks_extracted"`
}

type BatchIngestResult struct {
	Results              []IngestFileResult `json:"results"`
	TotalChunksExtracted int                `json:"total_chunks_extracted"`
	TotalChunksUpserted  int                `json:"total_chunks_upserted"`
}
