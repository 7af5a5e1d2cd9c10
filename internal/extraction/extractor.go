package extraction

import (
	"context"
	stderrors "errors"
	"strings"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/types"

	"github.com/google/uuid"
)

// TextSource turns a document into plain text.
type TextSource interface {
	Extract(ctx context.Context, doc types.Document) (string, error)
}

// candidateNamespace scopes candidate IDs derived from document content.
var candidateNamespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9c41-2e5f7d8b9a10")

// CandidateID derives a stable ID from the document name and content.
func CandidateID(doc types.Document) string {
	data := make([]byte, 0, len(doc.Name)+1+len(doc.Data))
	data = append(data, doc.Name...)
	data = append(data, 0)
	data = append(data, doc.Data...)
	return uuid.NewSHA1(candidateNamespace, data).String()
}

// Extractor reads a document, asks the model for structured fields and
// normalizes the result. Without a model it relies on the regex extractors.
type Extractor struct {
	source     TextSource
	model      ai.Completer
	normalizer *Normalizer
	logger     *errors.Logger
}

// NewExtractor creates an extractor. model may be nil.
func NewExtractor(source TextSource, model ai.Completer, logger *errors.Logger) *Extractor {
	return &Extractor{
		source:     source,
		model:      model,
		normalizer: NewNormalizer(),
		logger:     logger,
	}
}

// Extract returns the candidate record of one document. Errors are extraction
// errors for that document only.
func (e *Extractor) Extract(ctx context.Context, doc types.Document) (types.CandidateRecord, error) {
	rawText, err := e.source.Extract(ctx, doc)
	if err != nil {
		return types.CandidateRecord{}, err
	}

	var response string
	if e.model != nil {
		response, err = e.model.Complete(ctx, config.OperationExtract, ai.PromptData{Text: CleanText(rawText)})
		if err != nil {
			e.logger.Warn("Model extraction failed, using pattern extraction",
				"document", doc.Name,
				"error_code", errors.Code(err),
				"error", err.Error())
			response = ""
		}
	}

	rec, err := e.normalizer.Normalize(rawText, response)
	if err != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			appErr.WithContext("document", doc.Name)
		}
		return types.CandidateRecord{}, err
	}
	if response != "" && rec.ExtractionMethod == types.ExtractionRegex {
		e.logger.Warn("Model response unusable, using pattern extraction", "document", doc.Name)
	}

	rec.ID = CandidateID(doc)
	rec.FileName = doc.Name
	rec.RawText = strings.TrimSpace(rawText)
	return rec, nil
}
