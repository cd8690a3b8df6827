package ddq

import (
	"context"
	"io"
)

// Assessor port (secondary quality assessment for flagged rows)
type Assessor interface {
	Assess(ctx context.Context, row QuestionRow, finding Finding) (Verdict, error)
}

// Extractor port (reads the filled workbook into ordered triples)
type Extractor interface {
	Extract(ctx context.Context, filled io.Reader, ref *ReferenceSet) ([]QuestionRow, error)
}

// ReferenceSource port (where the model answers come from)
type ReferenceSource interface {
	LoadReference(ctx context.Context) (*ReferenceSet, error)
}

// WorkbookSource port (fetches a stored workbook by key)
type WorkbookSource interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
