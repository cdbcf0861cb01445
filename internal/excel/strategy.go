package excel

import (
	"context"
)

// Decoder turns raw workbook bytes into named sheets of rows.
type Decoder interface {
	Parse(ctx context.Context, data []byte) (*Workbook, error)
}

var _ Decoder = (*Parser)(nil)
