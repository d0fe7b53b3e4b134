package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// PdfcpuCompressor rewrites a PDF with pdfcpu's optimizer, without object or
// xref streams.
type PdfcpuCompressor struct{}

func (PdfcpuCompressor) Compress(data []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to optimize pdf: %w", err)
	}
	return out.Bytes(), nil
}
