package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(text string, confidence float32) *visionpb.AnnotateImageResponse {
	return &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text:  text,
			Pages: []*visionpb.Page{{Confidence: confidence}},
		},
	}
}

func TestCollectPages(t *testing.T) {
	t.Run("joins pages with markers", func(t *testing.T) {
		result, err := collectPages([]*visionpb.AnnotateImageResponse{
			page("INVOICE INV-1", 0.9),
			page("Total 236.00", 0.7),
		})
		require.NoError(t, err)

		assert.Equal(t, "INVOICE INV-1\n\n--- Page 2 ---\n\nTotal 236.00", result.Text)
		assert.Equal(t, 2, result.PageCount)
		assert.InDelta(t, 0.8, result.Confidence, 1e-6)
	})

	t.Run("pages without text are skipped", func(t *testing.T) {
		result, err := collectPages([]*visionpb.AnnotateImageResponse{{}, page("only text", 0)})
		require.NoError(t, err)
		assert.Contains(t, result.Text, "only text")
		assert.Zero(t, result.Confidence)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := collectPages(nil)
		assert.ErrorIs(t, err, ErrEmptyDocument)

		_, err = collectPages([]*visionpb.AnnotateImageResponse{page("   ", 0.5)})
		assert.ErrorIs(t, err, ErrEmptyDocument)
	})

	t.Run("too many pages", func(t *testing.T) {
		pages := make([]*visionpb.AnnotateImageResponse, MaxPagesSync+1)
		for i := range pages {
			pages[i] = page("x", 1)
		}
		_, err := collectPages(pages)
		assert.ErrorIs(t, err, ErrTooManyPages)
	})
}

func TestProcessPDFRejectsBeforeCallingVision(t *testing.T) {
	svc := &GoogleVisionOCRService{}

	_, err := svc.ProcessPDF(context.Background(), []byte("PK\x03\x04 not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)

	var ocrErr *OCRError
	require.True(t, errors.As(err, &ocrErr))
	assert.Equal(t, "ProcessPDF", ocrErr.Op)

	_, err = svc.ProcessPDF(context.Background(), make([]byte, MaxFileSizeBytes+1))
	assert.ErrorIs(t, err, ErrPDFTooLarge)
}

func TestWrapOCRError(t *testing.T) {
	assert.Nil(t, WrapOCRError("op", nil, ""))

	inner := &OCRError{Op: "inner", Err: ErrOCRFailed}
	assert.Same(t, inner, WrapOCRError("outer", inner, "details"))

	wrapped := WrapOCRError("op", ErrInvalidPDF, "bad header")
	assert.Equal(t, "ocr: op failed: bad header: invalid or corrupted PDF document", wrapped.Error())
}
