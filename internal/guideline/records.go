package guideline

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/triage/internal/models"
)

// EncodeRecords serializes records as a gzip-compressed JSON array, preserving order.
func EncodeRecords(records []models.GuidelineRecord) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(records); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress records: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecords decompresses and parses a records blob.
func DecodeRecords(data []byte) ([]models.GuidelineRecord, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress records: %w", err)
	}
	defer zr.Close()
	var records []models.GuidelineRecord
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	// Drain to surface gzip checksum errors.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return nil, fmt.Errorf("decompress records: %w", err)
	}
	return records, nil
}
