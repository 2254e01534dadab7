package guideline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// ReadRecordsFile reads guideline records from a JSON array file or a JSON Lines file.
func ReadRecordsFile(path string) ([]models.GuidelineRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords parses a JSON array of records or one record per line. Records with an
// empty question and answer are rejected so positions stay meaningful.
func ReadRecords(r io.Reader) ([]models.GuidelineRecord, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, err
	}
	var records []models.GuidelineRecord
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, fmt.Errorf("parse records array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var rec models.GuidelineRecord
			if err := json.Unmarshal(text, &rec); err != nil {
				return nil, fmt.Errorf("parse records line %d: %w", line, err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
	}
	for i, rec := range records {
		if strings.TrimSpace(rec.Question) == "" && strings.TrimSpace(rec.Answer) == "" {
			return nil, fmt.Errorf("record %d is empty", i)
		}
	}
	return records, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, fmt.Errorf("records input is empty")
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
