/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sheet reads uploaded tabular files into rows keyed by header and writes rows
// back out as CSV. Only the first sheet matters: a CSV file or a JSON array of objects.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	MimeCSV  = "text/csv"
	MimeJSON = "application/json"
)

// Table is a parsed sheet. Headers keep the order of the header row.
type Table struct {
	Headers []string
	Rows    []map[string]interface{}
}

// Parse reads content as CSV or JSON depending on the detected file type.
func Parse(filename string, content []byte) (*Table, error) {
	fileType, err := DetectFileType(content, filename)
	if err != nil {
		return nil, err
	}
	switch fileType {
	case MimeCSV:
		return ParseCSV(bytes.NewReader(content))
	case MimeJSON:
		return ParseJSON(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("unsupported file type %q, upload a csv or json file", fileType)
	}
}

// DetectFileType looks at the extension first and falls back to sniffing the content.
func DetectFileType(data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return MimeCSV, nil
	case ".json":
		return MimeJSON, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.New("file is empty")
	}

	switch normalizeMime(http.DetectContentType(data)) {
	case MimeCSV:
		return MimeCSV, nil
	case MimeJSON:
		return MimeJSON, nil
	}
	if json.Valid(bytes.TrimSpace(data)) {
		return MimeJSON, nil
	}
	if looksLikeCSV(data) {
		return MimeCSV, nil
	}
	return "text/plain", nil
}

func normalizeMime(m string) string {
	if m == "" {
		return ""
	}
	base, _, err := mime.ParseMediaType(m)
	if err != nil {
		return m
	}
	return base
}

// looksLikeCSV requires at least two lines with the same number of separators.
func looksLikeCSV(data []byte) bool {
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) < 2 {
		return false
	}
	sep := []byte{byte(detectDelimiter(string(lines[0])))}
	fields := bytes.Count(lines[0], sep)
	if fields == 0 {
		return false
	}
	for _, line := range lines[1:] {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, sep) != fields {
			return false
		}
	}
	return true
}

// detectDelimiter picks ';' when the header uses it more than ','. Spreadsheets exported
// with a comma decimal separator use ';' between columns.
func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// ParseCSV reads a CSV with a header row. Cells stay strings; blank lines are skipped.
func ParseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	firstLine, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrap(err, "error reading csv")
	}
	header, _, _ := strings.Cut(string(firstLine), "\n")
	header = strings.TrimPrefix(header, "\ufeff")

	csvReader := csv.NewReader(br)
	csvReader.Comma = detectDelimiter(header)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true

	headers, err := csvReader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "error reading csv headers")
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	table := &Table{Headers: headers}
	rowNum := 1
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, errors.Wrapf(err, "error reading row %d", rowNum)
		}
		if isBlank(record) {
			continue
		}
		row := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseJSON reads a JSON array of objects. Headers are the union of keys, sorted.
func ParseJSON(r io.Reader) (*Table, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var rows []map[string]interface{}
	if err := decoder.Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "error decoding json rows")
	}

	return &Table{Headers: HeadersOf(rows), Rows: rows}, nil
}

// EncodeCSV writes rows as CSV with the given header order. Missing cells are blank.
func EncodeCSV(headers []string, rows []map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = Cell(row[h])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// HeadersOf returns the sorted union of keys of rows.
func HeadersOf(rows []map[string]interface{}) []string {
	seen := map[string]bool{}
	var headers []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)
	return headers
}

// Cell renders a cell value as text. Whole floats lose their ".0".
func Cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
