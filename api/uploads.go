package api

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/rtledger/rtledger"
)

const maxUploadSize = 20 << 20

// readUpload reads the "file" part of a multipart form and the optional "mapping" field,
// a JSON object from field name to column header.
func readUpload(c *gin.Context) (string, []byte, rtledger.ColumnMapping, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, nil, errors.New("a file is required in the \"file\" form field")
	}
	if header.Size > maxUploadSize {
		return "", nil, nil, errors.New("file is too large")
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, nil, err
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return "", nil, nil, err
	}

	var mapping rtledger.ColumnMapping
	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return "", nil, nil, errors.New("mapping must be a JSON object of field to column")
		}
	}
	return header.Filename, content, mapping, nil
}
