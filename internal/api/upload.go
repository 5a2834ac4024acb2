package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadCSV posts a prompt file as multipart form data and returns the
// backend's preview: columns, sample rows, and a suggested column mapping to
// confirm before processing.
func (c *Client) UploadCSV(ctx context.Context, projectID uuid.UUID, filename string, file io.Reader) (CSVPreview, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	u := c.baseURL + "/api/csv/upload/" + projectID.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, pr)
	if err != nil {
		return CSVPreview{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return CSVPreview{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("csv upload",
		zap.String("filename", filename),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return CSVPreview{}, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CSVPreview{}, newAPIError(resp.StatusCode, raw)
	}
	var out CSVPreview
	if err := json.Unmarshal(raw, &out); err != nil {
		return CSVPreview{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}
