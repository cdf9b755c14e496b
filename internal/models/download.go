package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Progress reports download state to the UI event stream.
type Progress struct {
	Percent      float64
	DownloadedMB float64
	TotalMB      float64
}

// Download fetches the named model into the cache directory, streaming
// progress to onProgress (which may be nil). The file is written to a temp
// path and renamed into place so an interrupted download never leaves a
// half-written model. A model already present is a no-op.
func (c *Catalog) Download(ctx context.Context, name string, onProgress func(Progress)) error {
	d, err := c.Get(name)
	if err != nil {
		return err
	}

	if info, statErr := os.Stat(d.Path); statErr == nil && info.Size() > 0 {
		c.markPresent(name)
		return nil
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("models: creating cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("models: building request for %s: %w", name, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("models: downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("models: downloading %s: HTTP %d", name, resp.StatusCode)
	}

	tmp := d.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("models: creating %s: %w", tmp, err)
	}

	pw := &progressWriter{writer: f, total: resp.ContentLength, onProgress: onProgress}
	_, err = io.Copy(pw, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("models: writing %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("models: closing %s: %w", tmp, closeErr)
	}

	if err := os.Rename(tmp, d.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("models: moving %s into place: %w", name, err)
	}

	c.markPresent(name)
	return nil
}

// FileNameFor returns the deterministic cache filename for a logical model
// name, without consulting the catalog.
func FileNameFor(name string) string {
	return "ggml-" + name + ".bin"
}

// PathFor returns the cache path for a logical model name.
func (c *Catalog) PathFor(name string) string {
	return filepath.Join(c.dir, FileNameFor(name))
}

// progressWriter forwards writes and reports cumulative progress.
type progressWriter struct {
	writer     io.Writer
	total      int64
	written    int64
	onProgress func(Progress)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.onProgress != nil {
		prog := Progress{
			DownloadedMB: float64(pw.written) / (1024 * 1024),
			TotalMB:      float64(pw.total) / (1024 * 1024),
		}
		if pw.total > 0 {
			prog.Percent = float64(pw.written) / float64(pw.total) * 100
		}
		pw.onProgress(prog)
	}
	return n, err
}
