package results

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
)

// FileResult streams a file from a file system, such as an embed.FS.
type FileResult struct {
	FS   fs.FS
	Path string
	// ContentType defaults to the type registered for the file extension.
	ContentType string
	// FileDownloadName, when set, sends the file as an attachment.
	FileDownloadName string
}

// NewFileResult creates a FileResult.
func NewFileResult(fsys fs.FS, name, contentType string) *FileResult {
	return &FileResult{FS: fsys, Path: name, ContentType: contentType}
}

// ExecuteResult implements Result. A missing file answers 404.
func (f *FileResult) ExecuteResult(ac *actions.ActionContext) error {
	name := strings.TrimPrefix(path.Clean("/"+f.Path), "/")
	file, err := f.FS.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ac.Response.WriteHeader(http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	ct := f.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
	}
	h := ac.Response.Header()
	h.Set("Content-Type", ct)
	if f.FileDownloadName != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.FileDownloadName}))
	}
	if st, err := file.Stat(); err == nil && !st.IsDir() {
		h.Set("Content-Length", strconv.FormatInt(st.Size(), 10))
	}
	ac.Response.WriteHeader(http.StatusOK)
	_, err = io.Copy(ac.Response, file)
	return err
}
