package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"

	"github.com/adamwoolhether/xfer/result"
)

// performFile serves file:// URLs. With a read callback the file is
// written (upload), otherwise it is read into the write callback.
func (e *Easy) performFile(ctx context.Context, u *url.URL, cb IO) result.Code {
	if u.Host != "" && u.Host != "localhost" {
		return e.fail(result.CodeURLMalformat, fmt.Sprintf("file URL with remote host %q", u.Host))
	}

	path := u.Path
	if path == "" {
		return e.fail(result.CodeURLMalformat, "file URL without a path")
	}

	if cb.Read != nil {
		return e.uploadFile(ctx, path, cb)
	}

	f, err := os.Open(path)
	if err != nil {
		return e.fail(fileCode(err), err.Error())
	}
	defer f.Close()

	if e.NoBody {
		return result.CodeOK
	}

	n, err := deliver(&contextReader{ctx: ctx, r: f}, cb.Write)
	e.Info.Downloaded = n
	if err != nil {
		switch {
		case errors.Is(err, errWriteAborted):
			return e.fail(result.CodeWriteError, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return e.fail(result.CodeOperationTimedOut, err.Error())
		case errors.Is(err, context.Canceled):
			return e.fail(result.CodeAbortedByCallback, err.Error())
		default:
			return e.fail(result.CodeFileCouldntReadFile, err.Error())
		}
	}

	return result.CodeOK
}

func (e *Easy) uploadFile(ctx context.Context, path string, cb IO) result.Code {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return e.fail(fileCode(err), err.Error())
	}

	src := &callbackReader{read: cb.Read}
	_, err = io.Copy(f, &contextReader{ctx: ctx, r: src})
	sent, serr := src.state()
	e.Info.Uploaded = sent

	if cerr := f.Close(); err == nil && cerr != nil {
		return e.fail(result.CodeWriteError, cerr.Error())
	}
	if err != nil {
		switch {
		case serr != nil:
			return e.fail(classifyUpload(serr), serr.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return e.fail(result.CodeOperationTimedOut, err.Error())
		case errors.Is(err, context.Canceled):
			return e.fail(result.CodeAbortedByCallback, err.Error())
		default:
			return e.fail(result.CodeUploadFailed, err.Error())
		}
	}

	if cb.ReadLen >= 0 && sent != cb.ReadLen {
		return e.fail(result.CodeUploadFailed, fmt.Sprintf("upload sent %d of %d declared bytes", sent, cb.ReadLen))
	}

	return result.CodeOK
}

func fileCode(err error) result.Code {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return result.CodeRemoteAccessDenied
	case errors.Is(err, fs.ErrNotExist):
		return result.CodeRemoteFileNotFound
	default:
		return result.CodeFileCouldntReadFile
	}
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
