package audio

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
)

// Container formats the decoder understands.
const (
	formatMP3 = "mp3"
	formatWAV = "wav"
)

// ErrTooLarge is returned when a resource exceeds the download limit.
var ErrTooLarge = errors.New("audio resource too large")

// fetch reads the whole resource at src into memory and returns it together
// with its container format.
func (f *Factory) fetch(ctx context.Context, src string) ([]byte, string, error) {
	u, err := url.Parse(src)
	if err != nil || src == "" {
		return nil, "", errors.Newf("invalid audio url %q", src)
	}

	var (
		body        io.ReadCloser
		contentType string
	)
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to create request")
		}
		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to fetch audio")
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", errors.Newf("audio fetch returned status %d", resp.StatusCode)
		}
		body = resp.Body
		contentType = resp.Header.Get("Content-Type")
	case "file":
		file, err := os.Open(u.Path)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to open audio file")
		}
		body = file
	default:
		return nil, "", errors.Newf("unsupported audio url scheme %q", u.Scheme)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.config.MaxDownloadBytes+1))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read audio")
	}
	if int64(len(data)) > f.config.MaxDownloadBytes {
		return nil, "", errors.Wrapf(ErrTooLarge, "limit %d bytes", f.config.MaxDownloadBytes)
	}

	return data, detectFormat(u.Path, contentType, data), nil
}

// detectFormat picks the container format from the content type, the file
// extension and finally the leading bytes.
func detectFormat(urlPath, contentType string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/mpeg", "audio/mp3":
			return formatMP3
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return formatWAV
		}
	}

	switch strings.ToLower(path.Ext(urlPath)) {
	case ".mp3":
		return formatMP3
	case ".wav", ".wave":
		return formatWAV
	}

	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return formatWAV
	}
	return formatMP3
}
