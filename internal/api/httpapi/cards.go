package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/BearBump/VaultTrack/internal/fingerprint"
)

const maxImageBody = 10 << 20

type fingerprintResponse struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Bits        int                     `json:"bits"`
}

func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fp, err := fingerprint.HashBytes(img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fingerprintResponse{Fingerprint: fp, Bits: fingerprint.Bits})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Matcher == nil {
		writeError(w, r, errUnavailable)
		return
	}
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Matcher.Identify(r.Context(), img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// readImage takes the "image" part of a multipart form, or the raw body.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBody)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, badRequest("multipart field \"image\" is required")
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, badRequest("read image: " + err.Error())
		}
		return b, nil
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, badRequest("read image: " + err.Error())
	}
	if len(b) == 0 {
		return nil, badRequest("image body is empty")
	}
	return b, nil
}
