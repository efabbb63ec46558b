package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxFormBytes bounds a survey submission body.
const maxFormBytes = 64 << 10

var errBodyTooLarge = errors.New("request body too large")

// ParseSubmission reads the urlencoded or multipart body of a survey
// submission. Control characters are stripped from every value.
func ParseSubmission(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, err
	}
	form := make(url.Values, len(r.PostForm))
	for key, values := range r.PostForm {
		for _, v := range values {
			form.Add(key, sanitizeInput(v))
		}
	}
	return form, nil
}

// WantsJSON reports whether the client prefers a JSON response.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// QueryBool reads a boolean query parameter; absent or malformed is false.
func QueryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
