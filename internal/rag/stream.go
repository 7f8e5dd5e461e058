package rag

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// emitter turns generation fragments into a chunked text/plain HTTP
// stream. Each fragment is flushed as soon as it arrives.
type emitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

func newEmitter(w http.ResponseWriter) *emitter {
	flusher, _ := w.(http.Flusher)
	return &emitter{w: w, flusher: flusher}
}

func (e *emitter) emit(fragment string) error {
	if fragment == "" {
		return nil
	}
	e.wrote = true
	if _, err := e.w.Write([]byte(fragment)); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// fail surfaces an upstream stream error. Before the first byte it is a
// plain 500; after partial content the connection is aborted so the
// client sees a broken stream rather than a clean end.
func (e *emitter) fail(err error) {
	log.Error().Err(err).Bool("partial", e.wrote).Msg("Generation stream failed")
	if !e.wrote {
		http.Error(e.w, "generation failed", http.StatusInternalServerError)
		return
	}
	panic(http.ErrAbortHandler)
}

// trailer appends the out-of-band video ID marker after the last
// content fragment. Summary path only.
func (e *emitter) trailer(videoID string) error {
	return e.emit("\n__VIDEO_ID__:" + videoID)
}
