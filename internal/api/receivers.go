package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ssc-monitor/internal/state"
)

// handleListReceivers returns the snapshot of every receiver with state.
func (s *Server) handleListReceivers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleGetReceiver returns both channels of one receiver.
func (s *Server) handleGetReceiver(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.DeviceSnapshot(chi.URLParam(r, "key"))
	if err != nil {
		s.writeStateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetChannel returns one channel of one receiver.
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Channel(chi.URLParam(r, "key"), parseChannel(r))
	if err != nil {
		s.writeStateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetAttribute returns {attribute: value} for a reported attribute.
// An attribute that has never been reported is 404; a reported empty
// value is returned as "".
func (s *Server) handleGetAttribute(w http.ResponseWriter, r *http.Request) {
	attribute := chi.URLParam(r, "attribute")

	value, err := s.store.Attribute(chi.URLParam(r, "key"), parseChannel(r), attribute)
	if err != nil {
		s.writeStateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{attribute: value})
}

// parseChannel returns the channel number from the URL, or 0 if it is not
// an integer. The store reports 0 as ErrChannelNotFound.
func parseChannel(r *http.Request) int {
	n, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil {
		return 0
	}
	return n
}

// writeStateError maps store lookup errors to HTTP responses.
func (s *Server) writeStateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, state.ErrDeviceNotFound):
		writeNotFound(w, "receiver not found")
	case errors.Is(err, state.ErrChannelNotFound):
		writeNotFound(w, "channel not found")
	case errors.Is(err, state.ErrAttributeNotFound):
		writeNotFound(w, "attribute not found")
	case errors.Is(err, state.ErrAttributeUnknown):
		writeNotFound(w, "attribute not yet reported")
	default:
		s.logger.Error("state lookup failed", "path", r.URL.Path, "error", err)
		writeInternalError(w, "state lookup failed")
	}
}
