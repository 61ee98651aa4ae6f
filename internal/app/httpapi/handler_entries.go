package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/services/timelines"
	"github.com/nodevault/custody-service/internal/app/timeline"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/internal/middleware"
)

// entryHandler serves one timeline entry kind. The shared routes, query
// handling and error mapping live here; only the request decoding differs
// per kind.
type entryHandler[E timeline.Entry] struct {
	svc    *timelines.Service[E]
	prefix string

	// decodeCreate builds a new entry from the request body.
	decodeCreate func(r *http.Request) (E, error)
	// decodeUpdate applies the request body onto the stored entry.
	decodeUpdate func(existing E, r *http.Request) (E, error)
}

func (h *entryHandler[E]) register(r *mux.Router) {
	r.HandleFunc(h.prefix, h.create).Methods(http.MethodPost)
	r.HandleFunc(h.prefix, h.list).Methods(http.MethodGet)
	r.HandleFunc(h.prefix+"/current", h.current).Methods(http.MethodGet)
	r.HandleFunc(h.prefix+"/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc(h.prefix+"/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc(h.prefix+"/{id}", h.delete).Methods(http.MethodDelete)
}

func (h *entryHandler[E]) create(w http.ResponseWriter, r *http.Request) {
	entry, err := h.decodeCreate(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	created, err := h.svc.Create(r.Context(), middleware.UserID(r.Context()), entry)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *entryHandler[E]) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "serverNodeId")
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	page, paged, err := queryInt(r, "page")
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	perPage, perPaged, err := queryInt(r, "perPage")
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	// An explicit page=0 is a bad request, not an unpaginated listing.
	if (paged || perPaged) && (page <= 0 || perPage <= 0) {
		httputil.RespondError(w, apperr.InvalidArgument("page and perPage must be positive integers"))
		return
	}
	entries, err := h.svc.List(r.Context(), middleware.UserID(r.Context()), ownerID, page, perPage)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// current projects the entry in effect for a node. An "at" timestamp
// defaults to now; responses for instants without an entry are 404.
func (h *entryHandler[E]) current(w http.ResponseWriter, r *http.Request) {
	ownerID, err := queryID(r, "serverNodeId")
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if ownerID == 0 {
		httputil.RespondError(w, apperr.InvalidArgument("serverNodeId is required"))
		return
	}
	at := time.Now().UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondError(w, apperr.InvalidArgument("at must be an RFC 3339 timestamp"))
			return
		}
		at = parsed
	}
	entry, found, err := h.svc.CurrentAt(r.Context(), middleware.UserID(r.Context()), ownerID, at)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if !found {
		httputil.RespondError(w, apperr.NotFound("no entry in effect at the requested time"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *entryHandler[E]) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	entry, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *entryHandler[E]) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	existing, err := h.svc.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	entry, err := h.decodeUpdate(existing, r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), middleware.UserID(r.Context()), entry)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *entryHandler[E]) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		httputil.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// periodFromRequest builds the effective bounds shared by every entry kind.
// A missing effectiveFrom means "now"; a full-replace update requires it
// explicitly.
func periodFromRequest(from *time.Time, to *time.Time) timeline.Period {
	start := time.Now().UTC()
	if from != nil {
		start = from.UTC()
	}
	return timeline.Period{EffectiveFrom: start, EffectiveTo: normalizeTo(to)}
}

func normalizeTo(to *time.Time) *time.Time {
	if to == nil {
		return nil
	}
	utc := to.UTC()
	return &utc
}
