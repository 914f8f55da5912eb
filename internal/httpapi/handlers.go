// Package httpapi serves filter building and document finds over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nonibytes/qfilter/qfilter"
	"github.com/nonibytes/qfilter/qfilter/mql"
	qerrors "github.com/nonibytes/qfilter/qfilter/errors"
	"github.com/nonibytes/qfilter/store"
)

// Reserved query parameters of the documents route. They control paging and
// never become filter clauses.
const (
	ParamLimit   = "_limit"
	ParamAfter   = "_after"
	ParamOrder   = "_order"
	ParamExplain = "_explain"
	ParamTop     = "_top"
)

// Options configures a Handler and the router built from it
type Options struct {
	Logger *slog.Logger
	// Metrics, when non-nil, is updated by every request and served on
	// /metrics.
	Metrics *Metrics
	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables limiting.
	RateLimit int
	RateBurst int
}

// Handler holds the dependencies of the routes. Store may be nil, in which
// case only /filter is served.
type Handler struct {
	builder *qfilter.Builder
	store   *store.Store
	log     *slog.Logger
	opts    Options
}

// NewHandler creates a Handler
func NewHandler(builder *qfilter.Builder, st *store.Store, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{builder: builder, store: st, log: log, opts: opts}
}

// buildQuery builds the filter of a raw query string and counts the result
func (h *Handler) buildQuery(raw string) (mql.Document, error) {
	params, err := h.builder.ParseQuery(raw)
	if err != nil {
		h.opts.Metrics.observeBuild(err)
		return nil, err
	}
	return h.build(params)
}

func (h *Handler) build(params *qfilter.Params) (mql.Document, error) {
	filter, err := h.builder.Build(params, nil)
	h.opts.Metrics.observeBuild(err)
	return filter, err
}

// writeError maps error kinds onto status codes. Client kinds carry their
// message; anything else is logged and reported as an internal error.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case qerrors.IsKind(err, qerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case qerrors.IsClient(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Filter returns the filter document built from the request query string
func (h *Handler) Filter(c *gin.Context) {
	filter, err := h.buildQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, filter)
}

// collection resolves :name, writing the error response on failure
func (h *Handler) collection(c *gin.Context) (*store.Collection, bool) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document store not configured"})
		return nil, false
	}
	coll, err := h.store.Collection(c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return coll, true
}

// ListCollections lists the non-empty collections
func (h *Handler) ListCollections(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "document store not configured"})
		return
	}
	infos, err := h.store.Collections(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, infos)
}

// takeFindOptions removes the reserved parameters from params and returns
// the find options they describe.
func takeFindOptions(params *qfilter.Params) (store.FindOptions, error) {
	var fo store.FindOptions
	if v, ok := params.Get(ParamLimit); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fo, qerrors.New(qerrors.ErrValueParse, "invalid "+ParamLimit+": "+v)
		}
		fo.Limit = n
	}
	if v, ok := params.Get(ParamAfter); ok {
		fo.After = v
	}
	if v, ok := params.Get(ParamOrder); ok {
		fo.Order = store.Order(v)
	}
	if v, ok := params.Get(ParamExplain); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fo, qerrors.New(qerrors.ErrValueParse, "invalid "+ParamExplain+": "+v)
		}
		fo.Explain = b
	}
	for _, k := range []string{ParamLimit, ParamAfter, ParamOrder, ParamExplain} {
		params.Del(k)
	}
	return fo, nil
}

// FindDocuments runs the filter built from the query string over a
// collection and returns one page
func (h *Handler) FindDocuments(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	params, err := h.builder.ParseQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	fo, err := takeFindOptions(params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	filter, err := h.build(params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := coll.Find(c.Request.Context(), filter, fo)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CountDocuments counts the documents matching the query string
func (h *Handler) CountDocuments(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	filter, err := h.buildQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	n, err := coll.Count(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// GetDocument returns one document by id
func (h *Handler) GetDocument(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	doc, err := coll.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateDocument stores the JSON object in the request body under a new
// random id
func (h *Handler) CreateDocument(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := uuid.NewString()
	if err := coll.PutJSON(c.Request.Context(), id, body); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// PutDocument stores the JSON object in the request body under :id
func (h *Handler) PutDocument(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id := c.Param("id")
	if err := coll.PutJSON(c.Request.Context(), id, body); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteDocument removes one document by id
func (h *Handler) DeleteDocument(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	id := c.Param("id")
	deleted, err := coll.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		h.writeError(c, qerrors.NotFoundError(id))
		return
	}
	c.Status(http.StatusNoContent)
}

// DiscoverFields lists the top-level fields of the documents matching the
// query string
func (h *Handler) DiscoverFields(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	filter, err := h.buildQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	fields, err := coll.DiscoverFields(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

// DiscoverValues lists the most frequent values of :field among the
// documents matching the query string. _top sets how many.
func (h *Handler) DiscoverValues(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	params, err := h.builder.ParseQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	top := 0
	if v, ok := params.Get(ParamTop); ok {
		if top, err = strconv.Atoi(v); err != nil {
			h.writeError(c, qerrors.New(qerrors.ErrValueParse, "invalid "+ParamTop+": "+v))
			return
		}
		params.Del(ParamTop)
	}
	filter, err := h.build(params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	values, err := coll.DiscoverValues(c.Request.Context(), c.Param("field"), filter, top)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// FieldStats summarizes the numeric values of :field among the documents
// matching the query string
func (h *Handler) FieldStats(c *gin.Context) {
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	filter, err := h.buildQuery(c.Request.URL.RawQuery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	stats, err := coll.Stats(c.Request.Context(), c.Param("field"), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
