package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/services"
)

// ResponseController serves the public fill flow and the owner's view of
// collected responses.
type ResponseController struct {
	schema    *services.SchemaService
	responses *services.ResponseService
	reports   *services.ReportService
	log       *logger.Logger
	now       func() time.Time
}

func NewResponseController(schema *services.SchemaService, responses *services.ResponseService, reports *services.ReportService, log *logger.Logger) *ResponseController {
	return &ResponseController{schema: schema, responses: responses, reports: reports, log: log, now: time.Now}
}

// PublicForm returns the snapshot of a published questionnaire by slug.
func (h *ResponseController) PublicForm(c *gin.Context) {
	q, err := h.schema.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if q.Status == models.StatusDraft {
		c.JSON(http.StatusNotFound, gin.H{"message": "questionnaire: not found"})
		return
	}
	tree, err := h.schema.Tree(c.Request.Context(), q.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionnaire": tree, "active": q.IsActive(h.now())})
}

type startReq struct {
	RespondentIdentifier string `json:"respondent_identifier"`
	RespondentName       string `json:"respondent_name"`
	RespondentEmail      string `json:"respondent_email"`
}

// Start resumes the caller's in-progress response or opens a new one.
func (h *ResponseController) Start(c *gin.Context) {
	var req startReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	m := meta(c)
	if req.RespondentName != "" {
		m.Name = req.RespondentName
	}
	if req.RespondentEmail != "" {
		m.Email = req.RespondentEmail
	}
	r, created, err := h.responses.FindOrCreate(c.Request.Context(), q.ID, req.RespondentIdentifier, m)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"response": r, "created": created})
}

type answerReq struct {
	Value json.RawMessage `json:"value"`
}

func (h *ResponseController) SaveAnswer(c *gin.Context) {
	rid, ok := paramID(c, "id")
	if !ok {
		return
	}
	qid, ok := paramID(c, "question_id")
	if !ok {
		return
	}
	var req answerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.responses.SaveAnswer(c.Request.Context(), rid, qid, req.Value)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ResponseController) Complete(c *gin.Context) {
	rid, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, err := h.responses.Complete(c.Request.Context(), rid)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// Submit answers and completes a response in one request.
func (h *ResponseController) Submit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if slug := c.Param("slug"); slug != "" {
		req.Slug = slug
	}
	r, err := h.responses.Submit(c.Request.Context(), req, meta(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func responseFilter(c *gin.Context) (services.ResponseFilter, bool) {
	f := services.ResponseFilter{
		CompletedOnly: c.Query("completed") == "true",
		Page:          queryInt(c, "page", 1),
		Limit:         queryInt(c, "limit", 20),
	}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": name + " must be an RFC 3339 time"})
			return f, false
		}
		*dst = &t
	}
	return f, true
}

func (h *ResponseController) List(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, ok := responseFilter(c)
	if !ok {
		return
	}
	list, total, err := h.responses.ListResponses(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": f.Page, "limit": f.Limit})
}

// Get returns one response of the questionnaire in the path.
func (h *ResponseController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rid, ok := paramID(c, "response_id")
	if !ok {
		return
	}
	r, err := h.responses.GetResponse(c.Request.Context(), rid)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if r.QuestionnaireID != id {
		c.JSON(http.StatusNotFound, gin.H{"message": "response: not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *ResponseController) Statistics(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	st, err := h.responses.Statistics(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Summaries returns the per-question statistics the exports are built from.
func (h *ResponseController) Summaries(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, ok := responseFilter(c)
	if !ok {
		return
	}
	sums, err := h.reports.Summaries(c.Request.Context(), id, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": sums})
}
