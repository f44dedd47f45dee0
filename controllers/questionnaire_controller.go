package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/middleware"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/services"
)

// QuestionnaireController serves the authoring API for questionnaires.
type QuestionnaireController struct {
	schema *services.SchemaService
	log    *logger.Logger
}

func NewQuestionnaireController(schema *services.SchemaService, log *logger.Logger) *QuestionnaireController {
	return &QuestionnaireController{schema: schema, log: log}
}

func (h *QuestionnaireController) Create(c *gin.Context) {
	var in services.QuestionnaireInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.CreateQuestionnaire(c.Request.Context(), middleware.CurrentUser(c).ID, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuestionnaireController) List(c *gin.Context) {
	f := services.QuestionnaireFilter{
		Status: models.QuestionnaireStatus(c.Query("status")),
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	if v, err := strconv.ParseBool(c.Query("template")); err == nil {
		f.Template = &v
	}
	list, total, err := h.schema.ListQuestionnaires(c.Request.Context(), middleware.CurrentUser(c).ID, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": f.Page, "limit": f.Limit})
}

func (h *QuestionnaireController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := h.schema.Structure(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionnaireController) Tree(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tree, err := h.schema.Tree(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *QuestionnaireController) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.QuestionnaireInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.UpdateQuestionnaire(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionnaireController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.schema.DeleteQuestionnaire(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type statusReq struct {
	Status models.QuestionnaireStatus `json:"status" binding:"required"`
}

func (h *QuestionnaireController) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionnaireController) Clone(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := h.schema.Clone(c.Request.Context(), id, middleware.CurrentUser(c).ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

type reorderReq struct {
	IDs []uint `json:"ids" binding:"required"`
}

func (h *QuestionnaireController) ReorderSections(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.schema.ReorderSections(c.Request.Context(), id, req.IDs); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reordered"})
}

type slugReq struct {
	Title string `json:"title"`
}

// GenerateSlug previews the slug a title would get, or a random code when
// the title is empty.
func (h *QuestionnaireController) GenerateSlug(c *gin.Context) {
	var req slugReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var (
		slug string
		err  error
	)
	if req.Title == "" {
		slug, err = h.schema.GenerateUniqueCode(c.Request.Context())
	} else {
		slug, err = h.schema.GenerateSlug(c.Request.Context(), req.Title)
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": slug})
}

// Sections

func (h *QuestionnaireController) CreateSection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.SectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sec, err := h.schema.CreateSection(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, sec)
}

func (h *QuestionnaireController) UpdateSection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.SectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sec, err := h.schema.UpdateSection(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (h *QuestionnaireController) DeleteSection(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.schema.DeleteSection(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *QuestionnaireController) ReorderQuestions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.schema.ReorderQuestions(c.Request.Context(), id, req.IDs); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reordered"})
}
