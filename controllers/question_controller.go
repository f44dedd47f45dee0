package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/tracer-study/logger"
	"github.com/vnkhanh/tracer-study/services"
)

// QuestionController edits questions, their options and their logic rules.
type QuestionController struct {
	schema *services.SchemaService
	log    *logger.Logger
}

func NewQuestionController(schema *services.SchemaService, log *logger.Logger) *QuestionController {
	return &QuestionController{schema: schema, log: log}
}

// Create adds a question to the section in the path.
func (h *QuestionController) Create(c *gin.Context) {
	sid, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.CreateQuestion(c.Request.Context(), sid, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuestionController) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.QuestionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.UpdateQuestion(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.schema.DeleteQuestion(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type moveReq struct {
	SectionID uint `json:"section_id" binding:"required"`
	Position  int  `json:"position"`
}

func (h *QuestionController) Move(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req moveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.schema.MoveQuestion(c.Request.Context(), id, req.SectionID, req.Position)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionController) CreateOption(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.OptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.schema.CreateOption(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *QuestionController) ReorderOptions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.schema.ReorderOptions(c.Request.Context(), id, req.IDs); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reordered"})
}

func (h *QuestionController) UpdateOption(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.OptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.schema.UpdateOption(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *QuestionController) DeleteOption(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.schema.DeleteOption(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type logicReq struct {
	Rules []services.LogicInput `json:"rules"`
}

func (h *QuestionController) ReplaceLogic(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req logicReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rules, err := h.schema.ReplaceLogic(c.Request.Context(), id, req.Rules)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}
