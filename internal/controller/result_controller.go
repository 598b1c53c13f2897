package controller

import (
	"strconv"

	"mocktest_backend/internal/service"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Results *service.ResultService
}

func NewResultController(results *service.ResultService) *ResultController {
	return &ResultController{Results: results}
}

// PresentResult godoc
// @Summary Render a result from a submission handoff
// @Description The score is recomputed; correct, total and unattempted in the request are ignored.
// @Tags Results
// @Accept json
// @Produce json
// @Param request body service.Handoff true "Handoff"
// @Success 200 {object} util.Response{data=service.Presentation}
// @Failure 400 {object} util.Response
// @Router /results [post]
func (ctrl *ResultController) PresentResult(c *gin.Context) {
	var h service.Handoff
	if err := c.ShouldBindJSON(&h); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	p, err := ctrl.Results.Present(c.Request.Context(), h)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, p)
}

// GetAttempt godoc
// @Summary Render a stored attempt
// @Tags Results
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=service.Presentation}
// @Failure 404 {object} util.Response
// @Router /attempts/{id} [get]
func (ctrl *ResultController) GetAttempt(c *gin.Context) {
	p, err := ctrl.Results.PresentAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, p)
}

// ListAttempts godoc
// @Summary List stored attempts
// @Tags Results
// @Produce json
// @Security ApiKeyAuth
// @Param testId query string false "Test ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /admin/attempts [get]
func (ctrl *ResultController) ListAttempts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	attempts, total, err := ctrl.Results.ListAttempts(c.Request.Context(), c.Query("testId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}
