package controller

import (
	"mocktest_backend/internal/service"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	TestService *service.TestService
}

func NewTestController(testService *service.TestService) *TestController {
	return &TestController{TestService: testService}
}

// CreateTest godoc
// @Summary Create a mock test
// @Tags Tests
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.CreateTestReq true "Test definition"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /tests [post]
func (ctrl *TestController) CreateTest(c *gin.Context) {
	var req service.CreateTestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	test, err := ctrl.TestService.CreateTest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, "Mock test created successfully", gin.H{"testId": test.ID})
}

// ListTests godoc
// @Summary List mock tests
// @Tags Tests
// @Produce json
// @Success 200 {object} util.Response{data=[]model.MockTest}
// @Router /tests [get]
func (ctrl *TestController) ListTests(c *gin.Context) {
	tests, err := ctrl.TestService.ListTests(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, tests)
}

// GetTest godoc
// @Summary Get a mock test
// @Tags Tests
// @Produce json
// @Param testId path string true "Test ID"
// @Success 200 {object} util.Response{data=model.MockTest}
// @Failure 404 {object} util.Response
// @Router /tests/{testId} [get]
func (ctrl *TestController) GetTest(c *gin.Context) {
	test, err := ctrl.TestService.GetTest(c.Request.Context(), c.Param("testId"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, test)
}

// GetTestQuestions godoc
// @Summary Questions of a test without the answer key
// @Tags Tests
// @Produce json
// @Param testId path string true "Test ID"
// @Success 200 {object} util.Response{data=[]model.PublicQuestion}
// @Failure 404 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /tests/{testId}/questions [get]
func (ctrl *TestController) GetTestQuestions(c *gin.Context) {
	qs, err := ctrl.TestService.PublicQuestions(c.Request.Context(), c.Param("testId"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, qs)
}
