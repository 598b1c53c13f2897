package controller

import (
	"strings"

	"mocktest_backend/internal/service"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	Ingestion   *service.IngestionService
	TestService *service.TestService
}

func NewQuestionController(ingestion *service.IngestionService, testService *service.TestService) *QuestionController {
	return &QuestionController{Ingestion: ingestion, TestService: testService}
}

// AddQuestion godoc
// @Summary Add one question
// @Description Accepts JSON, or multipart form data with an optional image file.
// @Tags Questions
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.QuestionInput false "Question"
// @Param image formData file false "Question image"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response
// @Router /questions [post]
func (ctrl *QuestionController) AddQuestion(c *gin.Context) {
	var in service.QuestionInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&in); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
		if len(in.Subjects) == 1 && strings.Contains(in.Subjects[0], ",") {
			in.Subjects = strings.Split(in.Subjects[0], ",")
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	image, err := c.FormFile("image")
	if err != nil {
		image = nil
	}

	q, err := ctrl.Ingestion.AddQuestion(c.Request.Context(), in, image)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, "Question added successfully", q)
}

// UploadCSV godoc
// @Summary Import questions from CSV
// @Description Columns: question, option1..option4, answer, difficulty and optional subject.
// @Tags Questions
// @Accept mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param testId query string true "Test ID"
// @Param subject path string false "Subject applied to every row"
// @Param file formData file true "CSV file"
// @Success 201 {object} util.Response{data=service.ImportResult}
// @Failure 400 {object} util.Response
// @Router /questions/upload-csv [post]
func (ctrl *QuestionController) UploadCSV(c *gin.Context) {
	testID := c.Query("testId")
	if testID == "" {
		testID = c.PostForm("testId")
	}
	if testID == "" {
		respondError(c, util.ErrTestIDRequired)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, util.ErrNoFile)
		return
	}
	if fh.Size > util.MaxUploadBytes {
		util.BadRequest(c, "File too large.")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	res, err := ctrl.Ingestion.ImportCSV(c.Request.Context(), testID, strings.TrimSpace(c.Param("subject")), f)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, "Questions uploaded successfully", res)
}

// UploadJSON godoc
// @Summary Import a JSON array of questions
// @Description The array is accepted either as the request body or as a "file" form field. Any invalid item rejects the batch.
// @Tags Questions
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file false "JSON file"
// @Success 201 {object} util.Response{data=service.ImportResult}
// @Failure 400 {object} util.Response
// @Router /questions/upload-json [post]
func (ctrl *QuestionController) UploadJSON(c *gin.Context) {
	body := c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, util.ErrNoFile)
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer f.Close()
		body = f
	}

	res, err := ctrl.Ingestion.ImportJSON(c.Request.Context(), body)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, "Questions uploaded successfully", res)
}

// ListQuestions godoc
// @Summary Every stored question, answers included
// @Tags Questions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Question}
// @Router /questions [get]
func (ctrl *QuestionController) ListQuestions(c *gin.Context) {
	qs, err := ctrl.TestService.AllQuestions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, qs)
}

// ListTestQuestions godoc
// @Summary Questions of one test, answers included
// @Tags Questions
// @Produce json
// @Security ApiKeyAuth
// @Param testId path string true "Test ID"
// @Success 200 {object} util.Response{data=[]model.Question}
// @Failure 404 {object} util.Response
// @Router /questions/{testId} [get]
func (ctrl *QuestionController) ListTestQuestions(c *gin.Context) {
	qs, err := ctrl.TestService.Questions(c.Request.Context(), c.Param("testId"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, qs)
}
