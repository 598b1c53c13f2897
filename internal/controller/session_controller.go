package controller

import (
	"errors"

	"mocktest_backend/internal/service"
	"mocktest_backend/internal/session"
	"mocktest_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	Sessions *service.SessionManager
}

func NewSessionController(sessions *service.SessionManager) *SessionController {
	return &SessionController{Sessions: sessions}
}

type StartSessionReq struct {
	TestID      string `json:"testId" example:"5f0c3c1e-0c7a-4d55-9a3e-8c1d2f6b7a10"`
	CandidateID string `json:"candidateId" example:"cand-42"`
}

type QuestionReq struct {
	QuestionID string `json:"questionId" binding:"required"`
}

type SelectReq struct {
	QuestionID string `json:"questionId" binding:"required"`
	Option     string `json:"option" binding:"required"`
}

type JumpReq struct {
	Index *int `json:"index" binding:"required"`
}

// StartSession godoc
// @Summary Start or resume an attempt
// @Description An empty testId uses the configured fixed test. A logged-in user is always the candidate and is the only kind that can resume a saved attempt.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body StartSessionReq false "Session"
// @Success 201 {object} util.Response{data=session.View}
// @Failure 404 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /sessions [post]
func (ctrl *SessionController) StartSession(c *gin.Context) {
	var req StartSessionReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
	}
	who := service.Candidate{ID: req.CandidateID}
	if claims := util.GetUserFromContext(c); claims != nil {
		who = service.Candidate{ID: claims.Username, Verified: true}
	}

	view, err := ctrl.Sessions.Start(c.Request.Context(), req.TestID, who)
	if err != nil {
		respondError(c, err)
		return
	}
	util.Created(c, "Session started", view)
}

// GetSession godoc
// @Summary Current session state
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} util.Response{data=session.View}
// @Failure 404 {object} util.Response
// @Router /sessions/{id} [get]
func (ctrl *SessionController) GetSession(c *gin.Context) {
	view, err := ctrl.Sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, view)
}

func (ctrl *SessionController) reply(c *gin.Context, view session.View, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, view)
}

// Select godoc
// @Summary Select an option, or deselect it when already selected
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body SelectReq true "Selection"
// @Success 200 {object} util.Response{data=session.View}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /sessions/{id}/select [post]
func (ctrl *SessionController) Select(c *gin.Context) {
	var req SelectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	view, err := ctrl.Sessions.Select(c.Request.Context(), c.Param("id"), req.QuestionID, req.Option)
	ctrl.reply(c, view, err)
}

// Clear godoc
// @Summary Clear the answer to a question
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body QuestionReq true "Question"
// @Success 200 {object} util.Response{data=session.View}
// @Router /sessions/{id}/clear [post]
func (ctrl *SessionController) Clear(c *gin.Context) {
	var req QuestionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	view, err := ctrl.Sessions.Clear(c.Request.Context(), c.Param("id"), req.QuestionID)
	ctrl.reply(c, view, err)
}

// ToggleReview godoc
// @Summary Toggle the review mark of a question
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body QuestionReq true "Question"
// @Success 200 {object} util.Response{data=session.View}
// @Router /sessions/{id}/review [post]
func (ctrl *SessionController) ToggleReview(c *gin.Context) {
	var req QuestionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	view, err := ctrl.Sessions.ToggleReview(c.Request.Context(), c.Param("id"), req.QuestionID)
	ctrl.reply(c, view, err)
}

// Next godoc
// @Summary Move to the next question
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} util.Response{data=session.View}
// @Router /sessions/{id}/next [post]
func (ctrl *SessionController) Next(c *gin.Context) {
	view, err := ctrl.Sessions.Advance(c.Request.Context(), c.Param("id"))
	ctrl.reply(c, view, err)
}

// Prev godoc
// @Summary Move to the previous question
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} util.Response{data=session.View}
// @Router /sessions/{id}/prev [post]
func (ctrl *SessionController) Prev(c *gin.Context) {
	view, err := ctrl.Sessions.Retreat(c.Request.Context(), c.Param("id"))
	ctrl.reply(c, view, err)
}

// Jump godoc
// @Summary Jump to a question by position
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body JumpReq true "Position"
// @Success 200 {object} util.Response{data=session.View}
// @Failure 400 {object} util.Response
// @Router /sessions/{id}/jump [post]
func (ctrl *SessionController) Jump(c *gin.Context) {
	var req JumpReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	view, err := ctrl.Sessions.Jump(c.Request.Context(), c.Param("id"), *req.Index)
	ctrl.reply(c, view, err)
}

// Submit godoc
// @Summary Submit the attempt
// @Description Returns the result handoff. A repeated submit answers 409 with the same handoff.
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} util.Response{data=service.Handoff}
// @Failure 409 {object} util.Response{data=service.Handoff}
// @Router /sessions/{id}/submit [post]
func (ctrl *SessionController) Submit(c *gin.Context) {
	handoff, err := ctrl.Sessions.Submit(c.Request.Context(), c.Param("id"))
	if errors.Is(err, session.ErrSubmitted) {
		util.Conflict(c, err.Error(), handoff)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	util.Success(c, handoff)
}

// Feed godoc
// @Summary Websocket feed of clock ticks and submission
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 101 {string} string "Switching Protocols"
// @Router /sessions/{id}/ws [get]
func (ctrl *SessionController) Feed(c *gin.Context) {
	sc, err := ctrl.Sessions.Controller(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	service.ServeSessionFeed(sc, c.Writer, c.Request)
}
