package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/blues/ideafund/internal/feed"
	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/model"
	"github.com/gin-gonic/gin"
)

type IdeaHandler struct {
	engine *funding.Engine
	feed   *feed.Feed
}

func NewIdeaHandler(engine *funding.Engine, feed *feed.Feed) *IdeaHandler {
	return &IdeaHandler{
		engine: engine,
		feed:   feed,
	}
}

// CreateIdea 创建想法
func (h *IdeaHandler) CreateIdea(c *gin.Context) {
	var req CreateIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	idea, err := h.engine.CreateIdea(c.Request.Context(), req.toNewIdea())
	if err != nil {
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "idea created", idea)
}

// GetIdeas 获取想法列表，来自缓存，按创建时间倒序
func (h *IdeaHandler) GetIdeas(c *gin.Context) {
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ideas := h.feed.Snapshot()
	if ideas == nil || c.Query("refresh") == "true" {
		ideas, err = h.feed.Refresh(c.Request.Context())
	} else {
		err = h.feed.LastError()
	}

	ideas = filterIdeas(ideas, statuses)
	resp := IdeaListResponse{Ideas: ideas, Total: len(ideas), RefreshedAt: h.feed.RefreshedAt()}
	if err != nil {
		// 读取失败时仍返回上一次的缓存
		ErrorResponseWithData(c, statusOf(err), err.Error(), resp)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", resp)
}

// GetIdea 获取单个想法，读取时对账过期状态
func (h *IdeaHandler) GetIdea(c *gin.Context) {
	idea, err := h.engine.GetIdea(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", idea)
}

// GetIdeaStats 获取融资进度
func (h *IdeaHandler) GetIdeaStats(c *gin.Context) {
	progress, err := h.engine.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", progress)
}

// StreamIdeas 以 SSE 推送每次刷新后的想法列表
func (h *IdeaHandler) StreamIdeas(c *gin.Context) {
	updates, stop := h.feed.Watch()
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ideas := <-updates:
			c.SSEvent("ideas", IdeaListResponse{Ideas: ideas, Total: len(ideas), RefreshedAt: h.feed.RefreshedAt()})
			c.Writer.Flush()
		}
	}
}

func parseStatuses(raw string) ([]model.IdeaStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []model.IdeaStatus
	for _, s := range strings.Split(raw, ",") {
		status := model.IdeaStatus(strings.TrimSpace(s))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func filterIdeas(ideas []model.IdeaModel, statuses []model.IdeaStatus) []model.IdeaModel {
	out := make([]model.IdeaModel, 0, len(ideas))
	for _, idea := range ideas {
		if len(statuses) == 0 {
			out = append(out, idea)
			continue
		}
		for _, s := range statuses {
			if idea.Status == s {
				out = append(out, idea)
				break
			}
		}
	}
	return out
}
