package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ButyrinIA/feed/internal/interaction"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/search"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/view"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type openThreadRequest struct {
	Target string `json:"target" binding:"required"`
}

type nodeRequest struct {
	Node string `json:"node" binding:"required"`
}

type submitRequest struct {
	Node    string `json:"node"`
	Kind    string `json:"kind" binding:"required,oneof=reply edit"`
	Content string `json:"content"`
}

type voteRequest struct {
	Node      string `json:"node" binding:"required"`
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

func statusFor(err error) int {
	var mErr *interaction.MutationError
	switch {
	case errors.Is(err, interaction.ErrAnonymous):
		return http.StatusUnauthorized
	case errors.Is(err, interaction.ErrUnknownNode), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interaction.ErrInvalidContent), errors.Is(err, search.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, view.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &mErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

// requestFields дополняет запись лога запроса представлением и вызывающим.
func requestFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	if id := c.Param("view"); id != "" {
		fields = append(fields, zap.String("view", id))
	}
	if v, ok := c.Get(callerKey); ok {
		if d, _ := v.(models.Drive); d.ID != "" {
			fields = append(fields, zap.String("caller", d.ID))
		}
	}
	return fields
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

func (s *Server) getLogLevel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"level": s.level.String()})
}

func (s *Server) setLogLevel(c *gin.Context) {
	if callerOf(c).ID == "" {
		fail(c, interaction.ErrAnonymous)
		return
	}
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.level.UnmarshalText([]byte(req.Level)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("log level changed", zap.String("level", s.level.String()), zap.String("caller", callerOf(c).ID))
	c.JSON(http.StatusOK, gin.H{"level": s.level.String()})
}

func (s *Server) search(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
		return
	}
	result, err := s.agg.Search(c.Request.Context(), c.Query("q"), c.Query("type"), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) openThread(c *gin.Context) {
	var req openThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := s.registry.OpenThread(req.Target, callerOf(c))
	if err := v.Reload(c.Request.Context()); err != nil {
		s.logger.Warn("initial thread load failed", zap.String("view", v.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, v.Snapshot())
}

// threadView находит представление и проверяет, что оно принадлежит вызывающему.
func (s *Server) threadView(c *gin.Context) (*view.ThreadView, bool) {
	v, ok := s.registry.Thread(c.Param("view"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "view not found"})
		return nil, false
	}
	if v.Caller.ID != callerOf(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "view belongs to another caller"})
		return nil, false
	}
	return v, true
}

func (s *Server) getThread(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) closeThread(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	s.registry.Close(v.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) reloadThread(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	if err := v.Reload(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) toggleReply(c *gin.Context) {
	s.toggle(c, (*view.ThreadView).ToggleReply)
}

func (s *Server) toggleEdit(c *gin.Context) {
	s.toggle(c, (*view.ThreadView).ToggleEdit)
}

func (s *Server) toggle(c *gin.Context, fn func(*view.ThreadView, string) (interaction.Transition, error)) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	var req nodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tr, err := fn(v, req.Node)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) submit(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub := interaction.Submission{Kind: interaction.Reply, Content: req.Content}
	if req.Kind == "edit" {
		sub.Kind = interaction.Edit
	}
	if err := v.Submit(c.Request.Context(), req.Node, sub); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) remove(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	var req nodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := v.Remove(c.Request.Context(), req.Node); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) vote(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	direction, _ := models.ParseDirection(req.Direction)
	next, err := v.Vote(c.Request.Context(), req.Node, direction)
	if err != nil {
		// локальный голос уже изменен, клиенту сообщается и ошибка, и текущее значение
		_ = c.Error(err)
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error(), "vote": next.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": next.String()})
}

// events передает события представления по websocket, пока клиент
// не закроет соединение.
func (s *Server) events(c *gin.Context) {
	v, ok := s.threadView(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range s.registry.Hub().Subscribe(ctx, v.ID) {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) openSearch(c *gin.Context) {
	v := s.registry.OpenSearch(callerOf(c))
	c.JSON(http.StatusCreated, gin.H{"id": v.ID})
}

func (s *Server) searchView(c *gin.Context) (*view.SearchView, bool) {
	v, ok := s.registry.Search(c.Param("view"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "view not found"})
		return nil, false
	}
	if v.Caller.ID != callerOf(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "view belongs to another caller"})
		return nil, false
	}
	return v, true
}

func (s *Server) closeSearch(c *gin.Context) {
	v, ok := s.searchView(c)
	if !ok {
		return
	}
	s.registry.Close(v.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) loadSearch(c *gin.Context) {
	v, ok := s.searchView(c)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
		return
	}
	result, err := v.Load(c.Request.Context(), c.Query("q"), c.Query("type"), page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
