package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nutrivision/chat"
	"nutrivision/pipeline"
	"nutrivision/recognition"
)

var errImageTooLarge = errors.New("image too large")

type sessionSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type createChatRequest struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// POST /chats
func (s *Server) createChat(c *gin.Context) {
	var req createChatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	sess := chat.NewSession(userID(c), req.Name, req.Message)
	if err := s.store.Create(c.Request.Context(), sess); err != nil {
		respondFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionSummary{ID: sess.ID, Name: sess.Name, CreatedAt: sess.CreatedAt})
}

// GET /chats
func (s *Server) listChats(c *gin.Context) {
	sessions, err := s.store.List(c.Request.Context(), userID(c))
	if err != nil {
		respondFailure(c, err)
		return
	}
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{ID: sess.ID, Name: sess.Name, CreatedAt: sess.CreatedAt})
	}
	c.JSON(http.StatusOK, out)
}

// GET /chats/:chatId
func (s *Server) getChat(c *gin.Context) {
	sess, err := s.store.Get(c.Request.Context(), userID(c), c.Param("chatId"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	if sess.Turns == nil {
		sess.Turns = []chat.Turn{}
	}
	c.JSON(http.StatusOK, sess)
}

// DELETE /chats/:chatId
func (s *Server) deleteChat(c *gin.Context) {
	n, err := s.store.Delete(c.Request.Context(), userID(c), c.Param("chatId"))
	if err != nil {
		respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

type chatForm struct {
	Message          string `form:"message" json:"message"`
	ChatID           string `form:"chatId" json:"chatId"`
	ChatName         string `form:"chatName" json:"chatName"`
	Result           string `form:"result" json:"result"`
	HealthConditions string `form:"healthConditions" json:"healthConditions"`
	Diet             string `form:"diet" json:"diet"`
	Allergies        string `form:"allergies" json:"allergies"`
	FavoriteDishes   string `form:"favoriteDishes" json:"favoriteDishes"`
	DislikedDishes   string `form:"dislikedDishes" json:"dislikedDishes"`
}

// POST /chat
func (s *Server) chat(c *gin.Context) {
	var form chatForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	img, err := s.formImage(c)
	if err != nil {
		s.respondImageError(c, err)
		return
	}

	res, err := s.assistant.Respond(c.Request.Context(), pipeline.Request{
		UserID:            userID(c),
		ChatID:            form.ChatID,
		ChatName:          form.ChatName,
		Message:           form.Message,
		RecognitionResult: form.Result,
		Image:             img,
		Profile: pipeline.Profile{
			HealthConditions: form.HealthConditions,
			Diet:             form.Diet,
			Allergies:        form.Allergies,
			FavouriteDishes:  form.FavoriteDishes,
			DislikedDishes:   form.DislikedDishes,
		},
	})
	if err != nil {
		respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type recognizeResponse struct {
	Items   []recognition.Item `json:"items"`
	Summary string             `json:"summary"`
}

// POST /recognize
func (s *Server) recognize(c *gin.Context) {
	if s.recognizer == nil {
		respondError(c, http.StatusServiceUnavailable, "unavailable", errors.New("image recognition is not configured"))
		return
	}

	img, err := s.formImage(c)
	if err != nil {
		s.respondImageError(c, err)
		return
	}
	if img == nil {
		respondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing image"))
		return
	}

	items, err := s.recognizer.Recognize(c.Request.Context(), *img)
	if err != nil {
		respondFailure(c, fmt.Errorf("%w: %w", pipeline.ErrUpstream, err))
		return
	}
	items = recognition.Filter(items, s.threshold)
	if items == nil {
		items = []recognition.Item{}
	}
	c.JSON(http.StatusOK, recognizeResponse{Items: items, Summary: recognition.Summary(items)})
}

// formImage returns the optional "image" upload, or nil when there is none.
func (s *Server) formImage(c *gin.Context) (*recognition.Image, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size > s.maxImageBytes {
		return nil, errImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, errImageTooLarge
	}
	return &recognition.Image{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

func (s *Server) respondImageError(c *gin.Context, err error) {
	if errors.Is(err, errImageTooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, "image_too_large", err)
		return
	}
	respondError(c, http.StatusBadRequest, "invalid_request", err)
}
