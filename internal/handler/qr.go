package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"classroll/internal/qrsession"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API is bearer-authenticated, so cross-origin pages cannot ride a cookie
	CheckOrigin: func(r *http.Request) bool { return true },
}

type countdownFrame struct {
	RemainingMS int64  `json:"remaining_ms,omitempty"`
	Remaining   string `json:"remaining,omitempty"`
	Active      bool   `json:"active"`
}

func (h *Handler) sessionView(issued qrsession.Issued) (gin.H, error) {
	img, err := qrsession.DataURL(issued.Payload, h.QRImageSize)
	if err != nil {
		return nil, err
	}
	left := h.Sessions.Countdown(issued.Session).Remaining()
	return gin.H{
		"active":       true,
		"session":      issued.Session,
		"payload":      issued.Payload,
		"qr_code":      img,
		"remaining_ms": left.Milliseconds(),
		"remaining":    qrsession.FormatRemaining(left),
	}, nil
}

func (h *Handler) generateSession(c *gin.Context) {
	issued, err := h.Sessions.Generate(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.sessionView(issued)
	if err != nil {
		h.fail(c, err)
		return
	}
	view["message"] = "QR session started. Students can now scan to mark attendance."
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) activeSession(c *gin.Context) {
	issued, err := h.Sessions.Active(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if issued == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	view, err := h.sessionView(*issued)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) sessionImage(c *gin.Context) {
	issued, err := h.Sessions.Active(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if issued == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active QR session"})
		return
	}
	png, err := qrsession.EncodePNG(issued.Payload, h.QRImageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) endSession(c *gin.Context) {
	if err := h.Sessions.End(c.Request.Context(), claims(c).UserID(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "QR session ended"})
}

// liveSession streams the countdown of the class's active session once per
// tick until it expires, is ended or replaced, or the client goes away.
func (h *Handler) liveSession(c *gin.Context) {
	issued, err := h.Sessions.Active(c.Request.Context(), claims(c).UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if issued == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active QR session"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	s := issued.Session
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

	send := func(f countdownFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	h.Sessions.Countdown(s).Run(ctx, func(left time.Duration) {
		if left == 0 {
			return
		}
		if !h.Sessions.Live(s.ClassID, s.ID) {
			cancel()
			return
		}
		if err := send(countdownFrame{
			RemainingMS: left.Milliseconds(),
			Remaining:   qrsession.FormatRemaining(left),
			Active:      true,
		}); err != nil {
			cancel()
		}
	})

	if c.Request.Context().Err() != nil {
		return
	}
	if err := send(countdownFrame{Active: false}); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"), time.Now().Add(writeWait))
}
