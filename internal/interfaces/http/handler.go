package http

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"wagate/internal/entities"
	"wagate/internal/interfaces"
	"wagate/internal/usecases"
)

// Session is the connection-layer control surface the front door exposes
// thin adapters over.
type Session interface {
	Status() map[string]interface{}
	GetQR() string
	IsConnected() bool
	Logout() error
}

type Handler struct {
	messenger  interfaces.Messenger
	session    Session
	messageLog interfaces.MessageLog
	contacts   interfaces.ContactDirectory
	dispatcher *usecases.WebhookDispatcher
	logger     zerolog.Logger
}

func NewHandler(messenger interfaces.Messenger, session Session, messageLog interfaces.MessageLog, contacts interfaces.ContactDirectory, dispatcher *usecases.WebhookDispatcher, logger zerolog.Logger) *Handler {
	return &Handler{
		messenger:  messenger,
		session:    session,
		messageLog: messageLog,
		contacts:   contacts,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, auth *usecases.AuthUsecase, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size
	r.Use(middleware.CORSMiddleware())

	// Connection & queries are open; mutations require a token.
	r.GET("/status", h.GetStatus)
	r.GET("/qrcode", h.GetQRCode)
	r.GET("/qrcode/image", h.GetQRCodeImage)
	r.GET("/health", h.GetHealth)

	r.GET("/messages/stream/info", h.GetStreamInfo)
	r.GET("/messages/stream/read", h.ReadStream)
	r.GET("/messages/trace/:jid", h.TraceConversation)
	r.GET("/contacts", h.GetContacts)
	r.GET("/contacts/count", h.GetContactsCount)
	r.GET("/webhooks", h.ListWebhooks)

	r.POST("/api/auth/login", func(c *gin.Context) {
		var loginReq struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&loginReq); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		token, err := auth.Login(loginReq.Username, loginReq.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	api := r.Group("/")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.DELETE("/logout", h.Logout)

		api.POST("/send/text", h.SendText)
		api.POST("/send/image", h.SendImage)
		api.POST("/send/buttons", h.SendButtons)
		api.POST("/send/list", h.SendList)
		api.POST("/send/template", h.SendTemplate)
		api.POST("/send/reaction", h.SendReaction)

		api.POST("/interact/button-click", h.ButtonClick)
		api.POST("/interact/list-click", h.ListClick)

		api.POST("/webhooks/register", h.RegisterWebhook)
		api.DELETE("/webhooks/unregister", h.UnregisterWebhook)
	}
}

// ── Connection ──

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

func (h *Handler) GetQRCode(c *gin.Context) {
	qr := h.session.GetQR()
	resp := gin.H{"qr": qr, "status": h.session.Status()}
	if qr != "" {
		png, err := qrcode.Encode(qr, qrcode.Medium, 256)
		if err == nil {
			resp["qr_image_base64"] = base64.StdEncoding.EncodeToString(png)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetQRCodeImage(c *gin.Context) {
	qr := h.session.GetQR()
	if qr == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "QR not available"})
		return
	}
	png, err := qrcode.Encode(qr, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.session.Logout(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetHealth(c *gin.Context) {
	storeOK := true
	if _, err := h.contacts.Count(); err != nil {
		storeOK = false
	}
	sessionOK := h.session.IsConnected()

	status := "healthy"
	if !storeOK || !sessionOK {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"store":   okOrError(storeOK),
		"session": okOrError(sessionOK),
	})
}

func okOrError(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ── Send ──

func (h *Handler) SendText(c *gin.Context) {
	var req struct {
		JID  string `json:"jid" binding:"required"`
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendText(c.Request.Context(), req.JID, req.Text))
}

func (h *Handler) SendImage(c *gin.Context) {
	var req struct {
		JID     string `json:"jid" binding:"required"`
		URL     string `json:"url" binding:"required"`
		Caption string `json:"caption"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendImage(c.Request.Context(), req.JID, req.URL, req.Caption))
}

func (h *Handler) SendButtons(c *gin.Context) {
	var req struct {
		JID     string                `json:"jid" binding:"required"`
		Text    string                `json:"text" binding:"required"`
		Footer  string                `json:"footer"`
		Buttons []entities.ButtonSpec `json:"buttons" binding:"required,min=1,max=3,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendButtons(c.Request.Context(), req.JID, req.Text, req.Footer, req.Buttons))
}

func (h *Handler) SendList(c *gin.Context) {
	var req struct {
		JID        string                 `json:"jid" binding:"required"`
		Text       string                 `json:"text" binding:"required"`
		Title      string                 `json:"title"`
		ButtonText string                 `json:"buttonText"`
		Footer     string                 `json:"footer"`
		Sections   []entities.ListSection `json:"sections" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ButtonText == "" {
		req.ButtonText = "Select"
	}
	h.sendResult(c, h.messenger.SendList(c.Request.Context(), req.JID, req.Text, req.Title, req.ButtonText, req.Footer, req.Sections))
}

func (h *Handler) SendTemplate(c *gin.Context) {
	var req struct {
		JID             string                    `json:"jid" binding:"required"`
		Text            string                    `json:"text" binding:"required"`
		Footer          string                    `json:"footer"`
		TemplateButtons []entities.TemplateButton `json:"templateButtons" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendTemplate(c.Request.Context(), req.JID, req.Text, req.Footer, req.TemplateButtons))
}

func (h *Handler) SendReaction(c *gin.Context) {
	var req struct {
		JID       string `json:"jid" binding:"required"`
		MessageID string `json:"messageId" binding:"required"`
		Emoji     string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendReaction(c.Request.Context(), req.JID, req.MessageID, req.Emoji))
}

// ── Interact ──

func (h *Handler) ButtonClick(c *gin.Context) {
	var req struct {
		JID         string `json:"jid" binding:"required"`
		ButtonID    string `json:"buttonId" binding:"required"`
		DisplayText string `json:"displayText"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendButtonClick(c.Request.Context(), req.JID, req.ButtonID, req.DisplayText))
}

func (h *Handler) ListClick(c *gin.Context) {
	var req struct {
		JID   string `json:"jid" binding:"required"`
		RowID string `json:"rowId" binding:"required"`
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sendResult(c, h.messenger.SendListClick(c.Request.Context(), req.JID, req.RowID, req.Title))
}

func (h *Handler) sendResult(c *gin.Context, err error) {
	if err != nil {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("send failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ── Messages ──

func (h *Handler) GetStreamInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.messageLog.Info())
}

func (h *Handler) ReadStream(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
	if err != nil || count < 1 || count > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be 1-100"})
		return
	}
	lastID, err := strconv.ParseUint(c.DefaultQuery("lastId", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lastId"})
		return
	}

	msgs, err := h.messageLog.ReadForward(lastID, count)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	next := lastID
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].Seq
	}
	c.JSON(http.StatusOK, gin.H{"messages": emptyIfNil(msgs), "count": len(msgs), "lastId": next})
}

func (h *Handler) TraceConversation(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-500"})
		return
	}
	jid := entities.CanonicalUserJID(c.Param("jid"))

	msgs, err := h.messageLog.ReadByConversation(jid, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jid": jid, "messages": emptyIfNil(msgs), "count": len(msgs)})
}

func emptyIfNil(msgs []entities.Message) []entities.Message {
	if msgs == nil {
		return []entities.Message{}
	}
	return msgs
}

// ── Contacts ──

func (h *Handler) GetContacts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	contacts, err := h.contacts.Query(c.Query("q"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if contacts == nil {
		contacts = []entities.Contact{}
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts, "count": len(contacts)})
}

func (h *Handler) GetContactsCount(c *gin.Context) {
	n, err := h.contacts.Count()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// ── Webhooks ──

func (h *Handler) RegisterWebhook(c *gin.Context) {
	var req struct {
		URL    string `json:"url" binding:"required"`
		Secret string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ValidWebhookURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook URL"})
		return
	}
	created, err := h.dispatcher.Register(req.URL, req.Secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "created": created})
}

func (h *Handler) UnregisterWebhook(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	removed, err := h.dispatcher.Unregister(req.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "webhook not registered"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListWebhooks(c *gin.Context) {
	hooks := h.dispatcher.List()
	if hooks == nil {
		hooks = []entities.Webhook{}
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks, "count": len(hooks)})
}
