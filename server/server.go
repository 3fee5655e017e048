// server/server.go
package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/game"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/monitor"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
	partyroom_rpc "github.com/wfunc/partyroom/rpc"
)

// Server owns the HTTP surface and the embedded RPC admin listener.
type Server struct {
	addr      string
	baseURL   string
	db        persistence.DocStore
	rooms     *room.Store
	games     *game.Service
	mon       *monitor.Monitor
	rpcServer *partyroom_rpc.Server
	engine    *gin.Engine
}

func NewServer(addr, rpcAddr, baseURL string, db persistence.DocStore, rooms *room.Store, games *game.Service, mon *monitor.Monitor) *Server {
	s := &Server{
		addr:    addr,
		baseURL: baseURL,
		db:      db,
		rooms:   rooms,
		games:   games,
		mon:     mon,
	}

	// 初始化RPC服务器
	if rpcAddr != "" {
		rpcServer, err := partyroom_rpc.NewServer(rpcAddr)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		s.rpcServer = rpcServer
		rpc.Register(partyroom_rpc.NewAdminService(rooms, db))
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.corsMiddleware(), s.observeMiddleware(), s.maintenanceMiddleware())
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) routes(e *gin.Engine) {
	e.POST("/createRoom", s.handleCreateRoom)
	e.POST("/joinRoom", s.handleJoinRoom)
	e.POST("/leaveRoom", s.handleLeaveRoom)
	e.POST("/startGame", s.handleStartGame)
	e.POST("/endGame", s.handleEndGame)
	e.GET("/rooms/:roomId/qr", s.handleRoomQR)

	g := e.Group("/games")
	g.POST("/setReady", s.handleSetReady)
	g.POST("/0001/declare", s.handleDeclare)
	g.POST("/0002/reportResult", s.handlePresenterResult)
	g.POST("/0003/reportResult", s.handleLateralResult)
	g.POST("/0004/submitHint", s.handleSubmitHint)
	g.POST("/0004/determineAnswer", s.handleDetermineAnswer)
	g.POST("/0004/proceedToNext", s.handleProceedToNext)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start() error {
	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	logger.Log.Infof("Party room server listening on %s", s.addr)
	return s.engine.Run(s.addr)
}

func (s *Server) Shutdown() {
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) observeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.mon != nil {
			s.mon.ObserveActionLatency(time.Since(start))
		}
	}
}

// maintenanceMiddleware turns every request away while the service flag is
// raised. The flag lives in the store so it can be toggled without a deploy.
func (s *Server) maintenanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := room.GetMaintenance(c.Request.Context(), s.db)
		if m.IsMaintenance {
			msg := m.MaintenanceMessage
			if msg == "" {
				msg = "the service is under maintenance"
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   apperr.KindMaintenance,
				"message": msg,
			})
			return
		}
		c.Next()
	}
}

// fail writes the error envelope. Soft rejections keep a 200 status with
// success=false; everything else uses the status class the error carries.
func (s *Server) fail(c *gin.Context, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		logger.Log.Errorw("request failed", "path", c.Request.URL.Path, "error", e.Error())
	}
	if s.mon != nil {
		s.mon.IncActionErrors(e.Kind)
	}
	body := gin.H{
		"success": false,
		"error":   e.Kind,
		"message": e.Message,
	}
	for k, v := range e.Fields {
		body[k] = v
	}
	c.JSON(e.Status, body)
}

func (s *Server) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		s.fail(c, apperr.InvalidArgument("the request body is not valid JSON"))
		return false
	}
	return true
}

type createRoomRequest struct {
	Nickname string `json:"nickname"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !s.bindJSON(c, &req) {
		return
	}
	roomID, playerID, err := s.rooms.Create(c.Request.Context(), req.Nickname)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.mon != nil {
		s.mon.IncRoomsCreated()
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"roomId":   roomID,
		"playerId": playerID,
	})
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if !s.bindJSON(c, &req) {
		return
	}
	playerID, err := s.rooms.Join(c.Request.Context(), req.RoomID, req.Nickname)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.mon != nil {
		s.mon.IncPlayersJoined()
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"playerId": playerID,
	})
}

type leaveRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

func (s *Server) handleLeaveRoom(c *gin.Context) {
	var req leaveRoomRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.rooms.Leave(c.Request.Context(), req.RoomID, req.PlayerID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type startGameRequest struct {
	RoomID string `json:"roomId"`
	GameID string `json:"gameId"`
}

func (s *Server) handleStartGame(c *gin.Context) {
	var req startGameRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.StartGame(c.Request.Context(), req.RoomID, req.GameID); err != nil {
		s.fail(c, err)
		return
	}
	if s.mon != nil {
		s.mon.IncGamesStarted(req.GameID)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type endGameRequest struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleEndGame(c *gin.Context) {
	var req endGameRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.EndGame(c.Request.Context(), req.RoomID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type setReadyRequest struct {
	RoomID   string `json:"roomId"`
	GameID   string `json:"gameId"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleSetReady(c *gin.Context) {
	var req setReadyRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.SetReady(c.Request.Context(), req.RoomID, req.GameID, req.Nickname); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type declareRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

func (s *Server) handleDeclare(c *gin.Context) {
	var req declareRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.Declare(c.Request.Context(), req.RoomID, req.Nickname); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type reportResultRequest struct {
	RoomID   string `json:"roomId"`
	Result   bool   `json:"result"`
	Answerer string `json:"answerer"`
}

func (s *Server) handlePresenterResult(c *gin.Context) {
	var req reportResultRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.ReportPresenterResult(c.Request.Context(), req.RoomID, req.Result, req.Answerer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleLateralResult(c *gin.Context) {
	var req reportResultRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.ReportLateralResult(c.Request.Context(), req.RoomID, req.Result, req.Answerer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type submitHintRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
	Hint     string `json:"hint"`
}

func (s *Server) handleSubmitHint(c *gin.Context) {
	var req submitHintRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.SubmitHint(c.Request.Context(), req.RoomID, req.Nickname, req.Hint); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type determineAnswerRequest struct {
	RoomID           string `json:"roomId"`
	Nickname         string `json:"nickname"`
	AnswerImageIndex *int   `json:"answerImageIndex"`
}

func (s *Server) handleDetermineAnswer(c *gin.Context) {
	var req determineAnswerRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.AnswerImageIndex == nil {
		s.fail(c, apperr.InvalidArgument("an answer image index is required"))
		return
	}
	if err := s.games.DetermineAnswer(c.Request.Context(), req.RoomID, req.Nickname, *req.AnswerImageIndex); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type proceedToNextRequest struct {
	RoomID         string `json:"roomId"`
	Nickname       string `json:"nickname"`
	BestHintPlayer string `json:"bestHintPlayer"`
}

func (s *Server) handleProceedToNext(c *gin.Context) {
	var req proceedToNextRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.games.ProceedToNext(c.Request.Context(), req.RoomID, req.Nickname, req.BestHintPlayer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleRoomQR renders a join link for the room as a PNG QR code.
func (s *Server) handleRoomQR(c *gin.Context) {
	roomID := c.Param("roomId")
	if _, err := s.rooms.Get(c.Request.Context(), roomID); err != nil {
		s.fail(c, err)
		return
	}
	joinURL := s.baseURL + "/join?roomId=" + roomID
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		s.fail(c, apperr.Internal(err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
