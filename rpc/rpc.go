package rpc

import (
	"context"
	"net"
	"net/rpc"

	"github.com/wfunc/partyroom/game"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational lookups over net/rpc.
type AdminService struct {
	rooms *room.Store
	db    persistence.DocStore
}

// NewAdminService creates a new AdminService.
func NewAdminService(rooms *room.Store, db persistence.DocStore) *AdminService {
	return &AdminService{rooms: rooms, db: db}
}

type RoomSnapshotArgs struct {
	RoomID string
}

type RoomSnapshotReply struct {
	Status     string
	HostPlayer string
	Nicknames  []string
	Game       string
}

// RoomSnapshot returns the current membership and status of a room.
func (as *AdminService) RoomSnapshot(args *RoomSnapshotArgs, reply *RoomSnapshotReply) error {
	r, err := as.rooms.Get(context.Background(), args.RoomID)
	if err != nil {
		return err
	}
	reply.Status = string(r.Status)
	reply.HostPlayer = r.HostPlayer
	reply.Nicknames = r.Nicknames()
	if r.CurrentGame != nil {
		reply.Game = *r.CurrentGame
	}
	return nil
}

type PlayCountArgs struct {
	GameID string
}

type PlayCountReply struct {
	Title   string
	PlayCnt int64
}

// PlayCount returns how many times a game has been started.
func (as *AdminService) PlayCount(args *PlayCountArgs, reply *PlayCountReply) error {
	var def game.Definition
	if err := as.db.Get(context.Background(), game.DefinitionKey(args.GameID), &def); err != nil {
		return err
	}
	reply.Title = def.Title
	reply.PlayCnt = def.PlayCnt
	return nil
}
