package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/MysteryBlokHed/alheure/internal/config"
	"github.com/MysteryBlokHed/alheure/internal/game"
)

const (
	RoleHost   = "host"
	RoleBuzzer = "buzzer"
	RoleScreen = "screen"
)

type ConnCtx struct {
	Code     string
	Token    string
	Role     string // "host" | "buzzer" | "screen"
	PlayerID int    // buzzer only
}

// Broadcaster is the part of the Socket.IO server used to fan out session
// updates.
type Broadcaster interface {
	BroadcastToRoom(namespace string, room string, event string, args ...interface{}) bool
}

type Server struct {
	RM     *game.RoomManager
	config config.Config

	mu       sync.Mutex
	watching map[string]func() // sessionCode -> unsubscribe
}

func New(rm *game.RoomManager, cfg config.Config) *Server {
	return &Server{RM: rm, config: cfg, watching: make(map[string]func())}
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	io.OnEvent("/", "game:create", func(s socketio.Conn, payload struct {
		Config *game.ConfigOverrides `json:"config"`
	}) map[string]any {
		return srv.create(io, s, payload.Config)
	})

	// game:resume attaches a connection to an existing session, as host,
	// buzzer or screen
	io.OnEvent("/", "game:resume", func(s socketio.Conn, payload struct {
		SessionCode string `json:"sessionCode"`
		Role        string `json:"role"`
		Token       string `json:"token"`
	}) map[string]any {
		sess, err := srv.RM.Get(payload.SessionCode)
		if err != nil {
			return srv.fail(s, err)
		}
		ctx := &ConnCtx{Code: payload.SessionCode, Token: payload.Token, Role: payload.Role}
		switch payload.Role {
		case RoleHost:
			if _, err := srv.RM.Authorize(payload.SessionCode, payload.Token); err != nil {
				return srv.fail(s, err)
			}
		case RoleBuzzer:
			id, ok := sess.BuzzerPlayer(payload.Token)
			if !ok {
				return srv.fail(s, game.ErrNotHost)
			}
			ctx.PlayerID = id
		default:
			ctx.Role = RoleScreen
			ctx.Token = ""
		}
		srv.attach(io, s, ctx)
		log.Info().Str("sid", s.ID()).Str("code", payload.SessionCode).Str("role", ctx.Role).Msg("game:resume")
		return map[string]any{"ok": true, "role": ctx.Role}
	})

	// game:claimBuzzer binds a phone to a player
	io.OnEvent("/", "game:claimBuzzer", func(s socketio.Conn, payload struct {
		SessionCode string `json:"sessionCode"`
		PlayerID    int    `json:"playerId"`
	}) map[string]any {
		return srv.claimBuzzer(io, s, payload.SessionCode, payload.PlayerID)
	})

	// game:releaseBuzzer lets the host free a player's buzzer, e.g. for a
	// lost phone
	io.OnEvent("/", "game:releaseBuzzer", func(s socketio.Conn, payload struct {
		PlayerID int `json:"playerId"`
	}) map[string]any {
		return srv.hostAction(s, "game:releaseBuzzer", func(sess *game.Session) error {
			return sess.ReleaseBuzzer(payload.PlayerID)
		})
	})

	io.OnEvent("/", "game:addPlayer", func(s socketio.Conn, payload struct {
		Name *string `json:"name"`
	}) map[string]any {
		sess, err := srv.host(s)
		if err != nil {
			return srv.fail(s, err)
		}
		var p any
		if payload.Name == nil {
			p, err = sess.AddPlaceholder()
		} else {
			p, err = sess.AddPlayer(*payload.Name)
		}
		if err != nil {
			return srv.fail(s, err)
		}
		return map[string]any{"player": p}
	})

	io.OnEvent("/", "game:renamePlayer", func(s socketio.Conn, payload struct {
		PlayerID int    `json:"playerId"`
		Name     string `json:"name"`
	}) map[string]any {
		sess, err := srv.host(s)
		if err != nil {
			return srv.fail(s, err)
		}
		p, err := sess.RenamePlayer(payload.PlayerID, payload.Name)
		if err != nil {
			// the row keeps the text, flagged invalid
			out := srv.fail(s, err)
			out["player"] = p
			return out
		}
		return map[string]any{"player": p}
	})

	io.OnEvent("/", "game:removePlayer", func(s socketio.Conn, payload struct {
		PlayerID int `json:"playerId"`
	}) map[string]any {
		return srv.hostAction(s, "game:removePlayer", func(sess *game.Session) error {
			return sess.RemovePlayer(payload.PlayerID)
		})
	})

	io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
		return srv.hostAction(s, "game:start", (*game.Session).Start)
	})

	// game:advance carries the snapshot version the host screen showed, so
	// a repeated click cannot skip a phase
	io.OnEvent("/", "game:advance", func(s socketio.Conn, payload struct {
		Version *uint64 `json:"version"`
	}) map[string]any {
		return srv.advance(s, payload.Version)
	})

	io.OnEvent("/", "game:restart", func(s socketio.Conn) map[string]any {
		return srv.hostAction(s, "game:restart", (*game.Session).Restart)
	})

	// game:submit carries an answer, typed either on the host screen for
	// the named player or on a buzzer for its own player. A null answer is
	// a pass.
	io.OnEvent("/", "game:submit", func(s socketio.Conn, payload struct {
		PlayerID *int    `json:"playerId"`
		Answer   *string `json:"answer"`
		Version  *uint64 `json:"version"`
	}) map[string]any {
		return srv.submit(s, payload.PlayerID, payload.Answer, payload.Version)
	})

	// game:buzz; reported is the device's own press time, kept only for
	// diagnostics
	io.OnEvent("/", "game:buzz", func(s socketio.Conn, payload struct {
		PlayerID *int  `json:"playerId"`
		Reported int64 `json:"reported"`
	}) map[string]any {
		sess, id, err := srv.actor(s, payload.PlayerID)
		if err != nil {
			return srv.fail(s, err)
		}
		accepted, err := sess.BuzzIn(id, payload.Reported)
		if err != nil {
			return srv.fail(s, err)
		}
		return map[string]any{"accepted": accepted}
	})

	io.OnEvent("/", "game:end", func(s socketio.Conn) map[string]any {
		sess, err := srv.host(s)
		if err != nil {
			return srv.fail(s, err)
		}
		if err := srv.RM.End(sess.Code); err != nil {
			return srv.fail(s, err)
		}
		log.Info().Str("code", sess.Code).Msg("game:end")
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket server stopped")
		}
	}()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) create(io Broadcaster, s socketio.Conn, overrides *game.ConfigOverrides) map[string]any {
	if srv.config.HostAuth() {
		return srv.fail(s, game.ErrNotHost)
	}
	code, hostToken, err := srv.RM.CreateSession(overrides.Apply(srv.config.Session()))
	if err != nil {
		return srv.fail(s, err)
	}
	srv.attach(io, s, &ConnCtx{Code: code, Token: hostToken, Role: RoleHost})
	log.Info().Str("sid", s.ID()).Str("code", code).Msg("game:create")
	return map[string]any{"sessionCode": code, "hostToken": hostToken}
}

func (srv *Server) claimBuzzer(io Broadcaster, s socketio.Conn, code string, playerID int) map[string]any {
	sess, err := srv.RM.Get(code)
	if err != nil {
		return srv.fail(s, err)
	}
	token, err := sess.ClaimBuzzer(playerID)
	if err != nil {
		return srv.fail(s, err)
	}
	srv.attach(io, s, &ConnCtx{Code: code, Token: token, Role: RoleBuzzer, PlayerID: playerID})
	log.Info().Str("sid", s.ID()).Str("code", code).Int("playerId", playerID).Msg("game:claimBuzzer")
	return map[string]any{"buzzerToken": token, "playerId": playerID}
}

func (srv *Server) advance(s socketio.Conn, version *uint64) map[string]any {
	return srv.hostAction(s, "game:advance", func(sess *game.Session) error {
		if version == nil {
			return sess.Advance()
		}
		return sess.AdvanceFrom(*version)
	})
}

func (srv *Server) submit(s socketio.Conn, playerID *int, answer *string, version *uint64) map[string]any {
	sess, id, err := srv.actor(s, playerID)
	if err != nil {
		return srv.fail(s, err)
	}
	if version == nil {
		err = sess.SubmitAnswer(id, answer)
	} else {
		err = sess.SubmitAnswerFrom(*version, id, answer)
	}
	if err != nil {
		return srv.fail(s, err)
	}
	log.Info().Str("code", sess.Code).Int("playerId", id).Msg("game:submit")
	return map[string]any{"ok": true}
}

// attach puts the connection in the session's room, starts relaying that
// session's updates if nobody is yet, and sends the current state.
func (srv *Server) attach(io Broadcaster, s socketio.Conn, ctx *ConnCtx) {
	if prev, ok := s.Context().(*ConnCtx); ok && prev.Code != "" && prev.Code != ctx.Code {
		s.Leave(prev.Code)
	}
	s.SetContext(ctx)
	s.Join(ctx.Code)
	sess, err := srv.RM.Get(ctx.Code)
	if err != nil {
		return
	}
	srv.Watch(io, sess)
	s.Emit("game:state", sess.Snapshot())
}

// Watch relays a session's notifications to its room until the session is
// closed. Calling it again for the same session is a no-op.
func (srv *Server) Watch(io Broadcaster, sess *game.Session) {
	srv.mu.Lock()
	if _, ok := srv.watching[sess.Code]; ok {
		srv.mu.Unlock()
		return
	}
	updates, cancel := sess.Subscribe(64)
	srv.watching[sess.Code] = cancel
	srv.mu.Unlock()

	go func() {
		defer func() {
			srv.mu.Lock()
			delete(srv.watching, sess.Code)
			srv.mu.Unlock()
		}()
		for n := range updates {
			srv.relay(io, sess, n)
		}
		log.Debug().Str("code", sess.Code).Msg("stopped relaying session")
	}()
}

func (srv *Server) relay(io Broadcaster, sess *game.Session, n game.Notification) {
	io.BroadcastToRoom("/", sess.Code, "game:state", n.Snapshot)
	for _, e := range n.Events {
		io.BroadcastToRoom("/", sess.Code, "game:event", e)
	}
}

// host returns the connection's session if it is attached as host.
func (srv *Server) host(s socketio.Conn) (*game.Session, error) {
	ctx, _ := s.Context().(*ConnCtx)
	if ctx == nil || ctx.Role != RoleHost {
		return nil, game.ErrNotHost
	}
	return srv.RM.Authorize(ctx.Code, ctx.Token)
}

func (srv *Server) hostAction(s socketio.Conn, name string, act func(*game.Session) error) map[string]any {
	sess, err := srv.host(s)
	if err != nil {
		return srv.fail(s, err)
	}
	if err := act(sess); err != nil {
		return srv.fail(s, err)
	}
	log.Info().Str("code", sess.Code).Str("phase", string(sess.GetPhase())).Msg(name)
	return map[string]any{"ok": true}
}

// actor resolves which player an input is for. Buzzers always act for
// their own player; the host names one.
func (srv *Server) actor(s socketio.Conn, playerID *int) (*game.Session, int, error) {
	ctx, _ := s.Context().(*ConnCtx)
	if ctx == nil || ctx.Code == "" {
		return nil, 0, game.ErrSessionNotFound
	}
	switch ctx.Role {
	case RoleBuzzer:
		sess, err := srv.RM.Get(ctx.Code)
		if err != nil {
			return nil, 0, err
		}
		return sess, ctx.PlayerID, nil
	case RoleHost:
		sess, err := srv.host(s)
		if err != nil {
			return nil, 0, err
		}
		if playerID == nil {
			return nil, 0, errors.New("playerId is required")
		}
		return sess, *playerID, nil
	}
	return nil, 0, game.ErrNotHost
}

func (srv *Server) fail(s socketio.Conn, err error) map[string]any {
	code := game.CodeOf(err)
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": err.Error(), "code": code}
}
