package main

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danmaku/live-comments/internal/comment"
	"github.com/danmaku/live-comments/internal/lane"
	"github.com/danmaku/live-comments/internal/messaging"
	"github.com/danmaku/live-comments/internal/moderation"
	"github.com/danmaku/live-comments/internal/pipeline"
	"github.com/danmaku/live-comments/internal/protocol"
	"github.com/danmaku/live-comments/internal/session"
	"github.com/danmaku/live-comments/internal/storage"
	"github.com/danmaku/live-comments/internal/violation"
	"github.com/danmaku/live-comments/internal/ws"
)

// recentReplayLimit is how many recent comments a late joiner receives.
const recentReplayLimit = 50

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	plConfig := pipeline.DefaultConfig()
	if v := os.Getenv("SCREEN_WIDTH"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w > 0 {
			plConfig.ScreenWidth = w
		}
	}

	// --- PostgreSQL ---
	dsn := "postgres://localhost/danmaku?sslmode=disable"
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dsn = v
	}
	migrationsPath := "migrations"
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		migrationsPath = v
	}
	db, err := storage.Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := storage.RunMigrations(db, migrationsPath); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			log.Fatalf("failed to connect to redis: %v", err)
		}
		cancel()
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Domain wiring ---
	violationConfig := violation.Config{}
	if v := os.Getenv("VIOLATION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			violationConfig.ViolationTTL = d
		}
	}
	tracker := violation.NewTracker(redisClient, violationConfig)

	validator := comment.NewValidator(nil)
	engine := moderation.NewEngine(moderation.NewFilter(), moderation.NewHistory(), tracker, 0)
	lanes := lane.NewRegistry(lane.Config{})
	sessions := session.NewRegistry(session.DefaultConfig())

	streamStore := storage.NewStreamStore(db)
	commentStore := storage.NewCommentStore(db)
	sessionStore := storage.NewSessionStore(db)

	pl := pipeline.New(plConfig, validator, engine, lanes, sessions,
		streamStore, commentStore, sessionStore, natsClient)

	log.Printf("danmaku comment server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  screen_width:    %.0f", plConfig.ScreenWidth)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  migrations:      %s", migrationsPath)

	// Declare server early so closures can capture it.
	var server *ws.Server

	// subscribeStream opens this instance's NATS subscription for a stream and
	// forwards every event to the local room. Opened when the first local
	// viewer joins, closed when the last one leaves.
	subscribeStream := func(streamID string) {
		if err := natsClient.SubscribeStream(streamID, func(ev messaging.StreamEvent) {
			switch ev.Type {
			case messaging.EventNewComment:
				data, err := protocol.NewServerMessage(protocol.TypeNewComment, protocol.NewCommentMsg{
					StreamID: ev.StreamID,
					Comment:  ev.Comment,
				})
				if err != nil {
					log.Printf("[stream-sub] build new_comment stream=%s: %v", ev.StreamID, err)
					return
				}
				server.Connections().BroadcastRoom(ev.StreamID, data)

			case messaging.EventViewerCount:
				data, err := protocol.NewServerMessage(protocol.TypeViewerCount, protocol.ViewerCountMsg{
					StreamID: ev.StreamID,
					Count:    ev.Count,
				})
				if err != nil {
					return
				}
				server.Connections().BroadcastRoom(ev.StreamID, data)

			case messaging.EventStreamEnded:
				data, err := protocol.NewServerMessage(protocol.TypeStreamEnded, protocol.StreamEndedMsg{
					StreamID: ev.StreamID,
				})
				if err == nil {
					server.Connections().BroadcastRoom(ev.StreamID, data)
				}
				// Release every per-stream resource on this instance.
				pl.StreamEnded(ev.StreamID)
			}
		}); err != nil {
			log.Printf("[stream-sub] subscribe stream=%s FAILED: %v", streamID, err)
		}
	}

	// leaveStream tears down one viewer's membership in a stream: room,
	// presence registry, and the NATS subscription once the room empties.
	leaveStream := func(conn *ws.Connection, streamID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if emptied := server.Connections().LeaveRoom(streamID, conn.ID); emptied {
			_ = natsClient.UnsubscribeStream(streamID)
		}
		pl.ViewerLeave(ctx, streamID, conn.UserID, conn.ID)
		conn.SetStream("")
	}

	dispatcher := ws.NewMessageDispatcher()

	// -----------------------------------------------------------------------
	// join_stream — start watching a stream
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinStream, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinStreamMsg)
		if !ok || joinMsg.StreamID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		snap, err := streamStore.FindStreamByID(ctx, joinMsg.StreamID)
		if err != nil {
			log.Printf("join_stream lookup stream=%s: %v", joinMsg.StreamID, err)
			sendError(conn, "internal_error", "stream lookup failed")
			return
		}
		if snap == nil || snap.Status == pipeline.StreamEnded {
			sendError(conn, "stream_not_found", "stream not found or ended")
			return
		}

		// A connection watches one stream at a time.
		if prev := conn.Stream(); prev != "" && prev != joinMsg.StreamID {
			leaveStream(conn, prev)
		}

		conn.SetStream(joinMsg.StreamID)
		if created := server.Connections().JoinRoom(joinMsg.StreamID, conn); created {
			subscribeStream(joinMsg.StreamID)
		}
		count := pl.ViewerJoin(ctx, joinMsg.StreamID, conn.UserID, conn.ID)

		recent, err := commentStore.ListRecent(ctx, joinMsg.StreamID, recentReplayLimit)
		if err != nil {
			// Replay is a nicety; the join still succeeds without it.
			log.Printf("join_stream replay stream=%s: %v", joinMsg.StreamID, err)
		}

		resp, err := protocol.NewServerMessage(protocol.TypeStreamJoined, protocol.StreamJoinedMsg{
			StreamID:    joinMsg.StreamID,
			ViewerCount: count,
			Recent:      recent,
		})
		if err != nil {
			log.Printf("join_stream build response stream=%s: %v", joinMsg.StreamID, err)
			return
		}
		if err := conn.WriteMessage(resp); err != nil {
			log.Printf("join_stream send conn=%s: %v", conn.ID, err)
		}

		log.Printf("join_stream conn=%s user=%s stream=%s viewers=%d",
			conn.ID, conn.Username, joinMsg.StreamID, count)
	})

	// -----------------------------------------------------------------------
	// leave_stream — stop watching a stream
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveStream, func(conn *ws.Connection, msg interface{}) {
		leaveMsg, ok := msg.(protocol.LeaveStreamMsg)
		if !ok {
			return
		}
		streamID := leaveMsg.StreamID
		if streamID == "" {
			streamID = conn.Stream()
		}
		if streamID == "" || streamID != conn.Stream() {
			return
		}

		leaveStream(conn, streamID)
		log.Printf("leave_stream conn=%s stream=%s", conn.ID, streamID)
	})

	// -----------------------------------------------------------------------
	// comment — submit a comment through the pipeline
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeComment, func(conn *ws.Connection, msg interface{}) {
		commentMsg, ok := msg.(protocol.CommentMsg)
		if !ok {
			return
		}
		streamID := commentMsg.StreamID
		if streamID == "" {
			streamID = conn.Stream()
		}
		if streamID == "" {
			sendError(conn, "not_watching", "join a stream before commenting")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := pl.SubmitComment(ctx, pipeline.SubmitRequest{
			UserID:   conn.UserID,
			Username: conn.Username,
			StreamID: streamID,
			Text:     commentMsg.Text,
			Command:  commentMsg.Command,
			Vpos:     commentMsg.Vpos,
		})
		if err != nil {
			log.Printf("comment submit conn=%s stream=%s: %v", conn.ID, streamID, err)
			sendError(conn, "internal_error", "comment submission failed")
			return
		}

		ack := protocol.CommentSentMsg{Success: res.Accepted}
		if res.Accepted {
			ack.CommentID = res.Comment.ID
		} else {
			ack.Code = res.Rejection.Code
			ack.Reason = res.Rejection.Reason
			ack.Errors = res.Rejection.Errors
			if res.Rejection.RetryAfter > 0 {
				ack.RetryAfter = int(math.Ceil(res.Rejection.RetryAfter.Seconds()))
			}
		}

		data, err := protocol.NewServerMessage(protocol.TypeCommentSent, ack)
		if err != nil {
			log.Printf("comment build ack conn=%s: %v", conn.ID, err)
			return
		}
		if err := conn.WriteMessage(data); err != nil {
			log.Printf("comment send ack conn=%s: %v", conn.ID, err)
		}
	})

	server = ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	// Moderator API on its own listener, kept off the public WebSocket port.
	// The auth proxy in front of it resolves moderator and target levels.
	adminAddr := ":9101"
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		adminAddr = v
	}
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/moderation/action", moderationActionHandler(tracker))
	go func() {
		log.Printf("moderation API listening on %s", adminAddr)
		if err := http.ListenAndServe(adminAddr, adminMux); err != nil && err != http.ErrServerClosed {
			log.Printf("moderation API error: %v", err)
		}
	}()

	// Disconnects count as leaves so viewer counts stay honest.
	server.SetOnDisconnect(func(conn *ws.Connection) {
		if streamID := conn.Stream(); streamID != "" {
			leaveStream(conn, streamID)
		}
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		natsClient.Close()
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		if err := db.Close(); err != nil {
			log.Printf("postgres close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// moderationActionHandler applies manual moderator actions to the violation
// ledger: warn (logged only), mute (short block), block, unblock. Actor and
// target levels come from the upstream auth proxy.
func moderationActionHandler(tracker *violation.Tracker) http.HandlerFunc {
	const defaultMute = 10 * time.Minute

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Action      string `json:"action"`
			UserID      string `json:"user_id"`
			ActorID     string `json:"actor_id"`
			ActorLevel  int    `json:"actor_level"`
			TargetLevel int    `json:"target_level"`
			Duration    string `json:"duration,omitempty"` // e.g. "30m", "24h"
			Reason      string `json:"reason,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := violation.ValidateModerationAction(req.ActorLevel, req.TargetLevel, req.Action); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}

		reason := req.Reason
		if reason == "" {
			reason = "manual: " + req.Action
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		var err error
		switch req.Action {
		case violation.ActionWarn:
			// Warnings carry no ledger state; the actor's tooling shows them.
			log.Printf("moderation warn user=%s actor=%s reason=%q", req.UserID, req.ActorID, reason)
		case violation.ActionMute:
			d := defaultMute
			if req.Duration != "" {
				if parsed, perr := time.ParseDuration(req.Duration); perr == nil && parsed > 0 {
					d = parsed
				}
			}
			err = tracker.Block(ctx, req.UserID, d, reason)
		case violation.ActionBlock:
			d := violation.BlockBase
			if req.Duration != "" {
				if parsed, perr := time.ParseDuration(req.Duration); perr == nil && parsed > 0 {
					d = parsed
				}
			}
			err = tracker.Block(ctx, req.UserID, d, reason)
		case violation.ActionUnblock:
			err = tracker.Unblock(ctx, req.UserID)
		}
		if err != nil {
			log.Printf("moderation %s user=%s: %v", req.Action, req.UserID, err)
			http.Error(w, "ledger update failed", http.StatusInternalServerError)
			return
		}

		log.Printf("moderation %s user=%s actor=%s", req.Action, req.UserID, req.ActorID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// sendError sends a structured error message back to the client.
func sendError(conn *ws.Connection, code, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Printf("send error message conn=%s: %v", conn.ID, err)
	}
}
