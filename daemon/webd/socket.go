package webd

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/olahol/melody"

	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/types/workout"
)

type websocketAction string

const (
	websocketActionSnapshot websocketAction = "snapshot"
	websocketActionSplit    websocketAction = "split"
	websocketActionWorkout  websocketAction = "workout"
)

type broadcast struct {
	Action  websocketAction `json:"action"`
	Payload any             `json:"payload"`
}

// initMelody sets up the websocket handler: every published snapshot, split,
// and finalized workout is broadcast to all connected clients.
func (s *WebDaemon) initMelody(ctx context.Context) {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Info("Websocket connected", "remote", sess.Request.RemoteAddr)
		// Replay the last known state so a fresh client has something
		// to draw immediately.
		if s.store != nil {
			if snap, ok := s.store.LastSnapshot(s.Config.UserID); ok {
				b, _ := json.Marshal(broadcast{Action: websocketActionSnapshot, Payload: snap})
				sess.Write(b)
			}
		}
	})

	// Incoming messages from clients are logged and dropped.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "msg", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "error", e, "remote", sess.Request.RemoteAddr)
	})

	snapshots := make(chan events.Snapshot, 8)
	snapSub := events.SnapshotFeed.Subscribe(snapshots)
	splits := make(chan workout.Split, 8)
	splitSub := events.SplitFeed.Subscribe(splits)
	workouts := make(chan *workout.Workout, 1)
	workoutSub := events.WorkoutFeed.Subscribe(workouts)

	go func() {
		defer snapSub.Unsubscribe()
		defer splitSub.Unsubscribe()
		defer workoutSub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapshots:
				if s.store != nil {
					s.store.SetLastSnapshot(s.Config.UserID, snap)
				}
				s.broadcast(websocketActionSnapshot, snap)
			case sp := <-splits:
				s.broadcast(websocketActionSplit, sp)
			case w := <-workouts:
				s.broadcast(websocketActionWorkout, w)
			}
		}
	}()
}

func (s *WebDaemon) broadcast(action websocketAction, payload any) {
	b, err := json.Marshal(broadcast{Action: action, Payload: payload})
	if err != nil {
		slog.Error("Failed to marshal broadcast", "action", action, "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(b); err != nil {
		slog.Warn("Failed to broadcast", "action", action, "error", err)
	}
}
