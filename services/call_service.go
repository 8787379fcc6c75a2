package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/metrics"
	"chatsync_server/models"

	"go.uber.org/zap"
)

// Call SDK event names
const (
	CallEventEnded     = "ended"
	CallEventMissed    = "missed"
	CallEventDeclined  = "declined"
	CallEventTimeout   = "timeout"
	CallEventCancelled = "cancelled"
	CallEventBusy      = "busy"
	CallEventError     = "error"
)

// CallEvent is one callback of the call SDK. Events are edge-triggered: each is delivered once.
type CallEvent struct {
	CallID string `json:"callId"`
	RoomID string `json:"roomId"`
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

// CallService keeps the call log of a room. Signaling is done by the call SDK on the devices;
// only the outcome is recorded here.
type CallService struct {
	store   docstore.LiveStore
	chat    *ChatService
	ids     *idgen.Generator
	metrics *metrics.Metrics
	logger  *zap.Logger

	// events for one call are applied one at a time
	locks callLocks
}

type callLock struct {
	sync.Mutex
	waiters int
}

// callLocks hands out one mutex per call id and forgets it once nobody holds or waits on it
type callLocks struct {
	mu    sync.Mutex
	calls map[string]*callLock
}

func (l *callLocks) lock(callID string) func() {
	l.mu.Lock()
	if l.calls == nil {
		l.calls = make(map[string]*callLock)
	}
	cl, ok := l.calls[callID]
	if !ok {
		cl = &callLock{}
		l.calls[callID] = cl
	}
	cl.waiters++
	l.mu.Unlock()

	cl.Lock()
	return func() {
		cl.Unlock()
		l.mu.Lock()
		cl.waiters--
		if cl.waiters == 0 {
			delete(l.calls, callID)
		}
		l.mu.Unlock()
	}
}

func NewCallService(store docstore.LiveStore, chat *ChatService, ids *idgen.Generator, m *metrics.Metrics, logger *zap.Logger) *CallService {
	return &CallService{store: store, chat: chat, ids: ids, metrics: m, logger: logger.Named("calls")}
}

func callRef(roomID, callID string) docstore.Ref {
	return docstore.Doc(models.CallsPath(roomID), callID)
}

// StartCall records an ongoing call and posts a call message. With no targets every other member
// of the room is invited, in room order.
func (s *CallService) StartCall(ctx context.Context, roomID, callerID, callType string, targetIDs []string) (*models.CallSession, error) {
	if !models.IsValidCallType(callType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCallType, callType)
	}
	room, err := loadRoom(ctx, s.store, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(callerID) {
		return nil, ErrNotMember
	}
	if len(targetIDs) == 0 {
		for _, uid := range room.MemberIDs {
			if uid != callerID {
				targetIDs = append(targetIDs, uid)
			}
		}
	}

	call := models.CallSession{
		CallID:    s.ids.NewID(),
		RoomID:    roomID,
		CallerID:  callerID,
		TargetIDs: targetIDs,
		CallType:  callType,
		Status:    models.CallStatusOngoing,
		Timestamp: s.ids.Now(),
	}
	if err := s.putCall(ctx, call); err != nil {
		return nil, err
	}
	s.logger.Info("📞 Call started",
		zap.String("roomId", roomID),
		zap.String("callId", call.CallID),
		zap.String("callType", callType),
		zap.Int("targets", len(targetIDs)))

	if _, err := s.chat.SendCallMessage(ctx, roomID, callerID, call.CallID, callType, call.Status); err != nil {
		return nil, err
	}
	s.metrics.CallEvent("started")
	return &call, nil
}

// GetCall reads one call log entry
func (s *CallService) GetCall(ctx context.Context, roomID, callID string) (*models.CallSession, error) {
	if roomID == "" || callID == "" {
		return nil, ErrCallNotFound
	}
	item, err := s.store.Get(ctx, callRef(roomID, callID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	var call models.CallSession
	if err := docstore.Decode(item, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

func (s *CallService) putCall(ctx context.Context, call models.CallSession) error {
	item, err := docstore.Encode(call)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, callRef(call.RoomID, call.CallID), item); err != nil {
		return fmt.Errorf("failed to store call: %w", err)
	}
	return nil
}

// terminalStatus maps an SDK event to the status it ends the call with
func terminalStatus(event string) (string, bool) {
	switch event {
	case CallEventEnded:
		return models.CallStatusEnded, true
	case CallEventMissed, CallEventDeclined, CallEventTimeout, CallEventCancelled, CallEventBusy:
		return models.CallStatusMissed, true
	}
	return "", false
}

// HandleEvent applies an SDK callback to the call log. A terminal event closes the session and
// posts a call message with the final status; later events for the same call are ignored, including
// duplicates delivered concurrently to this process. Error events are only logged.
func (s *CallService) HandleEvent(ctx context.Context, ev CallEvent) (*models.CallSession, error) {
	status, terminal := terminalStatus(ev.Event)
	if !terminal && ev.Event != CallEventError {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCallEvent, ev.Event)
	}
	unlock := s.locks.lock(ev.RoomID + "/" + ev.CallID)
	defer unlock()

	call, err := s.GetCall(ctx, ev.RoomID, ev.CallID)
	if err != nil {
		return nil, err
	}
	s.metrics.CallEvent(ev.Event)

	if ev.Event == CallEventError {
		s.logger.Error("❌ Call SDK reported an error",
			zap.String("callId", ev.CallID),
			zap.String("reason", ev.Reason))
		return call, nil
	}
	if call.IsTerminal() {
		s.logger.Debug("Ignoring event for finished call", zap.String("callId", ev.CallID), zap.String("event", ev.Event))
		return call, nil
	}

	mutations := []docstore.Mutation{docstore.Set(docstore.String(status), "status")}
	reason := ev.Reason
	if reason == "" {
		reason = ev.Event
	}
	mutations = append(mutations, docstore.Set(docstore.String(reason), "endReason"))
	err = s.store.Update(ctx, callRef(ev.RoomID, ev.CallID), mutations...)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update call: %w", err)
	}
	call.Status = status
	call.EndReason = reason

	if _, err := s.chat.SendCallMessage(ctx, ev.RoomID, call.CallerID, call.CallID, call.CallType, status); err != nil {
		return nil, err
	}
	s.logger.Info("📴 Call finished", zap.String("callId", call.CallID), zap.String("status", status))
	return call, nil
}
