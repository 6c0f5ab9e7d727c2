package chatclient

import (
	"sort"
	"sync"
	"time"

	"gatherhub/backend/internal/chat"
)

// Status of one locally tracked message
type Status string

const (
	// StatusPending: rendered optimistically, awaiting the server ack
	StatusPending Status = "pending"
	// StatusSent: confirmed with a durable id
	StatusSent Status = "sent"
	// StatusFailed: rejected; only a human action may re-trigger the send
	StatusFailed Status = "failed"
)

// ViewMessage is one entry in the reconciled message list
type ViewMessage struct {
	CorrelationID string
	MessageID     uint
	ScopeType     string
	ScopeID       string
	Sender        chat.SenderView
	Content       string
	Status        Status
	FailReason    string
	CreatedAt     time.Time
}

// View is the deterministic reducer state: an ordered, deduplicated
// merge of optimistic local sends with server acks and broadcasts. It is
// driven purely by applying events, so tests feed it synthetic sequences.
type View struct {
	mu sync.Mutex

	messages      []*ViewMessage
	byCorrelation map[string]*ViewMessage
	byID          map[uint]*ViewMessage

	// bounded id cache purely for duplicate-delivery detection
	seenCap  int
	seenFIFO []uint
	seenSet  map[uint]struct{}
}

// NewView creates a reducer with the given duplicate-detection capacity
func NewView(dedupeCap int) *View {
	if dedupeCap <= 0 {
		dedupeCap = 1000
	}
	return &View{
		byCorrelation: make(map[string]*ViewMessage),
		byID:          make(map[uint]*ViewMessage),
		seenCap:       dedupeCap,
		seenSet:       make(map[uint]struct{}),
	}
}

// AppendLocal inserts the optimistic placeholder for a send, rendered
// immediately while the server round-trip is in flight
func (v *View) AppendLocal(correlationID string, scope chat.Scope, sender chat.SenderView, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.byCorrelation[correlationID]; exists {
		return
	}

	m := &ViewMessage{
		CorrelationID: correlationID,
		ScopeType:     string(scope.Type),
		ScopeID:       scope.ID,
		Sender:        sender,
		Content:       content,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	v.messages = append(v.messages, m)
	v.byCorrelation[correlationID] = m
}

// ApplyAck resolves the placeholder matching the ack's correlation id,
// swapping in the durable id. A second ack or an ack that raced a
// broadcast is a no-op.
func (v *View) ApplyAck(p chat.MessageSentPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resolve(p.CorrelationID, p.MessageID, nil)
}

// ApplyError marks the placeholder failed with the server's reason. No
// automatic resend happens; the entry stays visible for the user.
func (v *View) ApplyError(p chat.MessageErrorPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.byCorrelation[p.CorrelationID]
	if !ok || m.Status == StatusSent {
		return
	}
	m.Status = StatusFailed
	m.FailReason = p.Reason
}

// ApplyBroadcast folds a new-message broadcast into the view. A broadcast
// carrying the correlation id of a live placeholder resolves it exactly
// like the direct ack would — that guards the race where the room fan-out
// beats the ack. Anything already seen is discarded as a duplicate.
func (v *View) ApplyBroadcast(p chat.NewMessagePayload) {
	v.mu.Lock()
	defer v.mu.Unlock()

	msg := p.Message

	if p.CorrelationID != "" {
		if _, ok := v.byCorrelation[p.CorrelationID]; ok {
			v.resolve(p.CorrelationID, msg.ID, &msg)
			return
		}
	}

	if v.seen(msg.ID) {
		return
	}

	v.insertRemote(&msg)
}

// MergeHistory folds a fetched history page into the view, used to repair
// gaps after a reconnect. Messages already present are skipped.
func (v *View) MergeHistory(page []chat.MessageView) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range page {
		if v.seen(page[i].ID) {
			continue
		}
		v.insertRemote(&page[i])
	}
}

// Messages returns the current ordered snapshot: confirmed messages in
// durable-id order, then unresolved placeholders in send order.
func (v *View) Messages() []ViewMessage {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]ViewMessage, len(v.messages))
	order := make([]*ViewMessage, len(v.messages))
	copy(order, v.messages)

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Status == StatusSent && b.Status == StatusSent {
			return a.MessageID < b.MessageID
		}
		if a.Status == StatusSent {
			return true
		}
		if b.Status == StatusSent {
			return false
		}
		return false // placeholders keep insertion order
	})

	for i, m := range order {
		out[i] = *m
	}
	return out
}

// Pending returns placeholders that are still unresolved or failed
func (v *View) Pending() []ViewMessage {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []ViewMessage
	for _, m := range v.messages {
		if m.Status != StatusSent {
			out = append(out, *m)
		}
	}
	return out
}

// resolve swaps a placeholder's local identity for the durable one
func (v *View) resolve(correlationID string, messageID uint, full *chat.MessageView) {
	m, ok := v.byCorrelation[correlationID]
	if !ok {
		return
	}
	if m.Status == StatusSent {
		// Already resolved by whichever of ack/broadcast arrived first
		return
	}
	m.MessageID = messageID
	m.Status = StatusSent
	m.FailReason = ""
	if full != nil {
		m.Content = full.Content
		m.Sender = full.Sender
		m.CreatedAt = full.CreatedAt
	}
	v.byID[messageID] = m
	v.remember(messageID)
}

func (v *View) insertRemote(msg *chat.MessageView) {
	m := &ViewMessage{
		MessageID: msg.ID,
		ScopeType: msg.ScopeType,
		ScopeID:   msg.ScopeID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Status:    StatusSent,
		CreatedAt: msg.CreatedAt,
	}
	v.messages = append(v.messages, m)
	v.byID[msg.ID] = m
	v.remember(msg.ID)
}

func (v *View) seen(id uint) bool {
	if _, ok := v.seenSet[id]; ok {
		return true
	}
	_, ok := v.byID[id]
	return ok
}

// remember records an id in the bounded duplicate-detection cache
func (v *View) remember(id uint) {
	if _, ok := v.seenSet[id]; ok {
		return
	}
	v.seenSet[id] = struct{}{}
	v.seenFIFO = append(v.seenFIFO, id)
	if len(v.seenFIFO) > v.seenCap {
		oldest := v.seenFIFO[0]
		v.seenFIFO = v.seenFIFO[1:]
		delete(v.seenSet, oldest)
	}
}
