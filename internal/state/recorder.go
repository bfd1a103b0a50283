package state

import (
	"context"
	"io"
	"log"

	"github.com/HexSleeves/forager/internal/bus"
)

// Recorder writes query lifecycle events from the bus into the history.
// A failed write is logged; it never fails the query being recorded.
type Recorder struct {
	db     *DB
	logger *log.Logger
}

func NewRecorder(db *DB, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Recorder{db: db, logger: logger}
}

// Attach subscribes the recorder to every message on b.
func (r *Recorder) Attach(b *bus.MessageBus) {
	b.SubscribeAll(r.Handle)
}

// Handle records one message. Messages without a query ID are ignored.
func (r *Recorder) Handle(msg bus.Message) {
	if msg.QueryID == "" {
		return
	}
	ctx := context.Background()

	var err error
	switch p := msg.Payload.(type) {
	case bus.QueryStarted:
		err = r.db.CreateQuery(ctx, msg.QueryID, p.Query, p.Backend)
	case bus.DecisionReceived:
		if p.ToolCall {
			err = r.db.SetTool(ctx, msg.QueryID, p.Tool)
		}
	case bus.ToolCompleted:
		err = r.db.SetToolDuration(ctx, msg.QueryID, p.Duration)
	case bus.ToolFailed:
		err = r.db.SetToolDuration(ctx, msg.QueryID, p.Duration)
	case bus.QueryCompleted:
		err = r.db.CompleteQuery(ctx, msg.QueryID, p.Answer, p.Duration)
	case bus.QueryFailed:
		err = r.db.FailQuery(ctx, msg.QueryID, p.Kind, p.Error, p.Duration)
	}
	if err != nil {
		r.logger.Printf("⚠ History: failed to record %s for %s: %v", msg.Type, msg.QueryID, err)
		return
	}

	if _, err := r.db.AppendEvent(ctx, msg.QueryID, string(msg.Type), msg.Payload); err != nil {
		r.logger.Printf("⚠ History: failed to append %s for %s: %v", msg.Type, msg.QueryID, err)
	}
}
