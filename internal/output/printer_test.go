package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/HexSleeves/forager/internal/bus"
)

func TestPrinterActiveOnlyInPlainMode(t *testing.T) {
	t.Helper()

	modes := []struct {
		mode   Mode
		name   string
		active bool
	}{
		{ModePlain, "plain", true},
		{ModeTUI, "tui", false},
		{ModeJSON, "json", false},
		{ModeQuiet, "quiet", false},
	}

	for _, m := range modes {
		t.Run(m.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewPrinterWithWriter(m.mode, false, &buf)
			p.Info("hello %s", "world")
			hasOutput := buf.Len() > 0
			if hasOutput != m.active {
				t.Errorf("mode=%s: expected active=%v, got output=%v (len=%d)",
					m.name, m.active, hasOutput, buf.Len())
			}
		})
	}
}

func TestPrinterDebugRequiresVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModePlain, false, &buf)
	p.Debug("hidden")
	if buf.Len() > 0 {
		t.Error("Debug printed without verbose")
	}

	buf.Reset()
	p2 := NewPrinterWithWriter(ModePlain, true, &buf)
	p2.Debug("shown")
	if buf.Len() == 0 {
		t.Error("Debug did not print with verbose")
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModePlain, false, &buf)
	p.Table(
		[]string{"Name", "Status"},
		[][]string{
			{"query1", "done"},
			{"query2", "failed"},
		},
	)
	out := buf.String()
	if len(out) == 0 {
		t.Error("Table produced no output")
	}
	// Should contain both data values
	if !bytes.Contains(buf.Bytes(), []byte("query1")) {
		t.Error("Table missing query1")
	}
	if !bytes.Contains(buf.Bytes(), []byte("query2")) {
		t.Error("Table missing query2")
	}
}

func TestPrinterKeyValue(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModePlain, false, &buf)
	p.KeyValue([][]string{
		{"Query", "abc123"},
		{"Status", "running"},
	})
	out := buf.String()
	if len(out) == 0 {
		t.Error("KeyValue produced no output")
	}
}

func TestStatusIcon(t *testing.T) {
	for _, status := range []string{"done", "running", "failed", "unknown"} {
		icon := StatusIcon(status)
		if icon == "" {
			t.Errorf("StatusIcon(%q) returned empty", status)
		}
	}
}

func TestPrinterBulletList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModePlain, false, &buf)
	p.BulletList([]BulletItem{
		{Text: "web_scraper", Icon: "🔧"},
		{Text: "Fetch and extract content", Icon: "", Level: 1},
	})
	if buf.Len() == 0 {
		t.Error("BulletList produced no output")
	}
}

func TestPrinterAnswer(t *testing.T) {
	var buf bytes.Buffer
	NewPrinterWithWriter(ModePlain, false, &buf).Answer("Paris")
	if !bytes.Contains(buf.Bytes(), []byte("Paris")) {
		t.Errorf("Answer box missing text: %q", buf.String())
	}

	buf.Reset()
	NewPrinterWithWriter(ModeQuiet, false, &buf).Answer("Paris")
	if buf.String() != "Paris\n" {
		t.Errorf("quiet Answer = %q, want bare text", buf.String())
	}

	buf.Reset()
	NewPrinterWithWriter(ModeJSON, false, &buf).Answer("Paris")
	if buf.Len() != 0 {
		t.Error("Answer printed in JSON mode")
	}
}

func TestPrinterErrorInQuietMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModeQuiet, false, &buf)
	p.Info("hidden")
	if buf.Len() != 0 {
		t.Error("Info printed in quiet mode")
	}
	p.Error("boom")
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Error("Error not printed in quiet mode")
	}
}

func TestPrinterAttach(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithWriter(ModePlain, false, &buf)
	b := bus.New(0)
	p.Attach(b)

	b.Publish(bus.Message{Type: bus.MsgDecisionReceived, QueryID: "q", Tool: "web_scraper",
		Payload: bus.DecisionReceived{ToolCall: true, Tool: "web_scraper"}})
	b.Publish(bus.Message{Type: bus.MsgToolCompleted, QueryID: "q", Tool: "web_scraper",
		Payload: bus.ToolCompleted{Duration: 12 * time.Millisecond, Output: "{}"}})

	out := buf.String()
	if !strings.Contains(out, "web_scraper") || !strings.Contains(out, "12ms") {
		t.Errorf("unexpected progress output: %q", out)
	}
}
