package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		in   string
		want Line
	}{
		{"", Line{Kind: Empty}},
		{"   \t ", Line{Kind: Empty}},
		{"exit", Line{Kind: Exit}},
		{"  QUIT  ", Line{Kind: Exit}},
		{"Exit", Line{Kind: Exit}},
		{"exit now", Line{Kind: Query, Arg: "exit now"}},
		{"scrape https://example.com", Line{Kind: Scrape, Arg: "https://example.com"}},
		{"scrape    example.com  ", Line{Kind: Scrape, Arg: "example.com"}},
		{"scrape", Line{Kind: Query, Arg: "scrape"}},
		{"scrape   ", Line{Kind: Query, Arg: "scrape"}},
		{"Scrape https://example.com", Line{Kind: Query, Arg: "Scrape https://example.com"}},
		{"What is on example.com?", Line{Kind: Query, Arg: "What is on example.com?"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLine(tt.in), "ParseLine(%q)", tt.in)
	}
}

type recordingHandler struct {
	queries []string
	scrapes []string
	fail    string
}

func (h *recordingHandler) Query(_ context.Context, q string) error {
	h.queries = append(h.queries, q)
	if q == h.fail {
		return errors.New("query failed")
	}
	return nil
}

func (h *recordingHandler) Scrape(_ context.Context, url string) error {
	h.scrapes = append(h.scrapes, url)
	return nil
}

func TestLoop_DispatchesUntilExit(t *testing.T) {
	h := &recordingHandler{fail: "bad"}
	var out bytes.Buffer
	var errs []error
	loop := &Loop{
		In:      strings.NewReader("hello\n\nbad\nscrape example.com\nQuit\nnever\n"),
		Out:     &out,
		Prompt:  "> ",
		Handler: h,
		OnError: func(err error) { errs = append(errs, err) },
	}

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"hello", "bad"}, h.queries)
	assert.Equal(t, []string{"example.com"}, h.scrapes)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "query failed")
	assert.Equal(t, 5, strings.Count(out.String(), "> "))
}

func TestLoop_EOF(t *testing.T) {
	h := &recordingHandler{}
	loop := &Loop{In: strings.NewReader("one"), Out: &bytes.Buffer{}, Handler: h}
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"one"}, h.queries)
}

func TestLoop_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &recordingHandler{}
	loop := &Loop{In: strings.NewReader("one\n"), Out: &bytes.Buffer{}, Handler: h}
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
	assert.Empty(t, h.queries)
}
