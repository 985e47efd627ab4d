package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/roulette/pkg/chips"
	"github.com/cbodonnell/roulette/pkg/config"
	"github.com/cbodonnell/roulette/pkg/game"
	"github.com/cbodonnell/roulette/pkg/history"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/state"
	"github.com/cbodonnell/roulette/pkg/table"
	"github.com/cbodonnell/roulette/pkg/wheel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	lock     sync.Mutex
	commands []game.Command
	result   game.CommandResult
	err      error
}

func (f *fakeCommander) Submit(ctx context.Context, cmd game.Command) (game.CommandResult, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.commands = append(f.commands, cmd)
	return f.result, f.err
}

func (f *fakeCommander) last() game.Command {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.commands[len(f.commands)-1]
}

var testLogger = log.New(io.Discard, "", 0, log.LogLevelError)

func newTestServer(t *testing.T, commander *fakeCommander, stateManager state.StateManager) *httptest.Server {
	t.Helper()
	if stateManager == nil {
		stateManager = state.NewInMemoryStateManager()
	}
	srv := httptest.NewServer(NewHandler(NewAPIServerOptions{
		Commander:    commander,
		StateManager: stateManager,
		Logger:       testLogger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method string, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, b
}

func TestAPI_commands(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		want    game.Command
		wantErr bool
	}{
		{
			name:   "place bet",
			method: http.MethodPost,
			path:   "/bets",
			body:   `{"spotID":"red","denomination":50}`,
			want:   game.Command{Type: game.CommandPlaceBet, SpotID: "red", Denomination: chips.Denomination50},
		},
		{
			name:   "place bet by point",
			method: http.MethodPost,
			path:   "/bets",
			body:   pointBody(t, table.StraightID(17)),
			want:   game.Command{Type: game.CommandPlaceBet, SpotID: table.StraightID(17)},
		},
		{
			name:   "remove bet",
			method: http.MethodDelete,
			path:   "/bets/split-1-2",
			want:   game.Command{Type: game.CommandRemoveBet, SpotID: "split-1-2"},
		},
		{
			name:   "cancel bets",
			method: http.MethodDelete,
			path:   "/bets",
			want:   game.Command{Type: game.CommandCancelBets},
		},
		{
			name:   "move chip",
			method: http.MethodPost,
			path:   "/bets/move",
			body:   `{"from":"odd","to":"even"}`,
			want:   game.Command{Type: game.CommandMoveChip, SpotID: "odd", ToSpotID: "even"},
		},
		{
			name:   "select chip",
			method: http.MethodPost,
			path:   "/chip",
			body:   `{"denomination":200}`,
			want:   game.Command{Type: game.CommandSelectChip, Denomination: chips.Denomination200},
		},
		{
			name:   "add funds",
			method: http.MethodPost,
			path:   "/funds",
			body:   `{"amount":300}`,
			want:   game.Command{Type: game.CommandAddFunds, Amount: 300},
		},
		{
			name:   "spin",
			method: http.MethodPost,
			path:   "/spin",
			want:   game.Command{Type: game.CommandSpin},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commander := &fakeCommander{result: game.CommandResult{Accepted: true, Balance: 1000}}
			srv := newTestServer(t, commander, nil)

			res, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			require.Equal(t, http.StatusOK, res.StatusCode, string(body))
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
			assert.Equal(t, tt.want, commander.last())

			var result game.CommandResult
			require.NoError(t, json.Unmarshal(body, &result))
			assert.True(t, result.Accepted)
		})
	}
}

// pointBody returns a bet request that targets the center of a spot.
func pointBody(t *testing.T, spotID string) string {
	t.Helper()
	spot := table.StandardLayout().Spot(spotID)
	require.NotNil(t, spot)
	b, err := json.Marshal(map[string]float64{
		"x": spot.Rect.X + spot.Rect.W/2,
		"y": spot.Rect.Y + spot.Rect.H/2,
	})
	require.NoError(t, err)
	return string(b)
}

func TestAPI_badRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "malformed body", method: http.MethodPost, path: "/bets", body: `{`},
		{name: "no spot", method: http.MethodPost, path: "/bets", body: `{"denomination":10}`},
		{name: "point off table", method: http.MethodPost, path: "/bets", body: `{"x":-5,"y":-5}`},
		{name: "move without target", method: http.MethodPost, path: "/bets/move", body: `{"from":"odd"}`},
		{name: "bad limit", method: http.MethodGet, path: "/history?limit=x"},
		{name: "bad point", method: http.MethodGet, path: "/layout?x=a&y=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commander := &fakeCommander{result: game.CommandResult{Accepted: true}}
			srv := newTestServer(t, commander, nil)

			res, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
		})
	}
}

func TestAPI_rejections(t *testing.T) {
	tests := []struct {
		name       string
		result     game.CommandResult
		err        error
		wantStatus int
	}{
		{name: "table state", result: game.CommandResult{Reason: "insufficient_funds"}, wantStatus: http.StatusConflict},
		{name: "request", result: game.CommandResult{Reason: "unknown_spot"}, wantStatus: http.StatusBadRequest},
		{name: "stopped", err: game.ErrStopped, wantStatus: http.StatusServiceUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commander := &fakeCommander{result: tt.result, err: tt.err}
			srv := newTestServer(t, commander, nil)

			res, body := do(t, http.MethodPost, srv.URL+"/bets", `{"spotID":"red"}`)
			assert.Equal(t, tt.wantStatus, res.StatusCode, string(body))
		})
	}
}

func TestAPI_state(t *testing.T) {
	stateManager := state.NewInMemoryStateManager()
	require.NoError(t, stateManager.Set(context.Background(), &state.TableState{
		Phase:      "orbit",
		Balance:    640,
		TotalWager: 60,
		Locked:     true,
	}))
	srv := newTestServer(t, &fakeCommander{}, stateManager)

	res, body := do(t, http.MethodGet, srv.URL+"/state", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var s state.TableState
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "orbit", s.Phase)

	res, body = do(t, http.MethodGet, srv.URL+"/balance", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"balance":640,"totalWager":60,"locked":true}`, string(body))
}

func TestAPI_historyAndStats(t *testing.T) {
	records := []history.GameRecord{{ID: 0, WinningNumber: 3}, {ID: 1, WinningNumber: 9}, {ID: 2, WinningNumber: 27}}
	stats := &history.Stats{TotalGames: 3, TotalLosses: 3}
	commander := &fakeCommander{result: game.CommandResult{Accepted: true, History: records, Stats: stats}}
	srv := newTestServer(t, commander, nil)

	res, body := do(t, http.MethodGet, srv.URL+"/history?limit=2", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got []history.GameRecord
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].WinningNumber)
	assert.Equal(t, game.CommandHistory, commander.last().Type)

	res, body = do(t, http.MethodGet, srv.URL+"/stats", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var gotStats history.Stats
	require.NoError(t, json.Unmarshal(body, &gotStats))
	assert.Equal(t, 3, gotStats.TotalGames)
}

func TestAPI_layout(t *testing.T) {
	srv := newTestServer(t, &fakeCommander{}, nil)

	res, body := do(t, http.MethodGet, srv.URL+"/layout", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var spots []table.Spot
	require.NoError(t, json.Unmarshal(body, &spots))
	assert.Len(t, spots, len(table.StandardLayout().Spots()))

	red := table.StandardLayout().Spot("red")
	res, body = do(t, http.MethodGet, srv.URL+"/layout?x="+ftoa(red.Rect.X+red.Rect.W/2)+"&y="+ftoa(red.Rect.Y+red.Rect.H/2), "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var spot table.Spot
	require.NoError(t, json.Unmarshal(body, &spot))
	assert.Equal(t, "red", spot.ID)

	res, _ = do(t, http.MethodGet, srv.URL+"/layout?x=-1&y=-1", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func ftoa(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestAPI_cors(t *testing.T) {
	srv := newTestServer(t, &fakeCommander{}, nil)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/spin", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestAPI_methodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeCommander{}, nil)
	res, _ := do(t, http.MethodGet, srv.URL+"/spin", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestAPI_withGameLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TickInterval = time.Millisecond
	cfg.Wheel.MinOrbitDuration = 1
	cfg.Wheel.MaxOrbitDuration = 1
	m := game.NewManager(game.NewManagerOptions{
		Config: cfg,
		Source: wheel.DeterministicSource{Number: 17},
		Logger: testLogger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	srv := httptest.NewServer(NewHandler(NewAPIServerOptions{
		Commander:    m,
		StateManager: m.StateManager(),
		Layout:       m.Layout(),
		Logger:       testLogger,
	}))
	defer srv.Close()

	res, body := do(t, http.MethodPost, srv.URL+"/bets", `{"spotID":"black","denomination":100}`)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = do(t, http.MethodPost, srv.URL+"/spin", "")
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, _ = do(t, http.MethodPost, srv.URL+"/spin", "")
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	require.Eventually(t, func() bool {
		_, body := do(t, http.MethodGet, srv.URL+"/balance", "")
		var b struct {
			Balance int `json:"balance"`
		}
		return json.Unmarshal(body, &b) == nil && b.Balance == 1100
	}, 10*time.Second, 10*time.Millisecond)
}
