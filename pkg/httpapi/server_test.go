package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	fx "github.com/weighworks/gatescale/pkg/framework"
	"github.com/weighworks/gatescale/pkg/gate"
	"github.com/weighworks/gatescale/pkg/scale"
)

// fakePort replays a canned byte stream and records writes.
type fakePort struct {
	r  *bytes.Reader
	mu sync.Mutex
	w  bytes.Buffer
}

func newFakePort(stream string) *fakePort {
	return &fakePort{r: bytes.NewReader([]byte(stream))}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.Write(b)
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.w.String()
}

func newTestServer(t *testing.T, stream string) (*Server, *fakePort) {
	t.Helper()
	port := newFakePort(stream)
	sc := scale.New(scale.DefaultSettings, port)
	gc := gate.NewController(gate.DefaultConfig, gate.LogOutput{}, fx.WallClock{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go gc.Run(ctx)

	return &Server{Scale: sc, Gate: gc}, port
}

func getJSON(t *testing.T, h http.Handler, path string, out interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestScaleConfig(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	var resp map[string]int
	getJSON(t, h, "/rest/scale_config", &resp)
	require.Equal(t, int(scale.DriverAndFXi), resp["s0"])
	require.Equal(t, int(scale.Baud19200), resp["s1"])

	getJSON(t, h, "/rest/scale_config?s0=7&s1=1&s2=1", &resp)
	require.Equal(t, int(scale.DriverSartorius), resp["s0"])
	require.Equal(t, int(scale.Baud9600), resp["s1"])
	require.Equal(t, int(scale.Format7N1), resp["s2"])

	settings := srv.Scale.Settings()
	require.Equal(t, scale.DriverSartorius, settings.Driver)
	require.Equal(t, scale.Baud9600, settings.Baudrate)
}

func TestScaleConfigSave(t *testing.T) {
	srv, _ := newTestServer(t, "")
	saved := false
	srv.SaveScale = func() error { saved = true; return nil }
	h := srv.Handler()

	var resp map[string]int
	getJSON(t, h, "/rest/scale_config?s1=0", &resp)
	require.False(t, saved)

	getJSON(t, h, "/rest/scale_config?ee=true", &resp)
	require.True(t, saved)
}

func TestScaleActionForceZero(t *testing.T) {
	srv, port := newTestServer(t, "")
	h := srv.Handler()

	var resp map[string]int
	getJSON(t, h, "/rest/scale_action?a0=1", &resp)
	require.Equal(t, 1, resp["a0"])
	require.Equal(t, "Z\r\n", port.written())
}

func TestScaleWeight(t *testing.T) {
	srv, _ := newTestServer(t, "12.5\n")
	srv.Scale.SelectDriver(scale.DriverGeneric)
	h := srv.Handler()

	// Before any measurement the value is null.
	var resp struct {
		W *float64 `json:"w"`
	}
	getJSON(t, h, "/rest/scale_weight", &resp)
	require.Nil(t, resp.W)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Scale.Run(ctx)

	getJSON(t, h, "/rest/scale_weight?wait_ms=2000", &resp)
	require.NotNil(t, resp.W)
	require.Equal(t, 12.5, *resp.W)

	getJSON(t, h, "/rest/scale_weight", &resp)
	require.NotNil(t, resp.W)
	require.Equal(t, 12.5, *resp.W)
}

func TestScaleWeightBadWait(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/rest/scale_weight?wait_ms=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateState(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	var resp map[string]int
	getJSON(t, h, "/rest/servo_gate_state", &resp)
	require.Equal(t, int(gate.StateDisabled), resp["g0"])

	getJSON(t, h, "/rest/servo_gate_state?g0=2", &resp)
	require.Eventually(t, func() bool {
		return srv.Gate.State() == gate.StateOpen
	}, time.Second, 10*time.Millisecond)

	getJSON(t, h, "/rest/servo_gate_state?r0=1.0", &resp)
	require.Eventually(t, func() bool {
		return srv.Gate.State() == gate.StateClose
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGateConfig(t *testing.T) {
	srv, _ := newTestServer(t, "")
	gateSaved := false
	srv.SaveGate = func() error { gateSaved = true; return nil }
	h := srv.Handler()

	var resp struct {
		C0 bool    `json:"c0"`
		C1 float64 `json:"c1"`
		C5 float64 `json:"c5"`
	}
	getJSON(t, h, "/rest/servo_gate_config", &resp)
	require.False(t, resp.C0)
	require.Equal(t, gate.DefaultConfig.Shutter0CloseDuty, resp.C1)

	getJSON(t, h, "/rest/servo_gate_config?c0=true&c1=0.11&c5=7.5&ee=1", &resp)
	require.True(t, resp.C0)
	require.Equal(t, 0.11, resp.C1)
	require.Equal(t, 7.5, resp.C5)
	require.True(t, gateSaved)

	cfg := srv.Gate.Config()
	require.True(t, cfg.Enable)
	require.Equal(t, 0.11, cfg.Shutter0CloseDuty)
	require.Equal(t, 7.5, cfg.CloseSpeedPctS)
}

func TestWeightStream(t *testing.T) {
	srv, _ := newTestServer(t, "27.35\n")
	srv.Scale.SelectDriver(scale.DriverGeneric)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Scale.Run(ctx)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	wsURL := "ws://" + u.Host + "/ws/weight"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		W float64 `json:"w"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, 27.35, msg.W)
}

func TestRoutesRegistered(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()
	for _, path := range []string{
		"/rest/scale_config",
		"/rest/scale_action",
		"/rest/scale_weight",
		"/rest/servo_gate_state",
		"/rest/servo_gate_config",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"), path)
	}
}
