// Package httpapi exposes the configuration and status REST endpoints
// plus a websocket stream of live measurements. The query-parameter
// names (s0..s2, a0, g0, r0, c0..c6, ee) are kept compatible with the
// firmware UI this daemon replaces.
package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/weighworks/gatescale/pkg/gate"
	"github.com/weighworks/gatescale/pkg/scale"
)

// Server serves the REST and websocket API.
type Server struct {
	Addr  string
	Scale *scale.Controller
	Gate  *gate.Controller

	// SaveScale and SaveGate persist the current settings on an
	// explicit save request (ee=true).
	SaveScale func() error
	SaveGate  func() error

	upgrader websocket.Upgrader
}

// Name implements framework.Named.
func (s *Server) Name() string { return "http" }

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	glog.Infof("http listening on %s", s.Addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return ctx.Err()
	}
	return err
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/scale_config", s.scaleConfig)
	mux.HandleFunc("/rest/scale_action", s.scaleAction)
	mux.HandleFunc("/rest/scale_weight", s.scaleWeight)
	mux.HandleFunc("/rest/servo_gate_state", s.gateState)
	mux.HandleFunc("/rest/servo_gate_config", s.gateConfig)
	mux.HandleFunc("/ws/weight", s.weightStream)
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("encode response: %v", err)
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// scaleConfig maps s0 (driver), s1 (baud rate), s2 (uart format) and
// ee (persist) and echoes the resulting settings.
func (s *Server) scaleConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := q.Get("s0"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			s.Scale.SelectDriver(scale.DriverID(id))
		}
	}
	if v := q.Get("s1"); v != "" {
		if b, err := strconv.Atoi(v); err == nil {
			if err := s.Scale.SetBaudrate(scale.Baudrate(b)); err != nil {
				glog.Errorf("set baudrate: %v", err)
			}
		}
	}
	if v := q.Get("s2"); v != "" {
		if f, err := strconv.Atoi(v); err == nil {
			if err := s.Scale.SetFormat(scale.UARTFormat(f)); err != nil {
				glog.Errorf("set uart format: %v", err)
			}
		}
	}
	if parseBool(q.Get("ee")) && s.SaveScale != nil {
		if err := s.SaveScale(); err != nil {
			glog.Errorf("save scale settings: %v", err)
		}
	}

	settings := s.Scale.Settings()
	writeJSON(w, map[string]interface{}{
		"s0": int(settings.Driver),
		"s1": int(settings.Baudrate),
		"s2": int(settings.Format),
	})
}

// Scale actions.
const (
	scaleActionNone = iota
	scaleActionForceZero
)

func (s *Server) scaleAction(w http.ResponseWriter, r *http.Request) {
	action := scaleActionNone
	if v := r.URL.Query().Get("a0"); v != "" {
		if a, err := strconv.Atoi(v); err == nil {
			action = a
		}
	}
	if action == scaleActionForceZero {
		if err := s.Scale.ForceZero(); err != nil {
			glog.Warningf("force zero: %v", err)
		}
	}
	writeJSON(w, map[string]int{"a0": action})
}

// scaleWeight returns the current measurement, or with wait_ms set,
// the next one published within that bound. An undefined or timed-out
// measurement is null.
func (s *Server) scaleWeight(w http.ResponseWriter, r *http.Request) {
	var (
		value float64
		valid bool
	)
	if v := r.URL.Query().Get("wait_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			http.Error(w, "bad wait_ms", http.StatusBadRequest)
			return
		}
		value, valid = s.Scale.WaitNext(r.Context(), time.Duration(ms)*time.Millisecond)
	} else {
		value = s.Scale.Current()
		valid = !math.IsNaN(value)
	}

	resp := struct {
		W *float64 `json:"w"`
	}{}
	if valid {
		resp.W = &value
	}
	writeJSON(w, resp)
}

// gateState maps g0 (discrete state) or r0 (ratio) and echoes the
// reported state.
func (s *Server) gateState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if v := q.Get("g0"); v != "" {
		if st, err := strconv.Atoi(v); err == nil {
			if err := s.Gate.SetState(r.Context(), gate.State(st), false); err != nil {
				glog.Warningf("set gate state: %v", err)
			}
		}
	} else if v := q.Get("r0"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil {
			if err := s.Gate.SetRatio(r.Context(), ratio, false); err != nil {
				glog.Warningf("set gate ratio: %v", err)
			}
		}
	}
	writeJSON(w, map[string]int{"g0": int(s.Gate.State())})
}

// gateConfig maps c0 (enable), c1..c4 (duty endpoints), c5/c6 (speeds)
// and ee (persist), and echoes the full configuration.
func (s *Server) gateConfig(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := s.Gate.Config()
	setFloat := func(key string, dst *float64) {
		if v := q.Get(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	if v := q.Get("c0"); v != "" {
		cfg.Enable = parseBool(v)
	}
	setFloat("c1", &cfg.Shutter0CloseDuty)
	setFloat("c2", &cfg.Shutter0OpenDuty)
	setFloat("c3", &cfg.Shutter1CloseDuty)
	setFloat("c4", &cfg.Shutter1OpenDuty)
	setFloat("c5", &cfg.CloseSpeedPctS)
	setFloat("c6", &cfg.OpenSpeedPctS)
	s.Gate.SetConfig(cfg)

	if parseBool(q.Get("ee")) && s.SaveGate != nil {
		if err := s.SaveGate(); err != nil {
			glog.Errorf("save gate config: %v", err)
		}
	}

	writeJSON(w, map[string]interface{}{
		"c0": cfg.Enable,
		"c1": cfg.Shutter0CloseDuty,
		"c2": cfg.Shutter0OpenDuty,
		"c3": cfg.Shutter1CloseDuty,
		"c4": cfg.Shutter1OpenDuty,
		"c5": cfg.CloseSpeedPctS,
		"c6": cfg.OpenSpeedPctS,
	})
}

// weightStream pushes every published measurement over a websocket.
func (s *Server) weightStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads are only serviced to detect the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		v, ok := s.Scale.WaitNext(ctx, 0)
		if !ok {
			return
		}
		if err := conn.WriteJSON(map[string]float64{"w": v}); err != nil {
			glog.V(2).Infof("weight stream closed: %v", err)
			return
		}
	}
}
