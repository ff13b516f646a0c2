// Package gate provides the gate commands of the operator shell.
package gate

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/weighworks/gatescale/pkg/cli/sh"
)

var stateNames = map[float64]string{0: "Disabled", 1: "Close", 2: "Open"}

func formatState(resp map[string]interface{}) string {
	if g, ok := resp["g0"].(float64); ok {
		if name, ok := stateNames[g]; ok {
			return name
		}
	}
	return "Unknown"
}

func setState(c *ishell.Context, state string) {
	sh.Call(c, "/rest/servo_gate_state", url.Values{"g0": {state}}, formatState)
}

var (
	// OpenCmd opens the gate.
	OpenCmd = ishell.Cmd{
		Name: "gate.open",
		Help: "",
		Func: func(c *ishell.Context) { setState(c, "2") },
	}

	// CloseCmd closes the gate.
	CloseCmd = ishell.Cmd{
		Name: "gate.close",
		Help: "",
		Func: func(c *ishell.Context) { setState(c, "1") },
	}

	// DisableCmd releases the gate without moving it.
	DisableCmd = ishell.Cmd{
		Name: "gate.disable",
		Help: "",
		Func: func(c *ishell.Context) { setState(c, "0") },
	}

	// RatioCmd moves the gate to a proportional position.
	RatioCmd = ishell.Cmd{
		Name: "gate.ratio",
		Help: "RATIO (0=open .. 1=closed)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("RATIO required"))
				return
			}
			if _, err := strconv.ParseFloat(c.Args[0], 64); err != nil {
				c.Err(fmt.Errorf("invalid RATIO: %v", err))
				return
			}
			sh.Call(c, "/rest/servo_gate_state", url.Values{"r0": {c.Args[0]}}, formatState)
		},
	}

	// StateCmd reports the gate state.
	StateCmd = ishell.Cmd{
		Name: "gate.state",
		Help: "",
		Func: func(c *ishell.Context) {
			sh.Call(c, "/rest/servo_gate_state", nil, formatState)
		},
	}

	// ConfigCmd reads or updates the gate configuration.
	ConfigCmd = ishell.Cmd{
		Name: "gate.config",
		Help: "[enable BOOL] [c1..c6 VALUE] [save]",
		Func: func(c *ishell.Context) {
			q := url.Values{}
			args := c.Args
			for len(args) > 0 {
				key := args[0]
				args = args[1:]
				if key == "save" {
					q.Set("ee", "true")
					continue
				}
				if len(args) == 0 {
					c.Err(fmt.Errorf("%s requires a value", key))
					return
				}
				val := args[0]
				args = args[1:]
				switch key {
				case "enable":
					q.Set("c0", val)
				case "c1", "c2", "c3", "c4", "c5", "c6":
					q.Set(key, val)
				default:
					c.Err(fmt.Errorf("unknown setting %q", key))
					return
				}
			}
			sh.Call(c, "/rest/servo_gate_config", q, func(resp map[string]interface{}) string {
				return fmt.Sprintf(
					"enable=%v shutter0=%v..%v shutter1=%v..%v speeds close=%v open=%v",
					resp["c0"], resp["c2"], resp["c1"], resp["c4"], resp["c3"],
					resp["c5"], resp["c6"])
			})
		},
	}
)

func init() {
	sh.AddCmds(
		&OpenCmd,
		&CloseCmd,
		&DisableCmd,
		&RatioCmd,
		&StateCmd,
		&ConfigCmd,
	)
}
