// Package scale provides the scale commands of the operator shell.
package scale

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/weighworks/gatescale/pkg/cli/sh"
)

func formatWeight(resp map[string]interface{}) string {
	if w, ok := resp["w"].(float64); ok {
		return fmt.Sprintf("%.3f", w)
	}
	return "no measurement"
}

var (
	// WeightCmd reads the current or next measurement.
	WeightCmd = ishell.Cmd{
		Name:    "weight",
		Aliases: []string{"w"},
		Help:    "[WAIT_MS]",
		Func: func(c *ishell.Context) {
			q := url.Values{}
			if len(c.Args) > 0 {
				if _, err := strconv.Atoi(c.Args[0]); err != nil {
					c.Err(fmt.Errorf("invalid WAIT_MS: %v", err))
					return
				}
				q.Set("wait_ms", c.Args[0])
			}
			sh.Call(c, "/rest/scale_weight", q, formatWeight)
		},
	}

	// WatchCmd streams measurements over the websocket.
	WatchCmd = ishell.Cmd{
		Name: "watch",
		Help: "[COUNT]",
		Func: func(c *ishell.Context) {
			count := 10
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil || n <= 0 {
					c.Err(fmt.Errorf("invalid COUNT"))
					return
				}
				count = n
			}
			s := sh.ShellFrom(c)
			err := s.Client.Watch(func(w float64) bool {
				if s.OutputJSON {
					c.Printf("{\"w\":%g}\n", w)
				} else {
					c.Printf("%.3f\n", w)
				}
				count--
				return count > 0
			})
			if err != nil {
				c.Err(err)
			}
		},
	}

	// ZeroCmd sends the force zero action.
	ZeroCmd = ishell.Cmd{
		Name:    "zero",
		Aliases: []string{"z"},
		Help:    "",
		Func: func(c *ishell.Context) {
			q := url.Values{"a0": {"1"}}
			sh.Call(c, "/rest/scale_action", q, func(map[string]interface{}) string {
				return "OK"
			})
		},
	}

	// ConfigCmd reads or updates the scale configuration.
	ConfigCmd = ishell.Cmd{
		Name: "scale.config",
		Help: "[driver ID] [baud N] [format N] [save]",
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
				case "driver":
					q.Set("s0", val)
				case "baud":
					q.Set("s1", val)
				case "format":
					q.Set("s2", val)
				default:
					c.Err(fmt.Errorf("unknown setting %q", key))
					return
				}
			}
			sh.Call(c, "/rest/scale_config", q, func(resp map[string]interface{}) string {
				return fmt.Sprintf("driver=%v baud=%v format=%v",
					resp["s0"], resp["s1"], resp["s2"])
			})
		},
	}
)

func init() {
	sh.AddCmds(
		&WeightCmd,
		&WatchCmd,
		&ZeroCmd,
		&ConfigCmd,
	)
}
