// Package sh provides the ishell backed operator shell talking to a
// gatescaled instance over its REST and websocket API.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/gorilla/websocket"
)

// Shell is the interactive shell state shared by all commands.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Client *Client
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool
	serverAddr = "127.0.0.1:8080"

	// commands registered by the cmds packages
	commands []*ishell.Cmd
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&serverAddr, "server", serverAddr, "gatescaled address (host:port).")
}

// AddCmds is used by command providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell bound to addr.
func New(addr string) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Client: NewClient(addr),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", addr))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Call performs a REST request and prints the response per the output
// mode. friendly renders the decoded response for humans.
func Call(c *ishell.Context, path string, query url.Values, friendly func(map[string]interface{}) string) {
	s := ShellFrom(c)
	resp, err := s.Client.Get(path, query)
	if err != nil {
		c.Err(err)
		return
	}
	if s.OutputJSON {
		out, err := json.Marshal(resp)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if friendly != nil {
		c.Println(friendly(resp))
		return
	}
	c.Println("OK")
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(serverAddr).Run(flag.Args()...)
}

// Client is a thin REST and websocket client for gatescaled.
type Client struct {
	Addr string

	httpClient *http.Client
}

// NewClient creates a Client for addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		Addr:       addr,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get performs a GET request and decodes the JSON response.
func (c *Client) Get(path string, query url.Values) (map[string]interface{}, error) {
	u := url.URL{Scheme: "http", Host: c.Addr, Path: path, RawQuery: query.Encode()}
	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%s: %s", resp.Status, body)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch streams measurements from the websocket endpoint, invoking fn
// per reading until fn returns false or the stream ends.
func (c *Client) Watch(fn func(weight float64) bool) error {
	u := url.URL{Scheme: "ws", Host: c.Addr, Path: "/ws/weight"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var msg struct {
			W float64 `json:"w"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if !fn(msg.W) {
			return nil
		}
	}
}
