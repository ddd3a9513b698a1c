package qlab

import (
	"encoding/json"
	"net"
	"strings"
	"sync"
)

// MockServer answers the subset of the QLab OSC API this package uses. Cue
// state is exported so tests can drive it.
type MockServer struct {
	listener net.Listener

	mu    sync.Mutex
	conns []net.Conn

	Version    string
	Workspaces []Workspace
	CueLists   map[string][]Cue
	Running    map[string]bool
	Elapsed    map[string]float64
	Started    []string

	short       map[string]float64
	runningSeen map[string]int
	stopped     []string
}

func NewMockServer() (*MockServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	m := &MockServer{
		listener: ln,
		Version:  "5.0.0",
		CueLists: make(map[string][]Cue),
		Running:  make(map[string]bool),
		Elapsed:  make(map[string]float64),

		short:       make(map[string]float64),
		runningSeen: make(map[string]int),
	}
	go m.serve()
	return m, nil
}

func (m *MockServer) Port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

func (m *MockServer) Close() error {
	err := m.listener.Close()
	m.mu.Lock()
	for _, conn := range m.conns {
		conn.Close()
	}
	m.mu.Unlock()
	return err
}

// SetCue updates a cue's running state and elapsed time.
func (m *MockServer) SetCue(number string, running bool, elapsed float64) {
	m.mu.Lock()
	m.Running[number] = running
	m.Elapsed[number] = elapsed
	m.mu.Unlock()
}

func (m *MockServer) StartedCues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Started...)
}

// SetShort makes number finish as soon as it starts, leaving elapsed as its
// action elapsed time.
func (m *MockServer) SetShort(number string, elapsed float64) {
	m.mu.Lock()
	m.short[number] = elapsed
	m.mu.Unlock()
}

// RunningSeen counts the isRunning queries for number answered with true.
func (m *MockServer) RunningSeen(number string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningSeen[number]
}

func (m *MockServer) StoppedCues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.stopped...)
}

func (m *MockServer) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
		go m.handleConn(conn)
	}
}

func (m *MockServer) handleConn(conn net.Conn) {
	buf := make([]byte, 0, 65536)
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)
		for {
			frame, rest, ok := nextFrame(buf)
			if !ok {
				break
			}
			buf = rest
			msg, err := decodeMessage(frame)
			if err != nil {
				continue
			}
			m.handle(conn, msg)
		}
	}
}

func (m *MockServer) reply(conn net.Conn, addr, wsID, status string, data any) {
	raw, _ := json.Marshal(data)
	body, _ := json.Marshal(Reply{WorkspaceID: wsID, Address: addr, Status: status, Data: raw})
	conn.Write(slipEncode(message{addr: "/reply" + addr, args: []any{string(body)}}.encode()))
}

func (m *MockServer) handle(conn net.Conn, msg message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.addr {
	case "/version":
		m.reply(conn, msg.addr, "", "ok", m.Version)
		return
	case "/workspaces":
		m.reply(conn, msg.addr, "", "ok", m.Workspaces)
		return
	}

	// /workspace/{id}/{rest...}
	parts := strings.SplitN(msg.addr, "/", 4)
	if len(parts) < 4 || parts[1] != "workspace" {
		return
	}
	wsID, rest := parts[2], parts[3]

	switch {
	case rest == "connect":
		m.reply(conn, msg.addr, wsID, "ok", "ok")
	case rest == "cueLists":
		cues := m.CueLists[wsID]
		if cues == nil {
			cues = []Cue{}
		}
		m.reply(conn, msg.addr, wsID, "ok", cues)
	case strings.HasPrefix(rest, "cue/"):
		sub := strings.SplitN(rest, "/", 3)
		if len(sub) < 3 {
			return
		}
		m.handleCue(conn, msg.addr, wsID, sub[1], sub[2])
	default:
		m.reply(conn, msg.addr, wsID, "ok", nil)
	}
}

func (m *MockServer) handleCue(conn net.Conn, addr, wsID, number, action string) {
	switch action {
	case "start":
		m.Started = append(m.Started, number)
		if elapsed, ok := m.short[number]; ok {
			m.Running[number] = false
			m.Elapsed[number] = elapsed
			return
		}
		m.Running[number] = true
		m.Elapsed[number] = 0
	case "stop":
		m.stopped = append(m.stopped, number)
		m.Running[number] = false
	case "isRunning":
		if m.Running[number] {
			m.runningSeen[number]++
		}
		m.reply(conn, addr, wsID, "ok", m.Running[number])
	case "actionElapsed":
		if _, ok := m.Elapsed[number]; !ok {
			m.reply(conn, addr, wsID, "not found", nil)
			return
		}
		m.reply(conn, addr, wsID, "ok", m.Elapsed[number])
	case "name":
		if cue := findCue(m.CueLists[wsID], number); cue != nil {
			m.reply(conn, addr, wsID, "ok", cue.Name)
			return
		}
		m.reply(conn, addr, wsID, "not found", nil)
	}
}

func findCue(cues []Cue, number string) *Cue {
	for i := range cues {
		if cues[i].Number == number {
			return &cues[i]
		}
		if found := findCue(cues[i].Cues, number); found != nil {
			return found
		}
	}
	return nil
}
