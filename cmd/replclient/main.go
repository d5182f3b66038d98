// Command replclient is a manual bubbletea test client for exercising a
// running gateway/game/event deployment by hand — not part of the core
// service surface, adapted from the teacher's lobby-menu/active-game
// screen-state shape but speaking this repo's own message catalog.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"pokercore/internal/gateway"
	"pokercore/internal/rpc"
)

type menuOption string

const (
	optionListTables  menuOption = "List Tables"
	optionCreateTable menuOption = "Create Table"
	optionJoinTable   menuOption = "Join Table"
	optionSetReady    menuOption = "Set Ready"
	optionSubscribe   menuOption = "Subscribe to Table"
	optionAct         menuOption = "Send Action"
	optionQuit        menuOption = "Quit"
)

var mainMenu = []menuOption{
	optionListTables, optionCreateTable, optionJoinTable,
	optionSetReady, optionSubscribe, optionAct, optionQuit,
}

type screenState int

const (
	stateMainMenu screenState = iota
	stateInput
)

// pendingInput names which field the user is currently typing, so Update
// knows what to do with the next Enter.
type pendingInput int

const (
	inputNone pendingInput = iota
	inputTableID
	inputSeatID
	inputActionName
	inputActionAmount
)

type model struct {
	ctx        context.Context
	game       *rpc.Client
	userID     string
	wsURL      string
	ws         *websocket.Conn
	frames     chan gateway.ServerMessage

	cursor  int
	state   screenState
	pending pendingInput
	input   string

	tableID string
	seatID  int
	action  string

	status string
	err    error
}

type frameMsg gateway.ServerMessage
type errMsg error

func main() {
	userID := flag.String("user", "", "user id (also the static-secret JWT subject for dev)")
	gameURL := flag.String("gameurl", "http://127.0.0.1:8081", "Game RPC base URL")
	wsURL := flag.String("wsurl", "ws://127.0.0.1:8080/ws", "Gateway WebSocket URL")
	token := flag.String("token", "", "bearer token for the gateway")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "replclient: -user is required")
		os.Exit(1)
	}

	m := model{
		ctx:    context.Background(),
		game:   rpc.NewClient(*gameURL),
		userID: *userID,
		wsURL:  withToken(*wsURL, *token),
		frames: make(chan gateway.ServerMessage, 64),
	}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "replclient:", err)
		os.Exit(1)
	}
}

func withToken(raw, token string) string {
	if token == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (m model) Init() tea.Cmd { return connectWS(m.wsURL, m.frames) }

func connectWS(wsURL string, frames chan gateway.ServerMessage) tea.Cmd {
	return func() tea.Msg {
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return errMsg(fmt.Errorf("connect gateway: %w", err))
		}
		go func() {
			for {
				_, data, err := ws.ReadMessage()
				if err != nil {
					close(frames)
					return
				}
				var msg gateway.ServerMessage
				if json.Unmarshal(data, &msg) == nil {
					frames <- msg
				}
			}
		}()
		return wsConnectedMsg{ws}
	}
}

type wsConnectedMsg struct{ ws *websocket.Conn }

func waitFrame(frames chan gateway.ServerMessage) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-frames
		if !ok {
			return nil
		}
		return frameMsg(msg)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wsConnectedMsg:
		m.ws = msg.ws
		return m, waitFrame(m.frames)
	case frameMsg:
		m.status = fmt.Sprintf("[%s] %+v", msg.Type, msg.Payload)
		return m, waitFrame(m.frames)
	case errMsg:
		m.err = msg
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == stateInput {
		return m.handleInputKey(msg)
	}
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(mainMenu)-1 {
			m.cursor++
		}
	case "enter":
		return m.selectMenuItem()
	}
	return m, nil
}

func (m model) selectMenuItem() (tea.Model, tea.Cmd) {
	switch mainMenu[m.cursor] {
	case optionQuit:
		return m, tea.Quit
	case optionListTables:
		return m.listTables()
	case optionCreateTable:
		return m.createTable()
	case optionJoinTable, optionSetReady, optionSubscribe, optionAct:
		m.state = stateInput
		m.pending = inputTableID
		m.input = ""
	}
	return m, nil
}

func (m model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateMainMenu
		m.pending = inputNone
		return m, nil
	case "enter":
		return m.advanceInput()
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		m.input += msg.String()
	}
	return m, nil
}

func (m model) advanceInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input)
	m.input = ""

	switch m.pending {
	case inputTableID:
		m.tableID = value
		selected := mainMenu[m.cursor]
		if selected == optionJoinTable || selected == optionSetReady || selected == optionAct {
			m.pending = inputSeatID
			return m, nil
		}
		m.pending = inputNone
		m.state = stateMainMenu
		return m.subscribe()
	case inputSeatID:
		seat, _ := strconv.Atoi(value)
		m.seatID = seat
		selected := mainMenu[m.cursor]
		if selected == optionAct {
			m.pending = inputActionName
			return m, nil
		}
		m.state = stateMainMenu
		m.pending = inputNone
		if selected == optionJoinTable {
			return m.joinTable()
		}
		return m.setReady()
	case inputActionName:
		m.action = value
		m.pending = inputActionAmount
		return m, nil
	case inputActionAmount:
		amount, _ := strconv.ParseInt(value, 10, 64)
		m.state = stateMainMenu
		m.pending = inputNone
		return m.sendAction(amount)
	}
	return m, nil
}

func (m model) listTables() (tea.Model, tea.Cmd) {
	tables, err := m.game.ListOwnedTables(m.ctx, rpc.ListOwnedTablesRequest{UserID: m.userID})
	if err != nil {
		m.err = err
		return m, nil
	}
	m.status = fmt.Sprintf("tables: %+v", tables)
	return m, nil
}

func (m model) createTable() (tea.Model, tea.Cmd) {
	resp, err := m.game.CreateTable(m.ctx, rpc.CreateTableRequest{
		OwnerID: m.userID, SmallBlind: 5, BigBlind: 10, MaxPlayers: 6, StartingStack: 1000, TurnTimerSeconds: 30,
	})
	if err != nil {
		m.err = err
		return m, nil
	}
	m.tableID = resp.TableID
	m.status = "created table " + resp.TableID
	return m, nil
}

func (m model) joinTable() (tea.Model, tea.Cmd) {
	err := m.game.JoinTable(m.ctx, rpc.JoinTableRequest{TableID: m.tableID, SeatID: m.seatID, UserID: m.userID})
	if err != nil {
		m.err = err
		return m, nil
	}
	m.status = fmt.Sprintf("joined table %s seat %d", m.tableID, m.seatID)
	return m, nil
}

func (m model) setReady() (tea.Model, tea.Cmd) {
	err := m.game.SetReady(m.ctx, rpc.SetReadyRequest{TableID: m.tableID, SeatID: m.seatID, Ready: true})
	if err != nil {
		m.err = err
		return m, nil
	}
	m.status = "marked ready"
	return m, nil
}

func (m model) subscribe() (tea.Model, tea.Cmd) {
	if m.ws == nil {
		m.err = fmt.Errorf("gateway socket not connected yet")
		return m, nil
	}
	frame := gateway.ClientMessage{
		Type:    gateway.MsgSubscribe,
		Payload: mustJSON(gateway.SubscribePayload{Channel: string(gateway.ChannelTable), ScopeID: m.tableID}),
	}
	return m, m.writeFrame(frame)
}

func (m model) sendAction(amount int64) (tea.Model, tea.Cmd) {
	if m.ws == nil {
		m.err = fmt.Errorf("gateway socket not connected yet")
		return m, nil
	}
	frame := gateway.ClientMessage{
		Type:    gateway.MsgAction,
		Payload: mustJSON(gateway.ActionPayload{TableID: m.tableID, Action: m.action, Amount: amount}),
	}
	return m, m.writeFrame(frame)
}

func (m model) writeFrame(frame gateway.ClientMessage) tea.Cmd {
	return func() tea.Msg {
		data, err := json.Marshal(frame)
		if err != nil {
			return errMsg(err)
		}
		if err := m.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("poker replclient") + "\n\n")

	if m.state == stateInput {
		b.WriteString(helpStyle.Render(prompt(m.pending)) + "\n")
		b.WriteString("> " + m.input + "\n")
	} else {
		for i, opt := range mainMenu {
			style := blurredStyle
			cursor := "  "
			if i == m.cursor {
				style = focusedStyle
				cursor = "> "
			}
			b.WriteString(cursor + style.Render(string(opt)) + "\n")
		}
	}

	b.WriteString("\n")
	if m.tableID != "" {
		b.WriteString(seatStyle.Render("table: "+m.tableID) + "\n")
	}
	if m.status != "" {
		b.WriteString(potStyle.Render(m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("up/down move, enter select, esc cancel, q quit"))
	_ = time.Second
	return b.String()
}

func prompt(p pendingInput) string {
	switch p {
	case inputTableID:
		return "table id:"
	case inputSeatID:
		return "seat id:"
	case inputActionName:
		return "action (fold/check/call/bet/raise/allin):"
	case inputActionAmount:
		return "amount:"
	default:
		return ""
	}
}
