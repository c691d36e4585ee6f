package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Client connects to the clawdeck daemon over its unix socket.
type Client struct {
	conn      net.Conn
	scanner   *bufio.Scanner
	mu        sync.Mutex
	pending   map[string]chan *Response
	events    chan Event
	done      chan struct{}
	connected atomic.Bool
}

// NewClient dials the daemon socket.
func NewClient(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	c := &Client{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		pending: make(map[string]chan *Response),
		events:  make(chan Event, 100),
		done:    make(chan struct{}),
	}
	c.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	c.connected.Store(true)

	go c.readLoop()
	return c, nil
}

// Close disconnects from the daemon.
func (c *Client) Close() error {
	c.connected.Store(false)
	close(c.done)
	return c.conn.Close()
}

// Events returns the stream of daemon broadcasts.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Call makes one RPC call and waits for its response.
func (c *Client) Call(method string, params any) (*Response, error) {
	if !c.connected.Load() {
		return nil, errors.New("not connected to daemon")
	}

	id := uuid.NewString()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req := Request{Method: method, Params: paramsJSON, ID: id}

	respChan := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[id] = respChan
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	encoded, _ := json.Marshal(req)
	c.mu.Lock()
	_, err = c.conn.Write(append(encoded, '\n'))
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-c.done:
		return nil, errors.New("client closed")
	}
}

// call runs one RPC and decodes the data payload into out (when non-nil).
func (c *Client) call(method string, params, out any) error {
	resp, err := c.Call(method, params)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) readLoop() {
	for c.scanner.Scan() {
		select {
		case <-c.done:
			return
		default:
		}

		line := c.scanner.Bytes()

		var resp Response
		if err := json.Unmarshal(line, &resp); err == nil && resp.ID != "" {
			c.mu.Lock()
			if ch, ok := c.pending[resp.ID]; ok {
				ch <- &resp
			}
			c.mu.Unlock()
			continue
		}

		var event Event
		if json.Unmarshal(line, &event) == nil && event.Type != "" {
			select {
			case c.events <- event:
			default: // drop if the consumer is behind
			}
		}
	}
	c.connected.Store(false)
}

// WatchSession starts forwarding a session's new entries as events.
func (c *Client) WatchSession(agentID, sessionID string) error {
	return c.call("watch_session", SessionRequest{AgentID: agentID, SessionID: sessionID}, nil)
}

// StopWatching stops the session's watch.
func (c *Client) StopWatching(sessionID string) error {
	return c.call("stop_watching", SessionRequest{SessionID: sessionID}, nil)
}

// SendMessage runs one exchange and returns the reconciled conversation.
func (c *Client) SendMessage(req SendMessageRequest) (*ConversationResponse, error) {
	var conv ConversationResponse
	if err := c.call("send_message", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// LoadSession returns the canonical entries of a session.
func (c *Client) LoadSession(agentID, sessionID string) (*ConversationResponse, error) {
	var conv ConversationResponse
	if err := c.call("load_session", SessionRequest{AgentID: agentID, SessionID: sessionID}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListProjects retrieves all projects.
func (c *Client) ListProjects() ([]*ProjectInfo, error) {
	var projects []*ProjectInfo
	if err := c.call("list_projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(req CreateProjectRequest) (*ProjectInfo, error) {
	var project ProjectInfo
	if err := c.call("create_project", req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject updates a project.
func (c *Client) UpdateProject(req UpdateProjectRequest) error {
	return c.call("update_project", req, nil)
}

// DeleteProject removes a project and its threads.
func (c *Client) DeleteProject(id string) error {
	return c.call("delete_project", IDRequest{ID: id}, nil)
}

// ListThreads retrieves threads, filtered by project when set.
func (c *Client) ListThreads(projectID *string) ([]*ThreadInfo, error) {
	var threads []*ThreadInfo
	if err := c.call("list_threads", ListThreadsRequest{ProjectID: projectID}, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// ListAllThreads retrieves every thread regardless of project.
func (c *Client) ListAllThreads() ([]*ThreadInfo, error) {
	var threads []*ThreadInfo
	if err := c.call("list_threads", ListThreadsRequest{All: true}, &threads); err != nil {
		return nil, err
	}
	return threads, nil
}

// GetThread fetches a single thread by id.
func (c *Client) GetThread(id string) (*ThreadInfo, error) {
	var thread ThreadInfo
	if err := c.call("get_thread", IDRequest{ID: id}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// CreateThread creates a thread with a fresh session id.
func (c *Client) CreateThread(req CreateThreadRequest) (*ThreadInfo, error) {
	var thread ThreadInfo
	if err := c.call("create_thread", req, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// RenameThread renames a thread.
func (c *Client) RenameThread(id, name string) error {
	return c.call("rename_thread", RenameThreadRequest{ID: id, Name: name}, nil)
}

// DeleteThread removes a thread.
func (c *Client) DeleteThread(id string) error {
	return c.call("delete_thread", IDRequest{ID: id}, nil)
}

// ListBrainDumps retrieves all brain dumps.
func (c *Client) ListBrainDumps() ([]*BrainDumpInfo, error) {
	var dumps []*BrainDumpInfo
	if err := c.call("list_brain_dumps", nil, &dumps); err != nil {
		return nil, err
	}
	return dumps, nil
}

// CreateBrainDump captures a note.
func (c *Client) CreateBrainDump(req CreateBrainDumpRequest) (*BrainDumpInfo, error) {
	var dump BrainDumpInfo
	if err := c.call("create_brain_dump", req, &dump); err != nil {
		return nil, err
	}
	return &dump, nil
}

// UpdateBrainDumpStatus moves a note through its lifecycle.
func (c *Client) UpdateBrainDumpStatus(id, status string) error {
	return c.call("update_brain_dump_status", UpdateBrainDumpStatusRequest{ID: id, Status: status}, nil)
}

// SetBrainDumpProactive flags or unflags a note for follow-up.
func (c *Client) SetBrainDumpProactive(id string, proactive bool) error {
	return c.call("set_brain_dump_proactive", SetBrainDumpProactiveRequest{ID: id, Proactive: proactive}, nil)
}

// ConvertBrainDump turns a note into a thread.
func (c *Client) ConvertBrainDump(id string) (*ThreadInfo, error) {
	var thread ThreadInfo
	if err := c.call("convert_brain_dump", IDRequest{ID: id}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// DeleteBrainDump removes a note.
func (c *Client) DeleteBrainDump(id string) error {
	return c.call("delete_brain_dump", IDRequest{ID: id}, nil)
}

// ListKanbanItems retrieves active board cards.
func (c *Client) ListKanbanItems(projectID *string) ([]*KanbanItemInfo, error) {
	var items []*KanbanItemInfo
	if err := c.call("list_kanban_items", ListThreadsRequest{ProjectID: projectID}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateKanbanItem adds a card.
func (c *Client) CreateKanbanItem(req CreateKanbanItemRequest) (*KanbanItemInfo, error) {
	var item KanbanItemInfo
	if err := c.call("create_kanban_item", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateKanbanItem applies a partial card update.
func (c *Client) UpdateKanbanItem(req UpdateKanbanItemRequest) error {
	return c.call("update_kanban_item", req, nil)
}

// DeleteKanbanItem removes a card.
func (c *Client) DeleteKanbanItem(id string) error {
	return c.call("delete_kanban_item", IDRequest{ID: id}, nil)
}

// GetSetting reads one settings key.
func (c *Client) GetSetting(key string) (*SettingInfo, error) {
	var setting SettingInfo
	if err := c.call("get_setting", SettingRequest{Key: key}, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// SetSetting writes one settings key.
func (c *Client) SetSetting(key, value string) error {
	return c.call("set_setting", SettingRequest{Key: key, Value: value}, nil)
}
