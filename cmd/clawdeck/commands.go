package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clawdeck/clawdeck/internal/bus"
	"github.com/clawdeck/clawdeck/internal/cli"
	"github.com/clawdeck/clawdeck/internal/control"
	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

func printSuccess(msg string) {
	fmt.Printf("%s %s\n", cli.GreenText("✓"), msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	return t.Local().Format("Jan 2 15:04")
}

// resolveThread looks a thread up by full id, then by unique id prefix.
func resolveThread(client *control.Client, id string) (*control.ThreadInfo, error) {
	if th, err := client.GetThread(id); err == nil {
		return th, nil
	}

	threads, err := client.ListAllThreads()
	if err != nil {
		return nil, err
	}
	var match *control.ThreadInfo
	for _, th := range threads {
		if strings.HasPrefix(th.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("thread id %q is ambiguous", id)
			}
			match = th
		}
	}
	if match == nil {
		return nil, fmt.Errorf("thread not found: %s", id)
	}
	return match, nil
}

// Project commands

func runProjectList() error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	projects, err := client.ListProjects()
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		fmt.Println(cli.GrayText("No projects. Create one with: clawdeck project new <name>"))
		return nil
	}

	fmt.Println(cli.Bolden("Projects"))
	for _, p := range projects {
		line := fmt.Sprintf("%s  %s", cli.Dimmed(shortID(p.ID)), p.Name)
		if p.Description != nil && *p.Description != "" {
			line += "  " + cli.GrayText(*p.Description)
		}
		fmt.Println(line)
	}
	return nil
}

func runProjectNew(name, description, color string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	req := control.CreateProjectRequest{Name: name}
	if description != "" {
		req.Description = &description
	}
	if color != "" {
		req.Color = &color
	}

	p, err := client.CreateProject(req)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Created project %s (%s)", p.Name, shortID(p.ID)))
	return nil
}

func runProjectRm(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteProject(id); err != nil {
		return err
	}
	printSuccess("Deleted project " + shortID(id))
	return nil
}

// Thread commands

func runThreadList(projectID *string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	var threads []*control.ThreadInfo
	if projectID == nil {
		threads, err = client.ListAllThreads()
	} else {
		threads, err = client.ListThreads(projectID)
	}
	if err != nil {
		return err
	}

	if len(threads) == 0 {
		fmt.Println(cli.GrayText("No threads. Start one with: clawdeck thread new"))
		return nil
	}

	fmt.Println(cli.Bolden("Threads"))
	for _, th := range threads {
		last := cli.GrayText("no messages")
		if th.LastMessageAt != nil {
			last = cli.GrayText(formatTime(*th.LastMessageAt))
		}
		fmt.Printf("%s  %-40s %s\n", cli.Dimmed(shortID(th.ID)), th.Name, last)
	}
	return nil
}

func runThreadNew(projectID *string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := client.CreateThread(control.CreateThreadRequest{ProjectID: projectID})
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Created thread %s (session %s)", shortID(th.ID), shortID(th.SessionID)))
	return nil
}

func runThreadRename(id, name string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := resolveThread(client, id)
	if err != nil {
		return err
	}
	if err := client.RenameThread(th.ID, name); err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Renamed thread %s to %q", shortID(th.ID), name))
	return nil
}

func runThreadRm(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := resolveThread(client, id)
	if err != nil {
		return err
	}
	if err := client.DeleteThread(th.ID); err != nil {
		return err
	}
	printSuccess("Deleted thread " + shortID(th.ID))
	return nil
}

// Conversation commands

func printEntry(entry sessionlog.Entry) {
	label := cli.CyanText("you")
	if entry.Role == sessionlog.RoleAssistant {
		label = cli.MagentaText("agent")
	}
	fmt.Printf("%s %s\n", cli.Bolden(label+":"), entry.Content)
}

func runShow(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := resolveThread(client, id)
	if err != nil {
		return err
	}

	conv, err := client.LoadSession(th.AgentID, th.SessionID)
	if err != nil {
		return err
	}

	fmt.Println(cli.Bolden(th.Name) + "  " + cli.Dimmed(shortID(th.ID)))
	if len(conv.Entries) == 0 {
		fmt.Println(cli.GrayText("No messages yet."))
		return nil
	}
	for _, entry := range conv.Entries {
		printEntry(entry)
	}
	return nil
}

func runSend(id, text string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := resolveThread(client, id)
	if err != nil {
		return err
	}

	conv, err := client.SendMessage(control.SendMessageRequest{
		ThreadID:  th.ID,
		AgentID:   th.AgentID,
		SessionID: th.SessionID,
		Text:      text,
	})
	if err != nil {
		return err
	}

	// Print the tail of the conversation from the sent message on.
	start := 0
	for i := len(conv.Entries) - 1; i >= 0; i-- {
		if conv.Entries[i].Role == sessionlog.RoleUser && conv.Entries[i].Content == text {
			start = i
			break
		}
	}
	for _, entry := range conv.Entries[start:] {
		printEntry(entry)
	}
	return nil
}

func runWatch(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := resolveThread(client, id)
	if err != nil {
		return err
	}

	if err := client.WatchSession(th.AgentID, th.SessionID); err != nil {
		return err
	}
	defer client.StopWatching(th.SessionID)

	fmt.Println(cli.GrayText("Watching " + th.Name + ", ctrl-c to stop"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return nil
		case evt, ok := <-client.Events():
			if !ok {
				return fmt.Errorf("connection to daemon lost")
			}
			printWatchEvent(th, evt)
		}
	}
}

func printWatchEvent(th *control.ThreadInfo, evt control.Event) {
	raw, err := json.Marshal(evt.Payload)
	if err != nil {
		return
	}

	switch evt.Type {
	case bus.TopicMessageArrived:
		var arrived bus.MessageArrived
		if json.Unmarshal(raw, &arrived) != nil || arrived.SessionID != th.SessionID {
			return
		}
		printEntry(arrived.Entry)
	case bus.TopicThreadRenamed:
		var renamed bus.ThreadRenamed
		if json.Unmarshal(raw, &renamed) != nil || renamed.ThreadID != th.ID {
			return
		}
		fmt.Println(cli.GrayText("Thread renamed to " + renamed.Name))
	case bus.TopicBrainDumpFollowedUp:
		var followed bus.BrainDumpFollowedUp
		if json.Unmarshal(raw, &followed) != nil {
			return
		}
		fmt.Println(cli.GrayText("Followed up on a note: " + followed.Content))
	}
}

// Brain dump commands

func runDumpList() error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	dumps, err := client.ListBrainDumps()
	if err != nil {
		return err
	}

	if len(dumps) == 0 {
		fmt.Println(cli.GrayText("No brain dumps. Capture one with: clawdeck dump \"your note\""))
		return nil
	}

	fmt.Println(cli.Bolden("Brain dumps"))
	for _, dump := range dumps {
		status := dump.Status
		switch status {
		case "done":
			status = cli.GreenText(status)
		case "in_progress":
			status = cli.YellowText(status)
		default:
			status = cli.Dimmed(status)
		}
		marker := " "
		if dump.Proactive {
			marker = cli.CyanText("●")
		}
		fmt.Printf("%s %s  %-12s %s\n", marker, cli.Dimmed(shortID(dump.ID)), status, dump.Content)
	}
	return nil
}

func runDumpAdd(content string, projectID *string, proactive bool) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	dump, err := client.CreateBrainDump(control.CreateBrainDumpRequest{
		Content:   content,
		ProjectID: projectID,
	})
	if err != nil {
		return err
	}
	if proactive {
		if err := client.SetBrainDumpProactive(dump.ID, true); err != nil {
			return err
		}
	}

	msg := "Captured " + shortID(dump.ID)
	if proactive {
		msg += " (will follow up)"
	}
	printSuccess(msg)
	return nil
}

func runDumpStatus(id, status string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.UpdateBrainDumpStatus(id, status); err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Marked %s %s", shortID(id), status))
	return nil
}

func runDumpConvert(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	th, err := client.ConvertBrainDump(id)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Created thread %s from note", shortID(th.ID)))
	return nil
}

func runDumpRm(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteBrainDump(id); err != nil {
		return err
	}
	printSuccess("Deleted note " + shortID(id))
	return nil
}

// Board commands

var boardColumns = []string{"backlog", "this_week", "in_progress", "done"}

func runBoardList(projectID *string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	items, err := client.ListKanbanItems(projectID)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println(cli.GrayText("Board is empty. Add a card with: clawdeck board add <title>"))
		return nil
	}

	byColumn := make(map[string][]*control.KanbanItemInfo)
	for _, item := range items {
		byColumn[item.Column] = append(byColumn[item.Column], item)
	}

	for _, col := range boardColumns {
		cards := byColumn[col]
		if len(cards) == 0 {
			continue
		}
		fmt.Println(cli.BoldCyan(col))
		for _, card := range cards {
			fmt.Printf("  %s  %s\n", cli.Dimmed(shortID(card.ID)), card.Title)
		}
	}
	return nil
}

func runBoardAdd(title string, projectID *string, column string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	item, err := client.CreateKanbanItem(control.CreateKanbanItemRequest{
		ProjectID: projectID,
		Title:     title,
		Column:    column,
	})
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Added card %s to %s", shortID(item.ID), item.Column))
	return nil
}

func runBoardMove(id, column string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.UpdateKanbanItem(control.UpdateKanbanItemRequest{
		ID:     id,
		Column: &column,
	}); err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Moved card %s to %s", shortID(id), column))
	return nil
}

func runBoardRm(id string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteKanbanItem(id); err != nil {
		return err
	}
	printSuccess("Deleted card " + shortID(id))
	return nil
}
